package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/aimlclub/hackathon-portal/internal/models"
)

const utf8BOM = "\uFEFF"

// ReadCSV reads every row of a comma separated sheet. Rows may have
// different widths; a published Google Sheet drops trailing empty cells.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record from CSV: %w", err)
		}
		if len(rows) == 0 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], utf8BOM)
		}
		rows = append(rows, record)
	}

	return rows, nil
}

// ParseSheetCSV reads a published sheet: the first row is skipped as a
// header, columns are positional, and rows that are short or have no name
// are dropped.
func ParseSheetCSV(r io.Reader) ([]models.Certificate, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []models.Certificate{}, nil
	}

	mapper := NewRowMapper(nil)
	certs := make([]models.Certificate, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if !mapper.Fits(row) {
			continue
		}
		cert := mapper.Map(row)
		if cert.Name == "" {
			continue
		}
		certs = append(certs, cert)
	}
	return certs, nil
}
