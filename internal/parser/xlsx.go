package parser

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const TemplateSheet = "Certificates"

// ReadXLSX returns the rows of the first worksheet.
func ReadXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// WriteTemplate writes the one-row template workbook handed to organisers.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return fmt.Errorf("failed to name template sheet: %w", err)
	}

	header := make([]interface{}, len(TemplateHeaders))
	for i, h := range TemplateHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(TemplateSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write template header: %w", err)
	}

	sample := []interface{}{
		"John Doe",
		"john@example.com",
		"Team Alpha",
		"participation",
		"HWS2025-PAR-001",
		"AI Project",
		"https://drive.google.com/file/d/YOUR_FILE_ID/view",
	}
	if err := f.SetSheetRow(TemplateSheet, "A2", &sample); err != nil {
		return fmt.Errorf("failed to write template row: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write template workbook: %w", err)
	}
	return nil
}
