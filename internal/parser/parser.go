package parser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/pkg/checksum"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// DetectFormat maps a file extension to a reader. Legacy .xls workbooks are
// rejected; they must be re-saved as .xlsx or .csv.
func DetectFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// ReadRows reads all rows of a spreadsheet file.
func ReadRows(filePath string) ([][]string, error) {
	format, err := DetectFormat(filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = ReadCSV(file)
	case FormatXLSX:
		rows, err = ReadXLSX(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("file %s is empty", filePath)
	}
	return rows, nil
}

// ParseRows converts rows (header first) into records. Rows that fail
// validation are returned as errors and left out of the records; blank rows
// are skipped. Spreadsheet row numbers are 1-based with the header as row 1.
func ParseRows(rows [][]string, fileID int) ([]*models.ParsedRecord, []models.AppError) {
	if len(rows) == 0 {
		return nil, nil
	}

	mapper := NewRowMapper(rows[0])
	records := make([]*models.ParsedRecord, 0, len(rows)-1)
	var rowErrors []models.AppError
	seen := make(map[string]int)

	for i, row := range rows[1:] {
		rowNumber := i + 2
		if isBlankRow(row) {
			continue
		}

		cert := mapper.Map(row)
		if err := ValidateCertificate(&cert); err != nil {
			rowErrors = append(rowErrors, models.AppError{
				FileID:      fileID,
				Row:         rowNumber,
				Message:     "Invalid certificate row",
				Err:         err,
				Certificate: &cert,
			})
			continue
		}

		lineCheckSum := checksum.CalculateHash(row)
		if first, dup := seen[lineCheckSum]; dup {
			rowErrors = append(rowErrors, models.AppError{
				FileID:  fileID,
				Row:     rowNumber,
				Message: fmt.Sprintf("Duplicate of row %d, skipped", first),
			})
			continue
		}
		seen[lineCheckSum] = rowNumber

		records = append(records, &models.ParsedRecord{
			Certificate: cert,
			FileID:      fileID,
			Row:         rowNumber,
			CheckSum:    lineCheckSum,
		})
	}

	return records, rowErrors
}

// ParseFile reads a whole spreadsheet before emitting anything, so a file
// that cannot be read contributes no records at all. The returned error is
// the unrecoverable one; row problems go to errors.
func ParseFile(filePath string, fileID int, results chan<- *models.ParsedRecord, errors chan<- models.AppError) (int, error) {
	rows, err := ReadRows(filePath)
	if err != nil {
		return 0, err
	}

	records, rowErrors := ParseRows(rows, fileID)
	for _, rowErr := range rowErrors {
		errors <- rowErr
	}
	for _, record := range records {
		results <- record
	}
	return len(records), nil
}
