package parser

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	fieldName            = "name"
	fieldEmail           = "email"
	fieldTeamName        = "teamname"
	fieldCertificateType = "certificatetype"
	fieldCertificateID   = "certificateid"
	fieldProjectTitle    = "projecttitle"
	fieldDownloadURL     = "downloadurl"
)

// positionalFields is the column order of the template and of a published sheet.
var positionalFields = []string{
	fieldName, fieldEmail, fieldTeamName, fieldCertificateType,
	fieldCertificateID, fieldProjectTitle, fieldDownloadURL,
}

// TemplateHeaders are the header cells written to the template workbook.
var TemplateHeaders = []string{
	"name", "email", "teamName", "certificateType", "certificateId", "projectTitle", "downloadUrl",
}

var headerAliases = map[string]string{
	"name":            fieldName,
	"fullname":        fieldName,
	"participant":     fieldName,
	"email":           fieldEmail,
	"emailaddress":    fieldEmail,
	"mail":            fieldEmail,
	"teamname":        fieldTeamName,
	"team":            fieldTeamName,
	"certificatetype": fieldCertificateType,
	"type":            fieldCertificateType,
	"award":           fieldCertificateType,
	"certificateid":   fieldCertificateID,
	"id":              fieldCertificateID,
	"projecttitle":    fieldProjectTitle,
	"project":         fieldProjectTitle,
	"downloadurl":     fieldDownloadURL,
	"downloadlink":    fieldDownloadURL,
	"url":             fieldDownloadURL,
	"link":            fieldDownloadURL,
}

var validate = newValidator()

// newValidator reports fields by their json names so messages match the
// spreadsheet headers.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RowMapper turns spreadsheet rows into certificates using the header row.
type RowMapper struct {
	columns  map[string]int
	minWidth int
}

// NewRowMapper recognises header cells such as "Certificate ID",
// "certificate_id" or "certificateId". When none is recognised the
// columns are read in template order.
func NewRowMapper(header []string) *RowMapper {
	columns := make(map[string]int)
	for i, cell := range header {
		field, ok := headerAliases[normalizeHeader(cell)]
		if !ok {
			continue
		}
		if _, seen := columns[field]; !seen {
			columns[field] = i
		}
	}

	if len(columns) > 0 {
		return &RowMapper{columns: columns}
	}

	for i, field := range positionalFields {
		columns[field] = i
	}
	return &RowMapper{columns: columns, minWidth: len(positionalFields)}
}

// Fits reports whether a positional row has every column.
func (m *RowMapper) Fits(row []string) bool {
	return len(row) >= m.minWidth
}

func (m *RowMapper) Map(row []string) models.Certificate {
	return models.Certificate{
		Name:            m.cell(row, fieldName),
		Email:           m.cell(row, fieldEmail),
		TeamName:        m.cell(row, fieldTeamName),
		CertificateType: models.ParseCertificateType(m.cell(row, fieldCertificateType)),
		CertificateID:   m.cell(row, fieldCertificateID),
		ProjectTitle:    m.cell(row, fieldProjectTitle),
		DownloadURL:     m.cell(row, fieldDownloadURL),
	}
}

func (m *RowMapper) cell(row []string, field string) string {
	idx, ok := m.columns[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ValidateCertificate checks the fields a verifiable certificate needs.
func ValidateCertificate(cert *models.Certificate) error {
	err := validate.Struct(cert)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s %q is not a valid email", fe.Field(), fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s %q must be one of %s", fe.Field(), fe.Value(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

func normalizeHeader(cell string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(cell) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
