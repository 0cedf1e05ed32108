package models

import (
	"encoding/json"
	"io"
	"strings"
)

type CertificateType string

const (
	CertificateParticipation CertificateType = "participation"
	CertificateWinner        CertificateType = "winner"
	CertificateRunnerUp      CertificateType = "runner-up"
)

// Certificate is one participant's award record. The json tags are the
// wire format of certificates-data.json.
type Certificate struct {
	Name            string          `json:"name" validate:"required"`
	Email           string          `json:"email" validate:"omitempty,email"`
	TeamName        string          `json:"teamName"`
	CertificateType CertificateType `json:"certificateType" validate:"required,oneof=participation winner runner-up"`
	CertificateID   string          `json:"certificateId" validate:"required"`
	ProjectTitle    string          `json:"projectTitle"`
	DownloadURL     string          `json:"downloadUrl"`
}

// ParseCertificateType normalises free-form spreadsheet input such as
// "Runner Up" or "WINNER". Unknown values are returned normalised and
// rejected by row validation.
func ParseCertificateType(raw string) CertificateType {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "-", "_", "-").Replace(s)
	if s == "runnerup" {
		s = string(CertificateRunnerUp)
	}
	return CertificateType(s)
}

// Badge returns the label shown next to a verified certificate.
func (t CertificateType) Badge() string {
	switch t {
	case CertificateWinner:
		return "🏆 Winner"
	case CertificateRunnerUp:
		return "🥈 Runner Up"
	case CertificateParticipation:
		return "⭐ Participation"
	default:
		return ""
	}
}

// SampleCertificates is the record list served when the real dataset
// cannot be fetched.
func SampleCertificates() []Certificate {
	return []Certificate{
		{
			Name:            "John Doe",
			Email:           "john@example.com",
			TeamName:        "Tech Innovators",
			CertificateType: CertificateWinner,
			CertificateID:   "HWS2025-WIN-001",
			ProjectTitle:    "AI-Powered Academic Verification",
			DownloadURL:     "#",
		},
		{
			Name:            "Jane Smith",
			Email:           "jane@example.com",
			TeamName:        "Code Warriors",
			CertificateType: CertificateParticipation,
			CertificateID:   "HWS2025-PAR-002",
			ProjectTitle:    "Smart Waste Management System",
			DownloadURL:     "#",
		},
	}
}

// EncodeCertificates writes the record file format: a JSON array indented by
// two spaces. URLs are written as-is, without HTML escaping.
func EncodeCertificates(w io.Writer, certs []Certificate) error {
	if certs == nil {
		certs = []Certificate{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(certs)
}
