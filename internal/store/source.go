package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aimlclub/hackathon-portal/internal/config"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/internal/parser"
)

// maxBodySize caps remote datasets.
const maxBodySize = 32 << 20

var utf8BOM = []byte("\xef\xbb\xbf")

// Source fetches the whole record list in one go.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Certificate, error)
}

// CertificateLister is the part of the import database the portal reads.
type CertificateLister interface {
	ListCertificates(ctx context.Context) ([]models.Certificate, error)
}

// FileSource reads certificates-data.json from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Fetch(ctx context.Context) ([]models.Certificate, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	return decodeCertificates(data)
}

// HTTPSource fetches certificates-data.json from a URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s HTTPSource) Name() string { return "http:" + s.URL }

func (s HTTPSource) Fetch(ctx context.Context) ([]models.Certificate, error) {
	body, err := get(ctx, s.Client, s.URL)
	if err != nil {
		return nil, err
	}
	return decodeCertificates(body)
}

// SheetCSVSource reads a spreadsheet published to the web as CSV. Columns are
// positional; see parser.ParseSheetCSV.
type SheetCSVSource struct {
	URL    string
	Client *http.Client
}

func (s SheetCSVSource) Name() string { return "sheet:" + s.URL }

func (s SheetCSVSource) Fetch(ctx context.Context) ([]models.Certificate, error) {
	body, err := get(ctx, s.Client, s.URL)
	if err != nil {
		return nil, err
	}
	certs, err := parser.ParseSheetCSV(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse sheet %s: %w", s.URL, err)
	}
	return certs, nil
}

// DBSource serves the certificate mirror kept by certadmin import.
type DBSource struct {
	DB CertificateLister
}

func (s DBSource) Name() string { return "db" }

func (s DBSource) Fetch(ctx context.Context) ([]models.Certificate, error) {
	return s.DB.ListCertificates(ctx)
}

// NewSource builds the source named by CERTIFICATES_SOURCE. lister is only
// used, and required, for the db source.
func NewSource(cfg *config.Config, lister CertificateLister) (Source, error) {
	client := &http.Client{Timeout: cfg.FetchTimeout}

	switch cfg.CertificatesSource {
	case config.SourceFile:
		return FileSource{Path: cfg.CertificatesPath}, nil
	case config.SourceHTTP:
		return HTTPSource{URL: cfg.CertificatesURL, Client: client}, nil
	case config.SourceSheet:
		return SheetCSVSource{URL: cfg.CertificatesURL, Client: client}, nil
	case config.SourceDB:
		if lister == nil {
			return nil, errors.New("the db source needs an open database")
		}
		return DBSource{DB: lister}, nil
	default:
		return nil, fmt.Errorf("unknown certificates source %q", cfg.CertificatesSource)
	}
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return body, nil
}

func decodeCertificates(data []byte) ([]models.Certificate, error) {
	var certs []models.Certificate
	if err := json.Unmarshal(bytes.TrimPrefix(data, utf8BOM), &certs); err != nil {
		return nil, fmt.Errorf("failed to decode certificates: %w", err)
	}
	if certs == nil {
		certs = []models.Certificate{}
	}
	return certs, nil
}
