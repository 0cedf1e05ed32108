package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/config"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubSource returns queued results, then repeats the last one.
type stubSource struct {
	mu      sync.Mutex
	results []stubResult
	calls   int
}

type stubResult struct {
	certs []models.Certificate
	err   error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) ([]models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results[min(s.calls, len(s.results)-1)]
	s.calls++
	return r.certs, r.err
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type listerFunc func(ctx context.Context) ([]models.Certificate, error)

func (f listerFunc) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	return f(ctx)
}

var dataset = []models.Certificate{
	{Name: "Ann", CertificateType: models.CertificateWinner, CertificateID: "HWS2025-WIN-009", DownloadURL: "#"},
}

func TestRecordStore_Load(t *testing.T) {
	t.Run("loads the source", func(t *testing.T) {
		s := New(&stubSource{results: []stubResult{{certs: dataset}}}, zap.NewNop())
		assert.True(t, s.Loading())
		assert.Empty(t, s.Records())

		s.Load(context.Background())

		assert.False(t, s.Loading())
		assert.False(t, s.Fallback())
		assert.Equal(t, dataset, s.Records())
		assert.Equal(t, 1, s.Len())
		assert.Len(t, s.Version(), 16)
		assert.Contains(t, string(s.JSON()), `"certificateId": "HWS2025-WIN-009"`)
		assert.False(t, s.LoadedAt().IsZero())
		assert.Equal(t, "stub", s.Source())
	})

	t.Run("falls back to the sample list", func(t *testing.T) {
		s := New(&stubSource{results: []stubResult{{err: errors.New("404")}}}, zap.NewNop())

		s.Load(context.Background())

		assert.False(t, s.Loading())
		assert.True(t, s.Fallback())
		assert.Equal(t, models.SampleCertificates(), s.Records())
	})

	t.Run("failed reload keeps the current list", func(t *testing.T) {
		source := &stubSource{results: []stubResult{{certs: dataset}, {err: errors.New("timeout")}}}
		s := New(source, zap.NewNop())

		s.Load(context.Background())
		version := s.Version()
		s.Load(context.Background())

		assert.Equal(t, dataset, s.Records())
		assert.Equal(t, version, s.Version())
		assert.False(t, s.Fallback())
	})

	t.Run("reload replaces the sample list", func(t *testing.T) {
		source := &stubSource{results: []stubResult{{err: errors.New("down")}, {certs: dataset}}}
		s := New(source, zap.NewNop())

		s.Load(context.Background())
		sampleVersion := s.Version()
		s.Load(context.Background())

		assert.Equal(t, dataset, s.Records())
		assert.NotEqual(t, sampleVersion, s.Version())
		assert.False(t, s.Fallback())
	})

	t.Run("records are a snapshot", func(t *testing.T) {
		s := New(&stubSource{results: []stubResult{{certs: models.SampleCertificates()}}}, zap.NewNop())
		s.Load(context.Background())

		records := s.Records()
		records[0].Name = "changed"
		assert.Equal(t, "John Doe", s.Records()[0].Name)
	})
}

func TestRecordStore_Run(t *testing.T) {
	t.Run("zero interval loads once", func(t *testing.T) {
		source := &stubSource{results: []stubResult{{certs: dataset}}}
		s := New(source, zap.NewNop())

		require.NoError(t, s.Run(context.Background(), 0))
		assert.Equal(t, 1, source.Calls())
	})

	t.Run("reloads until cancelled", func(t *testing.T) {
		source := &stubSource{results: []stubResult{{certs: dataset}}}
		s := New(source, zap.NewNop())
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() { done <- s.Run(ctx, 5*time.Millisecond) }()

		assert.Eventually(t, func() bool { return source.Calls() >= 3 }, time.Second, 5*time.Millisecond)
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "certificates-data.json")
	require.NoError(t, os.WriteFile(path, []byte("\xef\xbb\xbf"+`[{"name":"Ann","certificateId":"X-1","certificateType":"winner"}]`), 0o644))

	certs, err := FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "X-1", certs[0].CertificateID)

	require.NoError(t, os.WriteFile(path, []byte("null"), 0o644))
	certs, err = FileSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, certs)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = FileSource{Path: path}.Fetch(context.Background())
	assert.Error(t, err)

	_, err = FileSource{Path: filepath.Join(dir, "missing.json")}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/certificates-data.json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"name":"Ann","certificateId":"X-1","certificateType":"winner"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	certs, err := HTTPSource{URL: ts.URL + "/certificates-data.json", Client: ts.Client()}.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ann", certs[0].Name)

	_, err = HTTPSource{URL: ts.URL + "/missing.json", Client: ts.Client()}.Fetch(context.Background())
	assert.ErrorContains(t, err, "404")

	// a missing dataset still leaves the portal usable
	s := New(HTTPSource{URL: ts.URL + "/missing.json", Client: ts.Client()}, zap.NewNop())
	s.Load(context.Background())
	assert.True(t, s.Fallback())
	assert.Len(t, s.Records(), 2)
}

func TestSheetCSVSource(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("Name,Email,TeamName,CertificateType,CertificateID,ProjectTitle,DownloadURL\n" +
			"John Doe,john@example.com,Tech,winner,HWS2025-WIN-001,Proj,#\n" +
			",blank@example.com,Tech,winner,HWS2025-WIN-002,Proj,#\n"))
	}))
	defer ts.Close()

	certs, err := SheetCSVSource{URL: ts.URL, Client: ts.Client()}.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "HWS2025-WIN-001", certs[0].CertificateID)
}

func TestDBSource(t *testing.T) {
	source := DBSource{DB: listerFunc(func(ctx context.Context) ([]models.Certificate, error) {
		return dataset, nil
	})}
	certs, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dataset, certs)
	assert.Equal(t, "db", source.Name())
}

func TestNewSource(t *testing.T) {
	cfg := &config.Config{CertificatesSource: config.SourceFile, CertificatesPath: "public/certificates-data.json", FetchTimeout: time.Second}
	source, err := NewSource(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, FileSource{Path: "public/certificates-data.json"}, source)

	cfg.CertificatesSource = config.SourceHTTP
	cfg.CertificatesURL = "https://example.com/certificates-data.json"
	source, err = NewSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, HTTPSource{}, source)
	assert.Equal(t, time.Second, source.(HTTPSource).Client.Timeout)

	cfg.CertificatesSource = config.SourceSheet
	source, err = NewSource(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, SheetCSVSource{}, source)

	cfg.CertificatesSource = config.SourceDB
	_, err = NewSource(cfg, nil)
	assert.Error(t, err)
	source, err = NewSource(cfg, listerFunc(func(ctx context.Context) ([]models.Certificate, error) { return nil, nil }))
	require.NoError(t, err)
	assert.IsType(t, DBSource{}, source)

	cfg.CertificatesSource = "ftp"
	_, err = NewSource(cfg, nil)
	assert.Error(t, err)
}
