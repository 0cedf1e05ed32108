package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := New()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.APIPort)
		assert.Equal(t, SourceFile, cfg.CertificatesSource)
		assert.Equal(t, "public/certificates-data.json", cfg.CertificatesPath)
		assert.Equal(t, 5*time.Second, cfg.FetchTimeout)
		assert.Equal(t, time.Duration(0), cfg.ReloadInterval)
		assert.Equal(t, 4, cfg.NumParserWorkers)
		assert.Equal(t, 500, cfg.DBBatchSize)
		assert.Equal(t, 100, cfg.MaxErrorsPerFile)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("API_PORT", "9000")
		t.Setenv("CERTIFICATES_SOURCE", " HTTP ")
		t.Setenv("CERTIFICATES_URL", "https://example.com/certificates-data.json")
		t.Setenv("RELOAD_INTERVAL", "1m")
		t.Setenv("NUM_PARSER_WORKERS", "2")

		cfg, err := New()
		require.NoError(t, err)

		assert.Equal(t, "9000", cfg.APIPort)
		assert.Equal(t, SourceHTTP, cfg.CertificatesSource)
		assert.Equal(t, time.Minute, cfg.ReloadInterval)
		assert.Equal(t, 2, cfg.NumParserWorkers)
	})

	t.Run("invalid integer", func(t *testing.T) {
		t.Setenv("DB_BATCH_SIZE", "lots")
		_, err := New()
		assert.Error(t, err)
	})

	t.Run("http source without url", func(t *testing.T) {
		t.Setenv("CERTIFICATES_SOURCE", "sheet")
		t.Setenv("CERTIFICATES_URL", "")
		_, err := New()
		assert.ErrorContains(t, err, "CERTIFICATES_URL")
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			CertificatesSource: SourceFile,
			CertificatesPath:   "certificates-data.json",
			NumParserWorkers:   1,
			DBBatchSize:        1,
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.CertificatesSource = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.CertificatesSource = SourceDB
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.NumParserWorkers = 0
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.ReloadInterval = -time.Second
	assert.Error(t, cfg.Validate())
}
