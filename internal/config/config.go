package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	SourceFile  = "file"
	SourceHTTP  = "http"
	SourceSheet = "sheet"
	SourceDB    = "db"
)

type Config struct {
	APIPort         string        `env:"API_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	CertificatesSource string        `env:"CERTIFICATES_SOURCE" envDefault:"file"`
	CertificatesPath   string        `env:"CERTIFICATES_PATH" envDefault:"public/certificates-data.json"`
	CertificatesURL    string        `env:"CERTIFICATES_URL"`
	FetchTimeout       time.Duration `env:"FETCH_TIMEOUT" envDefault:"5s"`
	ReloadInterval     time.Duration `env:"RELOAD_INTERVAL" envDefault:"0s"`
	SiteContentPath    string        `env:"SITE_CONTENT_PATH"`

	DatabaseURL        string `env:"DATABASE_URL" envDefault:"data/certificates.db"`
	NumParserWorkers   int    `env:"NUM_PARSER_WORKERS" envDefault:"4"`
	DBBatchSize        int    `env:"DB_BATCH_SIZE" envDefault:"500"`
	ResultsChannelSize int    `env:"RESULTS_CHANNEL_SIZE" envDefault:"1000"`
	MaxErrorsPerFile   int    `env:"MAX_ERRORS_PER_FILE" envDefault:"100"`
}

// New reads the configuration from the environment. Callers load .env first.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.CertificatesSource = strings.ToLower(strings.TrimSpace(cfg.CertificatesSource))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.CertificatesSource {
	case SourceFile:
		if c.CertificatesPath == "" {
			return errors.New("config: CERTIFICATES_PATH cannot be empty for the file source")
		}
	case SourceHTTP, SourceSheet:
		if c.CertificatesURL == "" {
			return fmt.Errorf("config: CERTIFICATES_URL cannot be empty for the %s source", c.CertificatesSource)
		}
	case SourceDB:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL cannot be empty for the db source")
		}
	default:
		return fmt.Errorf("config: unknown CERTIFICATES_SOURCE %q", c.CertificatesSource)
	}

	if c.NumParserWorkers <= 0 {
		return fmt.Errorf("invalid value for NUM_PARSER_WORKERS: expected a positive integer, got %d", c.NumParserWorkers)
	}
	if c.DBBatchSize <= 0 {
		return fmt.Errorf("invalid value for DB_BATCH_SIZE: expected a positive integer, got %d", c.DBBatchSize)
	}
	if c.ResultsChannelSize < 0 {
		return fmt.Errorf("invalid value for RESULTS_CHANNEL_SIZE: expected a non-negative integer, got %d", c.ResultsChannelSize)
	}
	if c.ReloadInterval < 0 {
		return errors.New("config: RELOAD_INTERVAL cannot be negative")
	}
	return nil
}
