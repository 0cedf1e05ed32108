package database

import (
	"context"
	"strings"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"go.uber.org/zap"
)

const (
	FILE_STATUS_PROCESSING       = "PROCESSING"
	FILE_STATUS_DONE             = "DONE"
	FILE_STATUS_DONE_WITH_ERRORS = "DONE_WITH_ERRORS"
	FILE_STATUS_FATAL            = "FATAL"
)

// DBManager is the import ledger (file_records) plus the certificate mirror
// (certificate_records) that the portal can serve from.
type DBManager interface {
	CreateFileRecordsTable() error
	CreateCertificateRecordsTable() error
	InsertFileRecord(fileName string, date time.Time, status string, checksum string) (int, error)
	UpdateFileStatus(fileID int, status string, recordCount int, errors any) error
	IsFileAlreadyProcessed(checksum string) (bool, error)
	UpsertCertificates(records []*models.ParsedRecord) error
	ListCertificates(ctx context.Context) ([]models.Certificate, error)
	Close()
}

// Connect opens Postgres for postgres:// URLs and SQLite for anything else,
// and makes sure both tables exist.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (DBManager, error) {
	var (
		manager DBManager
		err     error
	)

	if isPostgresURL(dsn) {
		pool, connErr := ConnectDB(dsn)
		if connErr != nil {
			return nil, connErr
		}
		manager = NewPostgresDBManager(ctx, pool, logger)
		logger.Info("Using Postgres import database")
	} else {
		manager, err = NewSQLiteDBManager(ctx, dsn, logger)
		if err != nil {
			return nil, err
		}
	}

	if err = manager.CreateFileRecordsTable(); err != nil {
		manager.Close()
		return nil, err
	}
	if err = manager.CreateCertificateRecordsTable(); err != nil {
		manager.Close()
		return nil, err
	}
	return manager, nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// dedupeLatest keeps the last record per certificate id, preserving the
// position of that last occurrence.
func dedupeLatest(records []*models.ParsedRecord) []*models.ParsedRecord {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.Certificate.CertificateID] = i
	}

	out := make([]*models.ParsedRecord, 0, len(last))
	for i, r := range records {
		if last[r.Certificate.CertificateID] == i {
			out = append(out, r)
		}
	}
	return out
}
