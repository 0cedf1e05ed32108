package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteDBManager is the single-file ledger used when no Postgres URL is configured.
type SQLiteDBManager struct {
	db  *sql.DB
	ctx context.Context
	log *zap.SugaredLogger
}

func NewSQLiteDBManager(ctx context.Context, dsn string, logger *zap.Logger) (*SQLiteDBManager, error) {
	if path := sqlitePath(dsn); path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create database directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database %s: %w", dsn, err)
	}
	// a single connection keeps :memory: databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to sqlite database %s: %w", dsn, err)
	}

	logger.Info("Using SQLite import database", zap.String("dsn", dsn))
	return &SQLiteDBManager{db: db, ctx: ctx, log: logger.Sugar()}, nil
}

func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func (m *SQLiteDBManager) Close() {
	if err := m.db.Close(); err != nil {
		m.log.Warnf("Error closing sqlite database: %v", err)
	}
}

func (m *SQLiteDBManager) CreateFileRecordsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS file_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		file_name TEXT NOT NULL,
		processed_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('DONE', 'DONE_WITH_ERRORS', 'PROCESSING', 'FATAL')),
		checksum TEXT,
		record_count INTEGER NOT NULL DEFAULT 0,
		errors TEXT
	);`

	if _, err := m.db.ExecContext(m.ctx, query); err != nil {
		return fmt.Errorf("error creating file_records table: %w", err)
	}
	return nil
}

func (m *SQLiteDBManager) CreateCertificateRecordsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS certificate_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		certificate_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		team_name TEXT NOT NULL DEFAULT '',
		certificate_type TEXT NOT NULL,
		project_title TEXT NOT NULL DEFAULT '',
		download_url TEXT NOT NULL DEFAULT '',
		file_id INTEGER,
		checksum TEXT NOT NULL
	);`

	if _, err := m.db.ExecContext(m.ctx, query); err != nil {
		return fmt.Errorf("error creating certificate_records table: %w", err)
	}
	return nil
}

func (m *SQLiteDBManager) InsertFileRecord(fileName string, date time.Time, status string, checksum string) (int, error) {
	query := `
	INSERT INTO file_records (file_name, processed_at, status, checksum)
	VALUES (?, ?, ?, ?);`

	res, err := m.db.ExecContext(m.ctx, query, fileName, date.UTC(), status, checksum)
	if err != nil {
		return 0, fmt.Errorf("error inserting file record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error reading file record id: %w", err)
	}
	return int(id), nil
}

func (m *SQLiteDBManager) UpdateFileStatus(fileID int, status string, recordCount int, errors any) error {
	payload, err := json.Marshal(errors)
	if err != nil {
		return fmt.Errorf("error encoding errors for file %d: %w", fileID, err)
	}

	query := `
	UPDATE file_records
	SET status = ?,
		record_count = ?,
		errors = ?
	WHERE id = ?;`

	if _, err := m.db.ExecContext(m.ctx, query, status, recordCount, string(payload), fileID); err != nil {
		return fmt.Errorf("error updating file status: %w", err)
	}
	return nil
}

func (m *SQLiteDBManager) IsFileAlreadyProcessed(checksum string) (bool, error) {
	query := `
	SELECT id
	FROM file_records
	WHERE checksum = ? AND status IN ('DONE', 'DONE_WITH_ERRORS')
	LIMIT 1;`

	var id int
	err := m.db.QueryRowContext(m.ctx, query, checksum).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error finding file record by checksum: %w", err)
	}
	return true, nil
}

func (m *SQLiteDBManager) UpsertCertificates(records []*models.ParsedRecord) error {
	records = dedupeLatest(records)
	if len(records) == 0 {
		return nil
	}

	tx, err := m.db.BeginTx(m.ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(m.ctx, `
	INSERT INTO certificate_records (certificate_id, name, email, team_name, certificate_type, project_title, download_url, file_id, checksum)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (certificate_id) DO UPDATE SET
		name = excluded.name,
		email = excluded.email,
		team_name = excluded.team_name,
		certificate_type = excluded.certificate_type,
		project_title = excluded.project_title,
		download_url = excluded.download_url,
		file_id = excluded.file_id,
		checksum = excluded.checksum
	WHERE certificate_records.checksum <> excluded.checksum;`)
	if err != nil {
		return fmt.Errorf("error preparing certificate upsert: %w", err)
	}
	defer stmt.Close()

	m.log.Debugf("Upserting %d certificates", len(records))
	for _, r := range records {
		c := r.Certificate
		if _, err := stmt.ExecContext(m.ctx, c.CertificateID, c.Name, c.Email, c.TeamName, string(c.CertificateType), c.ProjectTitle, c.DownloadURL, r.FileID, r.CheckSum); err != nil {
			return fmt.Errorf("error upserting certificate %s: %w", c.CertificateID, err)
		}
	}

	return tx.Commit()
}

func (m *SQLiteDBManager) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	query := `
	SELECT name, email, team_name, certificate_type, certificate_id, project_title, download_url
	FROM certificate_records
	ORDER BY id;`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying certificates: %w", err)
	}
	defer rows.Close()

	certs := make([]models.Certificate, 0)
	for rows.Next() {
		var c models.Certificate
		var certType string
		if err := rows.Scan(&c.Name, &c.Email, &c.TeamName, &certType, &c.CertificateID, &c.ProjectTitle, &c.DownloadURL); err != nil {
			return nil, fmt.Errorf("error scanning certificate: %w", err)
		}
		c.CertificateType = models.CertificateType(certType)
		certs = append(certs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over certificates: %w", err)
	}
	return certs, nil
}
