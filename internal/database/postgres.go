package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const certificateStagingTable = "certificate_records_staging"

func ConnectDB(connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	return dbpool, nil
}

type PostgresDBManager struct {
	dbpool *pgxpool.Pool
	ctx    context.Context
	log    *zap.SugaredLogger
}

func NewPostgresDBManager(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool, ctx: ctx, log: logger.Sugar()}
}

func (m *PostgresDBManager) Close() {
	m.dbpool.Close()
}

func (m *PostgresDBManager) CreateFileRecordsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS file_records (
		id SERIAL PRIMARY KEY,
		file_name VARCHAR(1024) NOT NULL,
		processed_at TIMESTAMP NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('DONE', 'DONE_WITH_ERRORS', 'PROCESSING', 'FATAL')),
		checksum VARCHAR(64),
		record_count INTEGER NOT NULL DEFAULT 0,
		errors jsonb
	);`

	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error creating file_records table: %v", err)
	}

	return nil
}

func (m *PostgresDBManager) CreateCertificateRecordsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS certificate_records (
		id BIGSERIAL PRIMARY KEY,
		certificate_id VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		team_name VARCHAR(255) NOT NULL DEFAULT '',
		certificate_type VARCHAR(32) NOT NULL,
		project_title TEXT NOT NULL DEFAULT '',
		download_url TEXT NOT NULL DEFAULT '',
		file_id INTEGER,
		checksum VARCHAR(64) NOT NULL
	);`

	_, err := m.dbpool.Exec(m.ctx, query)
	if err != nil {
		return fmt.Errorf("error creating certificate_records table: %v", err)
	}

	return nil
}

func (m *PostgresDBManager) InsertFileRecord(fileName string, date time.Time, status string, checksum string) (int, error) {
	query := `
	INSERT INTO file_records (file_name, processed_at, status, checksum)
	VALUES ($1, $2, $3, $4)
	RETURNING id;`

	var fileID int
	err := m.dbpool.QueryRow(m.ctx, query, fileName, date, status, checksum).Scan(&fileID)
	if err != nil {
		return 0, fmt.Errorf("error inserting file record: %v", err)
	}

	return fileID, nil
}

func (m *PostgresDBManager) UpdateFileStatus(fileID int, status string, recordCount int, errors any) error {
	payload, err := json.Marshal(errors)
	if err != nil {
		return fmt.Errorf("error encoding errors for file %d: %w", fileID, err)
	}

	query := `
	UPDATE file_records
	SET status = $1,
		record_count = $2,
		errors = $3
	WHERE id = $4;`

	_, err = m.dbpool.Exec(m.ctx, query, status, recordCount, string(payload), fileID)
	if err != nil {
		return fmt.Errorf("error updating file status: %v", err)
	}

	return nil
}

func (m *PostgresDBManager) IsFileAlreadyProcessed(checksum string) (bool, error) {
	query := `
	SELECT id
	FROM file_records
	WHERE checksum = $1 AND status IN ('DONE', 'DONE_WITH_ERRORS')
	LIMIT 1;`

	var id int

	err := m.dbpool.QueryRow(m.ctx, query, checksum).Scan(&id)

	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error finding file record by checksum: %v", err)
	}

	return true, nil
}

func (m *PostgresDBManager) copyCertificatesIntoStagingTable(tx pgx.Tx, records []*models.ParsedRecord) error {
	columnNames := []string{
		"certificate_id", "name", "email", "team_name", "certificate_type", "project_title", "download_url", "file_id", "checksum",
	}

	copySource := pgx.CopyFromSlice(len(records), func(i int) ([]interface{}, error) {
		r := records[i]
		c := r.Certificate
		return []interface{}{c.CertificateID, c.Name, c.Email, c.TeamName, string(c.CertificateType), c.ProjectTitle, c.DownloadURL, r.FileID, r.CheckSum},
			nil
	})

	_, err := tx.CopyFrom(
		m.ctx,
		pgx.Identifier{certificateStagingTable},
		columnNames,
		copySource,
	)

	return err
}

// UpsertCertificates bulk loads a batch through a transaction-scoped staging
// table, then merges it by certificate id. Existing rows keep their position.
func (m *PostgresDBManager) UpsertCertificates(records []*models.ParsedRecord) error {
	records = dedupeLatest(records)
	if len(records) == 0 {
		return nil
	}

	tx, err := m.dbpool.Begin(m.ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %v", err)
	}
	defer tx.Rollback(m.ctx)

	stagingQuery := fmt.Sprintf(
		`CREATE TEMP TABLE IF NOT EXISTS %s (LIKE certificate_records INCLUDING DEFAULTS) ON COMMIT DROP;`,
		pgx.Identifier{certificateStagingTable}.Sanitize())
	if _, err := tx.Exec(m.ctx, stagingQuery); err != nil {
		return fmt.Errorf("error creating staging table: %v", err)
	}

	m.log.Debugf("Bulk loading %d certificates into staging table %s", len(records), certificateStagingTable)
	if err := m.copyCertificatesIntoStagingTable(tx, records); err != nil {
		return fmt.Errorf("unable to copy certificates to staging table: %v", err)
	}

	mergeQuery := fmt.Sprintf(`
	INSERT INTO certificate_records (certificate_id, name, email, team_name, certificate_type, project_title, download_url, file_id, checksum)
	SELECT certificate_id, name, email, team_name, certificate_type, project_title, download_url, file_id, checksum
	FROM %s
	ORDER BY id
	ON CONFLICT (certificate_id) DO UPDATE SET
		name = EXCLUDED.name,
		email = EXCLUDED.email,
		team_name = EXCLUDED.team_name,
		certificate_type = EXCLUDED.certificate_type,
		project_title = EXCLUDED.project_title,
		download_url = EXCLUDED.download_url,
		file_id = EXCLUDED.file_id,
		checksum = EXCLUDED.checksum
	WHERE certificate_records.checksum <> EXCLUDED.checksum;
	`, pgx.Identifier{certificateStagingTable}.Sanitize())

	if _, err := tx.Exec(m.ctx, mergeQuery); err != nil {
		return fmt.Errorf("error merging certificates from staging table: %v", err)
	}

	return tx.Commit(m.ctx)
}

func (m *PostgresDBManager) ListCertificates(ctx context.Context) ([]models.Certificate, error) {
	query := `
	SELECT name, email, team_name, certificate_type, certificate_id, project_title, download_url
	FROM certificate_records
	ORDER BY id;`

	rows, err := m.dbpool.Query(ctx, query)
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
