package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/models"
)

// WriteJSON replaces path atomically so the portal never reads half a file.
func WriteJSON(path string, certs []models.Certificate) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".certificates-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if err := models.EncodeCertificates(tmp, certs); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode certificates: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ExportMirror writes the whole certificate mirror to path and returns the
// number of records written.
func ExportMirror(ctx context.Context, dbManager database.DBManager, path string) (int, error) {
	certs, err := dbManager.ListCertificates(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read certificate mirror: %w", err)
	}
	if err := WriteJSON(path, certs); err != nil {
		return 0, err
	}
	return len(certs), nil
}
