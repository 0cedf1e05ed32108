package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "public", "certificates-data.json")
	certs := models.SampleCertificates()

	require.NoError(t, WriteJSON(path, certs))
	require.NoError(t, WriteJSON(path, certs[:1]))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded []models.Certificate
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, certs[:1], decoded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestExportMirror(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	dbManager := new(MockDBManager)
	dbManager.On("ListCertificates", mock.Anything).Return(models.SampleCertificates(), nil).Once()

	n, err := ExportMirror(context.Background(), dbManager, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, path)

	dbManager.On("ListCertificates", mock.Anything).Return(nil, errors.New("no such table")).Once()
	_, err = ExportMirror(context.Background(), dbManager, filepath.Join(t.TempDir(), "other.json"))
	assert.ErrorContains(t, err, "no such table")
	dbManager.AssertExpectations(t)
}
