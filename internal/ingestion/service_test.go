package ingestion

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/aimlclub/hackathon-portal/internal/config"
	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() config.Config {
	return config.Config{
		NumParserWorkers:   3,
		DBBatchSize:        2,
		ResultsChannelSize: 4,
		MaxErrorsPerFile:   100,
	}
}

func rowWithID(name, id, certType string) CSVRow {
	row := newDefaultCSVRow()
	row.Name = name
	row.CertificateID = id
	row.CertificateType = certType
	return row
}

func TestIngestionService_Execute_Convert(t *testing.T) {
	t.Run("keeps input order across files and rows", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "1_winners.csv", createTestCSVContent([]CSVRow{
			rowWithID("Ann", "HWS2025-WIN-001", "winner"),
			rowWithID("Bob", "HWS2025-RUN-002", "Runner Up"),
		}))
		writeTestFile(t, dir, "2_participants.csv", createTestCSVContent([]CSVRow{
			rowWithID("Cid", "HWS2025-PAR-003", "participation"),
			rowWithID("Dee", "HWS2025-PAR-004", "participation"),
			rowWithID("Eve", "HWS2025-PAR-005", "participation"),
		}))

		sink := NewMemorySink()
		report, err := New(nil, testConfig(), zap.NewNop()).Execute(context.Background(), dir, sink)
		require.NoError(t, err)

		assert.Equal(t, 2, report.FilesFound)
		assert.Equal(t, 2, report.FilesProcessed)
		assert.Equal(t, 5, report.Records)
		assert.Empty(t, report.Errors)

		names := []string{}
		for _, c := range sink.Certificates() {
			names = append(names, c.Name)
		}
		if diff := cmp.Diff([]string{"Ann", "Bob", "Cid", "Dee", "Eve"}, names); diff != "" {
			t.Errorf("unexpected order (-want +got):\n%s", diff)
		}
		assert.Equal(t, models.CertificateRunnerUp, sink.Certificates()[1].CertificateType)
	})

	t.Run("invalid rows are reported, not fatal", func(t *testing.T) {
		dir := t.TempDir()
		bad := rowWithID("", "HWS2025-PAR-009", "participation")
		path := writeTestFile(t, dir, "certs.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow(), bad}))

		sink := NewMemorySink()
		report, err := New(nil, testConfig(), zap.NewNop()).Execute(context.Background(), path, sink)
		require.NoError(t, err)

		assert.Equal(t, 1, report.Records)
		require.Len(t, report.Errors, 1)
		assert.Equal(t, 3, report.Errors[0].Row)
		assert.Len(t, sink.Certificates(), 1)
	})

	t.Run("strict mode fails on invalid rows", func(t *testing.T) {
		dir := t.TempDir()
		bad := rowWithID("Zed", "HWS2025-PAR-009", "gold")
		path := writeTestFile(t, dir, "certs.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow(), bad}))

		report, err := New(nil, testConfig(), zap.NewNop()).WithStrictRows(true).Execute(context.Background(), path, NewMemorySink())
		assert.ErrorIs(t, err, ErrMalformedSpreadsheet)
		require.NotNil(t, report)
		assert.Len(t, report.Errors, 1)
	})

	t.Run("unreadable workbook fails the whole run", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "good.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow()}))
		writeTestFile(t, dir, "broken.xlsx", "not a workbook")

		report, err := New(nil, testConfig(), zap.NewNop()).Execute(context.Background(), dir, NewMemorySink())
		assert.ErrorIs(t, err, ErrMalformedSpreadsheet)
		assert.Equal(t, "Error reading file. Please check the format.", ErrMalformedSpreadsheet.Error())
		require.NotNil(t, report)
		assert.True(t, report.Errors[len(report.Errors)-1].Fatal)
	})

	t.Run("legacy xls is rejected", func(t *testing.T) {
		path := writeTestFile(t, t.TempDir(), "old.xls", "binary")

		_, err := New(nil, testConfig(), zap.NewNop()).Execute(context.Background(), path, NewMemorySink())
		assert.ErrorIs(t, err, ErrMalformedSpreadsheet)
	})

	t.Run("directory without spreadsheets", func(t *testing.T) {
		dir := t.TempDir()
		writeTestFile(t, dir, "readme.md", "nothing here")

		_, err := New(nil, testConfig(), zap.NewNop()).Execute(context.Background(), dir, NewMemorySink())
		assert.ErrorIs(t, err, ErrNoSpreadsheets)
	})
}

func TestIngestionService_Execute_Import(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "certs.csv", createTestCSVContent([]CSVRow{
		rowWithID("Ann", "HWS2025-WIN-001", "winner"),
		rowWithID("Bob", "HWS2025-PAR-002", "participation"),
		rowWithID("Cid", "HWS2025-PAR-003", "participation"),
	}))

	dbManager := new(MockDBManager)
	dbManager.On("IsFileAlreadyProcessed", mock.AnythingOfType("string")).Return(false, nil).Once()
	dbManager.On("InsertFileRecord", path, mock.AnythingOfType("time.Time"), database.FILE_STATUS_PROCESSING, mock.AnythingOfType("string")).Return(7, nil).Once()
	dbManager.On("UpsertCertificates", mock.MatchedBy(func(records []*models.ParsedRecord) bool {
		return len(records) == 2 && records[0].FileID == 7
	})).Return(nil).Once()
	dbManager.On("UpsertCertificates", mock.MatchedBy(func(records []*models.ParsedRecord) bool {
		return len(records) == 1 && records[0].Certificate.Name == "Cid"
	})).Return(nil).Once()
	dbManager.On("UpdateFileStatus", 7, database.FILE_STATUS_DONE, 3, []models.AppError{}).Return(nil).Once()

	report, err := New(dbManager, testConfig(), zap.NewNop()).Execute(context.Background(), path, NewDBSink(dbManager))
	require.NoError(t, err)
	assert.Equal(t, 3, report.Records)
	assert.Empty(t, report.FilesSkipped)
	dbManager.AssertExpectations(t)
}

func TestIngestionService_Execute_Reimport(t *testing.T) {
	path := writeTestFile(t, t.TempDir(), "certs.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow()}))

	dbManager := new(MockDBManager)
	dbManager.On("IsFileAlreadyProcessed", mock.AnythingOfType("string")).Return(true, nil).Once()

	report, err := New(dbManager, testConfig(), zap.NewNop()).Execute(context.Background(), path, NewDBSink(dbManager))
	require.NoError(t, err)
	assert.Equal(t, []string{path}, report.FilesSkipped)
	assert.Equal(t, 0, report.FilesProcessed)
	dbManager.AssertNotCalled(t, "UpsertCertificates", mock.Anything)
	dbManager.AssertExpectations(t)
}

func TestIngestionService_Execute_SetupFailures(t *testing.T) {
	const path = "some/path"

	t.Run("build error", func(t *testing.T) {
		setup := new(MockSetup)
		worker := new(MockWorker)
		processor := new(MockProcessor)
		setup.On("build").Return(models.SetupReturn{}, errors.New("build error")).Once()

		service := NewIngestionService(nil, setup, worker, processor, testConfig(), zap.NewNop())
		_, err := service.Execute(context.Background(), path, NewMemorySink())

		assert.EqualError(t, err, "build error")
		setup.AssertExpectations(t)
		processor.AssertNotCalled(t, "ScanForFiles", mock.Anything)
	})

	t.Run("scan error", func(t *testing.T) {
		setup := new(MockSetup)
		worker := new(MockWorker)
		processor := new(MockProcessor)
		setupReturn, err := Setup{ResultsChannelSize: 1}.build()
		require.NoError(t, err)
		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForFiles", path).Return(nil, errors.New("scan error")).Once()

		service := NewIngestionService(nil, setup, worker, processor, testConfig(), zap.NewNop())
		_, err = service.Execute(context.Background(), path, NewMemorySink())

		assert.EqualError(t, err, "scan error")
		processor.AssertExpectations(t)
		worker.AssertNotCalled(t, "WithChannels", mock.Anything)
	})

	t.Run("runner setup error", func(t *testing.T) {
		setup := new(MockSetup)
		worker := new(MockWorker)
		processor := new(MockProcessor)
		setupReturn, err := Setup{ResultsChannelSize: 1}.build()
		require.NoError(t, err)
		scanResult := []models.FileInfo{{Path: filepath.Join("some", "path", "certs.csv")}}

		setup.On("build").Return(setupReturn, nil).Once()
		processor.On("ScanForFiles", path).Return(scanResult, nil).Once()
		worker.On("WithChannels", setupReturn.Channels).Return(worker).Once()
		worker.On("WithWaitGroups", setupReturn.WaitGroups).Return(worker).Once()
		worker.On("SetupJobDispatcherWorker", mock.Anything, scanResult, *setupReturn.FileMap, setupReturn.SkippedFiles).
			Return(nil, nil, errors.New("dispatcher error")).Once()

		service := NewIngestionService(nil, setup, worker, processor, testConfig(), zap.NewNop())
		_, err = service.Execute(context.Background(), path, NewMemorySink())

		assert.EqualError(t, err, "dispatcher error")
		worker.AssertExpectations(t)
		worker.AssertNotCalled(t, "SetupErrorWorker")
	})
}

func TestIngestionService_Execute_RunFailures(t *testing.T) {
	t.Run("cancelled run is not reported as a malformed file", func(t *testing.T) {
		path := writeTestFile(t, t.TempDir(), "certs.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow()}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := New(nil, testConfig(), zap.NewNop()).Execute(ctx, path, NewMemorySink())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrMalformedSpreadsheet)
		require.NotNil(t, report)
		assert.Equal(t, 0, report.Records)
	})

	t.Run("ledger failure is returned as itself", func(t *testing.T) {
		path := writeTestFile(t, t.TempDir(), "certs.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow()}))
		ledgerErr := errors.New("connection refused")

		dbManager := new(MockDBManager)
		dbManager.On("IsFileAlreadyProcessed", mock.AnythingOfType("string")).Return(false, ledgerErr).Once()

		_, err := New(dbManager, testConfig(), zap.NewNop()).Execute(context.Background(), path, NewDBSink(dbManager))
		assert.ErrorIs(t, err, ledgerErr)
		assert.NotErrorIs(t, err, ErrMalformedSpreadsheet)
		dbManager.AssertNotCalled(t, "InsertFileRecord", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		dbManager.AssertExpectations(t)
	})

	t.Run("sink failure is returned as itself", func(t *testing.T) {
		path := writeTestFile(t, t.TempDir(), "certs.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow()}))
		writeErr := errors.New("disk full")

		dbManager := new(MockDBManager)
		dbManager.On("IsFileAlreadyProcessed", mock.AnythingOfType("string")).Return(false, nil).Once()
		dbManager.On("InsertFileRecord", path, mock.AnythingOfType("time.Time"), database.FILE_STATUS_PROCESSING, mock.AnythingOfType("string")).Return(3, nil).Once()
		dbManager.On("UpsertCertificates", mock.Anything).Return(writeErr).Once()
		dbManager.On("UpdateFileStatus", 3, database.FILE_STATUS_FATAL, 0, mock.Anything).Return(nil).Once()

		_, err := New(dbManager, testConfig(), zap.NewNop()).Execute(context.Background(), path, NewDBSink(dbManager))
		assert.ErrorIs(t, err, writeErr)
		assert.NotErrorIs(t, err, ErrMalformedSpreadsheet)
		dbManager.AssertExpectations(t)
	})

	t.Run("malformed file wins only when nothing else failed", func(t *testing.T) {
		appErrors := []models.AppError{
			{FileID: 1, Message: "Error reading file", Fatal: true, Malformed: true},
			{FileID: 0, Message: "Import cancelled", Err: context.Canceled, Fatal: true},
		}
		assert.Equal(t, "Import cancelled", firstFatal(appErrors).Message)
		assert.Equal(t, "Error reading file", firstFatal(appErrors[:1]).Message)
		assert.Nil(t, firstFatal([]models.AppError{{Message: "row"}}))
	})
}
