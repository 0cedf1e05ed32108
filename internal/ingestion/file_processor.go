package ingestion

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/internal/parser"
	"go.uber.org/zap"
)

// Processor defines the interface for file processing operations.
type Processor interface {
	ScanForFiles(rootPath string) ([]models.FileInfo, error)
	UpdateFileStatus(fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap, counts *models.FileRecordCounts) error
}

// FileProcessor discovers spreadsheets and records how each one ended.
// Without a ledger the final statuses are only logged.
type FileProcessor struct {
	dbManager database.DBManager
	log       *zap.SugaredLogger
}

func NewFileProcessor(dbManager database.DBManager, logger *zap.Logger) *FileProcessor {
	return &FileProcessor{
		dbManager: dbManager,
		log:       logger.Sugar(),
	}
}

// ScanForFiles returns the spreadsheet named by rootPath, or every supported
// spreadsheet below it when it is a directory, in lexical order. A file named
// directly must be a supported format; inside a directory other files,
// hidden files and office lock files are skipped.
func (fp *FileProcessor) ScanForFiles(rootPath string) ([]models.FileInfo, error) {
	root, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", rootPath, err)
	}

	if !root.IsDir() {
		if _, err := parser.DetectFormat(rootPath); err != nil {
			return nil, err
		}
		return []models.FileInfo{{Path: rootPath}}, nil
	}

	var fileInfos []models.FileInfo
	fp.log.Infof("Scanning for spreadsheets in: %s", rootPath)

	err = filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != rootPath && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "~$") {
			return nil
		}

		if _, err := parser.DetectFormat(path); err != nil {
			fp.log.Debugf("Skipping %s: %v", path, err)
			return nil
		}
		fileInfos = append(fileInfos, models.FileInfo{Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", rootPath, err)
	}

	fp.log.Infof("Found %d spreadsheets to process.", len(fileInfos))
	return fileInfos, nil
}

// FileStatus derives the ledger status of a file from its collected errors.
func FileStatus(appErrors []models.AppError) string {
	for _, e := range appErrors {
		if e.Fatal {
			return database.FILE_STATUS_FATAL
		}
	}
	if len(appErrors) > 0 {
		return database.FILE_STATUS_DONE_WITH_ERRORS
	}
	return database.FILE_STATUS_DONE
}

func (fp *FileProcessor) UpdateFileStatus(fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap, counts *models.FileRecordCounts) error {
	var failed int
	for fileID, path := range *fileMap {
		appErrors := fileErrorsMap.Errors[fileID]
		status := FileStatus(appErrors)
		recordCount := counts.Get(fileID)
		if status == database.FILE_STATUS_FATAL {
			recordCount = 0
		}

		fp.log.Infof("File %s (ID: %d) finished as %s with %d records and %d errors", path, fileID, status, recordCount, len(appErrors))
		if fp.dbManager == nil {
			continue
		}

		if appErrors == nil {
			appErrors = []models.AppError{}
		}
		if err := fp.dbManager.UpdateFileStatus(fileID, status, recordCount, appErrors); err != nil {
			fp.log.Errorf("Failed to update status for fileID %d: %v", fileID, err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to update the status of %d files", failed)
	}
	return nil
}
