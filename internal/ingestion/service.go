package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aimlclub/hackathon-portal/internal/config"
	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/internal/parser"
	"go.uber.org/zap"
)

// ErrMalformedSpreadsheet fails a run that cannot be converted as a whole.
// Its text is the message shown to the admin.
var ErrMalformedSpreadsheet = errors.New("Error reading file. Please check the format.")

var ErrNoSpreadsheets = errors.New("no spreadsheet files found")

// Report summarises one run of the pipeline.
type Report struct {
	FilesFound     int
	FilesProcessed int
	FilesSkipped   []string
	Records        int
	Errors         []models.AppError
}

type IngestionService struct {
	dbManager     database.DBManager
	setupService  ISetup
	asyncWorker   Worker
	fileProcessor Processor
	config        config.Config
	strict        bool
	log           *zap.SugaredLogger
}

func NewIngestionService(dbManager database.DBManager, setupService ISetup, worker Worker, processor Processor, cfg config.Config, logger *zap.Logger) *IngestionService {
	return &IngestionService{
		dbManager:     dbManager,
		setupService:  setupService,
		asyncWorker:   worker,
		fileProcessor: processor,
		config:        cfg,
		log:           logger.Sugar(),
	}
}

// New wires the default pipeline. dbManager may be nil for a stateless run.
func New(dbManager database.DBManager, cfg config.Config, logger *zap.Logger) *IngestionService {
	worker := NewAsyncWorker(dbManager, AsyncWorkerConfig{
		DBBatchSize:      cfg.DBBatchSize,
		MaxErrorsPerFile: cfg.MaxErrorsPerFile,
	}, logger)
	return NewIngestionService(
		dbManager,
		Setup{ResultsChannelSize: cfg.ResultsChannelSize},
		worker,
		NewFileProcessor(dbManager, logger),
		cfg,
		logger,
	)
}

// WithStrictRows makes invalid rows fail the run like an unreadable file.
func (h *IngestionService) WithStrictRows(strict bool) *IngestionService {
	h.strict = strict
	return h
}

// Execute reads every spreadsheet under filesPath into sink. A file that
// cannot be read fails the run with ErrMalformedSpreadsheet; cancellation,
// ledger and sink failures are returned as themselves. Invalid rows are
// reported in the Report and only fail the run in strict mode.
func (h *IngestionService) Execute(ctx context.Context, filesPath string, sink RecordSink) (*Report, error) {
	environmentConfig, err := h.setupService.build()
	if err != nil {
		return nil, err
	}
	channels, waitGroups, fileMap, fileErrorsMap := environmentConfig.GetValues()

	fileInfos, err := h.fileProcessor.ScanForFiles(filesPath)
	if err != nil {
		h.log.Errorf("Failed to scan files: %v", err)
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSpreadsheet, err)
		}
		return nil, err
	}
	if len(fileInfos) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoSpreadsheets, filesPath)
	}

	// must happen before any runner starts
	h.asyncWorker.WithChannels(channels).WithWaitGroups(waitGroups)

	// Step 1: checksum, ledger lookup and job dispatch. Shares MainWg with the error worker.
	dispatcherRunner, _, err := h.asyncWorker.SetupJobDispatcherWorker(ctx, fileInfos, *fileMap, environmentConfig.SkippedFiles)
	if err != nil {
		return nil, err
	}
	dispatcherRunner.Run()

	// Step 2: error aggregation per file
	errorWorkerRunner, mainWaitGroup, err := h.asyncWorker.SetupErrorWorker()
	if err != nil {
		return nil, err
	}
	errorWorkerRunner.Run(fileErrorsMap)

	// Step 3: parser workers read whole files and emit records
	numParsers := h.config.NumParserWorkers
	if numParsers <= 0 {
		numParsers = 1
	}
	parserRunner, parserWaitGroup, err := h.asyncWorker.SetupParserWorkers(numParsers, environmentConfig.RecordCounts)
	if err != nil {
		return nil, err
	}
	parserRunner.Run()

	// Step 4: a single sink worker batches records, keeping each file's rows in order
	sinkRunner, sinkWaitGroup, err := h.asyncWorker.SetupSinkWorkers(1)
	if err != nil {
		return nil, err
	}
	sinkRunner.Run(sink)

	h.log.Info("Waiting for parser workers to finish...")
	parserWaitGroup.Wait()
	close(channels.Results)

	h.log.Info("Waiting for sink workers to finish...")
	sinkWaitGroup.Wait()

	close(channels.Errors)
	h.log.Info("Waiting for dispatcher and error worker to finish...")
	mainWaitGroup.Wait()

	if err := h.fileProcessor.UpdateFileStatus(fileErrorsMap, fileMap, environmentConfig.RecordCounts); err != nil {
		h.log.Errorf("Failed to update file statuses: %v", err)
	}

	report := &Report{
		FilesFound:     len(fileInfos),
		FilesProcessed: len(*fileMap),
		FilesSkipped:   *environmentConfig.SkippedFiles,
		Errors:         flattenErrors(fileErrorsMap),
	}
	for fileID := range *fileMap {
		report.Records += environmentConfig.RecordCounts.Get(fileID)
	}

	if fatal := firstFatal(report.Errors); fatal != nil {
		if fatal.Malformed {
			return report, fmt.Errorf("%w: %v", ErrMalformedSpreadsheet, fatal)
		}
		return report, fmt.Errorf("import failed: %w", fatal)
	}
	if h.strict && len(report.Errors) > 0 {
		return report, fmt.Errorf("%w: %d invalid rows", ErrMalformedSpreadsheet, len(report.Errors))
	}

	h.log.Infof("Ingestion finished: %d files, %d records, %d row errors", report.FilesProcessed, report.Records, len(report.Errors))
	return report, nil
}

func flattenErrors(fileErrorsMap *models.FileErrorMap) []models.AppError {
	fileErrorsMap.Mu.Lock()
	defer fileErrorsMap.Mu.Unlock()

	all := make([]models.AppError, 0)
	for _, errs := range fileErrorsMap.Errors {
		all = append(all, errs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].FileID != all[j].FileID {
			return all[i].FileID < all[j].FileID
		}
		return all[i].Row < all[j].Row
	})
	return all
}

// firstFatal prefers failures outside the spreadsheets, such as a
// cancelled run or an unreachable ledger, over malformed files.
func firstFatal(appErrors []models.AppError) *models.AppError {
	var malformed *models.AppError
	for i := range appErrors {
		if !appErrors[i].Fatal {
			continue
		}
		if !appErrors[i].Malformed {
			return &appErrors[i]
		}
		if malformed == nil {
			malformed = &appErrors[i]
		}
	}
	return malformed
}
