package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/internal/parser"
	"github.com/aimlclub/hackathon-portal/pkg/checksum"
	"go.uber.org/zap"
)

// unassignedFileID collects errors raised before a file got an id.
const unassignedFileID = 0

type Runner[T any] struct {
	Run T
}

type AsyncWorkerConfig struct {
	DBBatchSize      int
	MaxErrorsPerFile int
}

// Worker defines the interface for asynchronous processing tasks.
type Worker interface {
	WithChannels(channels *models.ExtractionChannels) Worker
	WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker
	SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error)
	SetupParserWorkers(numberOfWorkers int, counts *models.FileRecordCounts) (Runner[func()], *sync.WaitGroup, error)
	SetupSinkWorkers(numberOfWorkers int) (Runner[func(RecordSink)], *sync.WaitGroup, error)
	SetupJobDispatcherWorker(ctx context.Context, fileInfos []models.FileInfo, fileMap models.FileMap, skipped *[]string) (Runner[func()], *sync.WaitGroup, error)
}

// AsyncWorker runs the pipeline stages. dbManager is the import ledger and
// may be nil, in which case files are numbered in dispatch order.
type AsyncWorker struct {
	config     AsyncWorkerConfig
	dbManager  database.DBManager
	channels   *models.ExtractionChannels
	waitGroups *models.ExtractionWaitGroups
	log        *zap.SugaredLogger
}

func NewAsyncWorker(dbManager database.DBManager, cfg AsyncWorkerConfig, logger *zap.Logger) *AsyncWorker {
	if cfg.DBBatchSize <= 0 {
		cfg.DBBatchSize = 1
	}
	if cfg.MaxErrorsPerFile <= 0 {
		cfg.MaxErrorsPerFile = 100
	}
	return &AsyncWorker{
		dbManager: dbManager,
		config:    cfg,
		log:       logger.Sugar(),
	}
}

func (w *AsyncWorker) WithChannels(channels *models.ExtractionChannels) Worker {
	w.channels = channels
	return w
}

func (w *AsyncWorker) WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker {
	w.waitGroups = waitGroups
	return w
}

func (w *AsyncWorker) ParserWorker(counts *models.FileRecordCounts) {
	defer w.waitGroups.ParserWg.Done()
	for job := range w.channels.Jobs {
		w.log.Infof("Parser worker started job for file %s (ID: %d)", job.FilePath, job.FileID)
		n, err := parser.ParseFile(job.FilePath, job.FileID, w.channels.Results, w.channels.Errors)
		if err != nil {
			w.channels.Errors <- models.AppError{FileID: job.FileID, Message: "Error reading file", Err: err, Fatal: true, Malformed: true}
			continue
		}
		counts.Add(job.FileID, n)
		w.log.Infof("Parser worker finished job for file %s (ID: %d): %d records", job.FilePath, job.FileID, n)
	}
}

func (w *AsyncWorker) SetupParserWorkers(numberOfWorkers int, counts *models.FileRecordCounts) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			for i := 1; i <= numberOfWorkers; i++ {
				w.waitGroups.ParserWg.Add(1)
				go w.ParserWorker(counts)
			}
		},
	}, w.waitGroups.ParserWg, nil
}

func (w *AsyncWorker) SinkWorker(workerId int, sink RecordSink) {
	defer w.waitGroups.SinkWg.Done()
	w.log.Debugf("Sink worker %d: starting", workerId)
	batch := make([]*models.ParsedRecord, 0, w.config.DBBatchSize)

	for record := range w.channels.Results {
		batch = append(batch, record)
		if len(batch) >= w.config.DBBatchSize {
			w.log.Debugf("Sink worker %d: writing batch of %d records", workerId, len(batch))
			w.writeBatch(sink, batch)
			batch = make([]*models.ParsedRecord, 0, w.config.DBBatchSize)
		}
	}

	if len(batch) > 0 {
		w.log.Debugf("Sink worker %d: writing final batch of %d records", workerId, len(batch))
		w.writeBatch(sink, batch)
	}

	w.log.Debugf("Sink worker %d finished", workerId)
}

// writeBatch reports a failed write once for every file in the batch. Lost
// records make the file fatal so the ledger does not mark it as imported.
func (w *AsyncWorker) writeBatch(sink RecordSink, batch []*models.ParsedRecord) {
	err := sink.Write(batch)
	if err == nil {
		return
	}

	fileIDs := make(map[int]bool)
	for _, record := range batch {
		fileIDs[record.FileID] = true
	}
	for fileID := range fileIDs {
		w.channels.Errors <- models.AppError{FileID: fileID, Message: "Failed to store batch of certificates", Err: err, Fatal: true}
	}
}

func (w *AsyncWorker) SetupSinkWorkers(numberOfWorkers int) (Runner[func(RecordSink)], *sync.WaitGroup, error) {
	return Runner[func(RecordSink)]{
		Run: func(sink RecordSink) {
			for i := 1; i <= numberOfWorkers; i++ {
				w.waitGroups.SinkWg.Add(1)
				go w.SinkWorker(i, sink)
			}
		},
	}, w.waitGroups.SinkWg, nil
}

func (w *AsyncWorker) ErrorWorker(fileErrorsMap *models.FileErrorMap) {
	defer w.waitGroups.MainWg.Done()
	dropped := make(map[int]int)

	for appErr := range w.channels.Errors {
		w.log.Warnf("Caught error: %s", appErr.Error())

		fileErrorsMap.Mu.Lock()
		// past the cap a file is most likely not a certificate sheet at all;
		// fatal errors are always kept so the status stays correct
		if appErr.Fatal || len(fileErrorsMap.Errors[appErr.FileID]) < w.config.MaxErrorsPerFile {
			fileErrorsMap.Errors[appErr.FileID] = append(fileErrorsMap.Errors[appErr.FileID], appErr)
		} else {
			dropped[appErr.FileID]++
		}
		fileErrorsMap.Mu.Unlock()
	}

	for fileID, n := range dropped {
		w.log.Warnf("File %d has too many errors, %d more were not recorded", fileID, n)
	}
}

func (w *AsyncWorker) SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error) {
	return Runner[func(*models.FileErrorMap)]{
		Run: func(fileErrorsMap *models.FileErrorMap) {
			w.waitGroups.MainWg.Add(1)
			go w.ErrorWorker(fileErrorsMap)
		},
	}, w.waitGroups.MainWg, nil
}

func (w *AsyncWorker) PreprocessAndDispatchJobs(
	ctx context.Context,
	fileInfos []models.FileInfo,
	fileMap models.FileMap,
	skipped *[]string,
) {
	defer close(w.channels.Jobs)
	defer w.waitGroups.MainWg.Done()

	nextID := 1
	for _, fileInfo := range fileInfos {
		if ctx.Err() != nil {
			w.log.Warnf("Dispatch cancelled: %v", ctx.Err())
			w.channels.Errors <- models.AppError{FileID: unassignedFileID, Message: "Import cancelled", Err: ctx.Err(), Fatal: true}
			return
		}

		sum, err := checksum.GetFileChecksum(fileInfo.Path)
		if err != nil {
			w.channels.Errors <- models.AppError{FileID: unassignedFileID, Message: "Failed to calculate checksum for " + fileInfo.Path, Err: err, Fatal: true}
			continue
		}

		var fileID int
		if w.dbManager == nil {
			fileID = nextID
			nextID++
		} else {
			isProcessed, err := w.dbManager.IsFileAlreadyProcessed(sum)
			if err != nil {
				w.channels.Errors <- models.AppError{FileID: unassignedFileID, Message: "Failed to check import ledger for " + fileInfo.Path, Err: err, Fatal: true}
				continue
			}
			if isProcessed {
				w.log.Infof("File %s (checksum: %s) has already been imported. Skipping.", fileInfo.Path, sum)
				*skipped = append(*skipped, fileInfo.Path)
				continue
			}

			fileID, err = w.dbManager.InsertFileRecord(fileInfo.Path, time.Now(), database.FILE_STATUS_PROCESSING, sum)
			if err != nil {
				w.channels.Errors <- models.AppError{FileID: unassignedFileID, Message: "Failed to insert file record for " + fileInfo.Path, Err: err, Fatal: true}
				continue
			}
		}

		fileMap[fileID] = fileInfo.Path

		w.log.Infof("Dispatching job for file: %s (FileID: %d)", fileInfo.Path, fileID)
		select {
		case w.channels.Jobs <- models.FileProcessingJob{FilePath: fileInfo.Path, FileID: fileID}:
		case <-ctx.Done():
			w.channels.Errors <- models.AppError{FileID: fileID, Message: "Import cancelled", Err: ctx.Err(), Fatal: true}
			return
		}
	}
}

func (w *AsyncWorker) SetupJobDispatcherWorker(ctx context.Context, fileInfos []models.FileInfo, fileMap models.FileMap, skipped *[]string) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			w.waitGroups.MainWg.Add(1)
			go w.PreprocessAndDispatchJobs(ctx, fileInfos, fileMap, skipped)
		},
	}, w.waitGroups.MainWg, nil
}
