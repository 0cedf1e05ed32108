package ingestion

import (
	"sync"

	"github.com/aimlclub/hackathon-portal/internal/models"
)

type ISetup interface {
	build() (models.SetupReturn, error)
}

// Setup owns the channels and bookkeeping shared by the pipeline workers.
// It sits behind ISetup so tests can hand the service prepared channels.
type Setup struct {
	ResultsChannelSize int
}

func (h Setup) build() (models.SetupReturn, error) {
	channels := models.ExtractionChannels{
		Results: make(chan *models.ParsedRecord, h.ResultsChannelSize),
		Errors:  make(chan models.AppError, 100),
		Jobs:    make(chan models.FileProcessingJob, 100),
	}

	var parserWg, sinkWg, mainWg sync.WaitGroup
	fileMap := make(models.FileMap)
	skipped := make([]string, 0)
	return models.SetupReturn{
		Channels:      &channels,
		WaitGroups:    &models.ExtractionWaitGroups{ParserWg: &parserWg, SinkWg: &sinkWg, MainWg: &mainWg},
		FileMap:       &fileMap,
		FileErrorsMap: &models.FileErrorMap{Errors: make(map[int][]models.AppError)},
		RecordCounts:  &models.FileRecordCounts{Counts: make(map[int]int)},
		SkippedFiles:  &skipped,
	}, nil
}
