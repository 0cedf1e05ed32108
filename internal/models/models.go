package models

import (
	"encoding/json"
	"fmt"
	"sync"
)

// AppError is an error raised while importing a spreadsheet file.
// Row is the 1-based spreadsheet row, zero when the error concerns the whole file.
// Malformed marks a fatal error caused by the spreadsheet itself rather than
// by the ledger, the sink or cancellation.
type AppError struct {
	FileID      int          `json:"file_id"`
	Row         int          `json:"row,omitempty"`
	Message     string       `json:"message"`
	Err         error        `json:"-"`
	Fatal       bool         `json:"fatal,omitempty"`
	Malformed   bool         `json:"malformed,omitempty"`
	Certificate *Certificate `json:"certificate,omitempty"`
}

func (e *AppError) Error() string {
	var details string
	if e.Certificate != nil {
		certJSON, err := json.Marshal(e.Certificate)
		if err != nil {
			details = "failed to marshal certificate to JSON"
		} else {
			details = string(certJSON)
		}
	}

	prefix := fmt.Sprintf("FileID %d", e.FileID)
	if e.Row > 0 {
		prefix = fmt.Sprintf("FileID %d row %d", e.FileID, e.Row)
	}

	if e.Err != nil {
		if details != "" {
			return fmt.Sprintf("%s: %s - %v - Certificate: %s", prefix, e.Message, e.Err, details)
		}
		return fmt.Sprintf("%s: %s - %v", prefix, e.Message, e.Err)
	}

	if details != "" {
		return fmt.Sprintf("%s: %s - Certificate: %s", prefix, e.Message, details)
	}

	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// MarshalJSON stores the wrapped error text alongside the message so the
// ledger keeps a readable reason.
func (e AppError) MarshalJSON() ([]byte, error) {
	type alias AppError
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(struct {
		alias
		Cause string `json:"cause,omitempty"`
	}{alias(e), cause})
}

// ParsedRecord is a certificate read from a spreadsheet row.
type ParsedRecord struct {
	Certificate Certificate
	FileID      int
	Row         int
	CheckSum    string
}

type FileProcessingJob struct {
	FilePath string
	FileID   int
}

type FileInfo struct {
	Path string
}

type FileErrorMap struct {
	Errors map[int][]AppError
	Mu     sync.Mutex
}

type ExtractionChannels struct {
	Results chan *ParsedRecord
	Errors  chan AppError
	Jobs    chan FileProcessingJob
}

type ExtractionWaitGroups struct {
	ParserWg *sync.WaitGroup
	SinkWg   *sync.WaitGroup
	MainWg   *sync.WaitGroup
}

// FileMap maps file ids to their paths.
type FileMap = map[int]string

// FileRecordCounts holds the number of valid records parsed per file.
type FileRecordCounts struct {
	Counts map[int]int
	Mu     sync.Mutex
}

func (c *FileRecordCounts) Add(fileID, n int) {
	c.Mu.Lock()
	c.Counts[fileID] += n
	c.Mu.Unlock()
}

func (c *FileRecordCounts) Get(fileID int) int {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	return c.Counts[fileID]
}

type SetupReturn struct {
	Channels      *ExtractionChannels
	WaitGroups    *ExtractionWaitGroups
	FileMap       *FileMap
	FileErrorsMap *FileErrorMap
	RecordCounts  *FileRecordCounts
	SkippedFiles  *[]string
}

func (s *SetupReturn) GetValues() (*ExtractionChannels, *ExtractionWaitGroups, *FileMap, *FileErrorMap) {
	return s.Channels, s.WaitGroups, s.FileMap, s.FileErrorsMap
}
