// Package store keeps the portal's in-memory certificate list.
package store

import (
	"bytes"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/aimlclub/hackathon-portal/pkg/checksum"
	"go.uber.org/zap"
)

// RecordStore holds the record list fetched from a Source. Readers get
// snapshots; a load swaps the whole list at once.
type RecordStore struct {
	source Source
	log    *zap.Logger

	mu       sync.RWMutex
	loading  bool
	loaded   bool
	fallback bool
	records  []models.Certificate
	data     []byte
	version  string
	loadedAt time.Time
}

func New(source Source, logger *zap.Logger) *RecordStore {
	return &RecordStore{
		source:  source,
		log:     logger.With(zap.String("source", source.Name())),
		loading: true,
	}
}

// Load fetches the dataset once. When the first fetch fails the sample list
// is installed instead; a failed reload keeps the records already loaded.
// Load never returns the fetch error, it only logs it.
func (s *RecordStore) Load(ctx context.Context) {
	certs, err := s.source.Fetch(ctx)

	s.mu.RLock()
	hadRecords := s.loaded
	s.mu.RUnlock()

	fallback := false
	if err != nil {
		if hadRecords {
			s.log.Warn("Reloading certificates failed, keeping the current list", zap.Error(err))
			return
		}
		s.log.Warn("Loading certificates failed, serving sample data", zap.Error(err))
		certs = models.SampleCertificates()
		fallback = true
	}

	var buf bytes.Buffer
	if err := models.EncodeCertificates(&buf, certs); err != nil {
		s.log.Error("Encoding certificates failed", zap.Error(err))
	}
	data := buf.Bytes()

	s.mu.Lock()
	s.records = certs
	s.data = data
	s.version = checksum.HashBytes(data)
	s.fallback = fallback
	s.loaded = true
	s.loading = false
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.log.Info("Certificates loaded", zap.Int("count", len(certs)), zap.Bool("fallback", fallback))
}

// Run loads the dataset and, for a positive interval, reloads it on every
// tick until ctx is done.
func (s *RecordStore) Run(ctx context.Context, interval time.Duration) error {
	s.Load(ctx)
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Load(ctx)
		}
	}
}

// Loading is true until the first load has finished, successful or not.
func (s *RecordStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *RecordStore) Records() []models.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records)
}

// JSON is the dataset in the record file format.
func (s *RecordStore) JSON() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// Version identifies the loaded dataset; it changes whenever the records do.
func (s *RecordStore) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Fallback reports whether the sample list is being served.
func (s *RecordStore) Fallback() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

func (s *RecordStore) Source() string {
	return s.source.Name()
}

func (s *RecordStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *RecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
