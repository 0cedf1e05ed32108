package ingestion

import (
	"sort"
	"sync"

	"github.com/aimlclub/hackathon-portal/internal/certificates"
	"github.com/aimlclub/hackathon-portal/internal/database"
	"github.com/aimlclub/hackathon-portal/internal/models"
)

// RecordSink receives batches of parsed records from the sink workers.
type RecordSink interface {
	Write(records []*models.ParsedRecord) error
}

// MemorySink keeps every record of a run so it can be written out as JSON.
type MemorySink struct {
	mu      sync.Mutex
	records []*models.ParsedRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(records []*models.ParsedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

// Certificates returns the collected records in input order: files in
// dispatch order, rows in sheet order.
func (s *MemorySink) Certificates() []models.Certificate {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]*models.ParsedRecord, len(s.records))
	copy(sorted, s.records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FileID != sorted[j].FileID {
			return sorted[i].FileID < sorted[j].FileID
		}
		return sorted[i].Row < sorted[j].Row
	})

	certs := make([]models.Certificate, 0, len(sorted))
	for _, r := range sorted {
		certs = append(certs, r.Certificate)
	}
	return certs
}

// DBSink upserts batches into the certificate mirror.
type DBSink struct {
	dbManager database.DBManager
}

func NewDBSink(dbManager database.DBManager) *DBSink {
	return &DBSink{dbManager: dbManager}
}

func (s *DBSink) Write(records []*models.ParsedRecord) error {
	return s.dbManager.UpsertCertificates(records)
}

// DuplicateIDs lists certificate ids that appear more than once, compared
// case-insensitively, in first-seen order.
func DuplicateIDs(certs []models.Certificate) []string {
	seen := make(map[string]int, len(certs))
	var dups []string
	for _, c := range certs {
		key := certificates.Key(c.CertificateID)
		seen[key]++
		if seen[key] == 2 {
			dups = append(dups, c.CertificateID)
		}
	}
	return dups
}
