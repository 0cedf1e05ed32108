package ingestion

import (
	"errors"
	"testing"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMemorySink_Certificates(t *testing.T) {
	sink := NewMemorySink()
	assert.Empty(t, sink.Certificates())

	assert.NoError(t, sink.Write([]*models.ParsedRecord{
		{FileID: 2, Row: 2, Certificate: models.Certificate{Name: "C"}},
		{FileID: 1, Row: 3, Certificate: models.Certificate{Name: "B"}},
	}))
	assert.NoError(t, sink.Write([]*models.ParsedRecord{
		{FileID: 1, Row: 2, Certificate: models.Certificate{Name: "A"}},
	}))

	certs := sink.Certificates()
	assert.Equal(t, []string{"A", "B", "C"}, []string{certs[0].Name, certs[1].Name, certs[2].Name})
}

func TestDBSink_Write(t *testing.T) {
	records := []*models.ParsedRecord{{FileID: 1, Row: 2}}
	dbManager := new(MockDBManager)
	dbManager.On("UpsertCertificates", records).Return(nil).Once()
	dbManager.On("UpsertCertificates", []*models.ParsedRecord(nil)).Return(errors.New("conflict")).Once()

	sink := NewDBSink(dbManager)
	assert.NoError(t, sink.Write(records))
	assert.EqualError(t, sink.Write(nil), "conflict")
	dbManager.AssertExpectations(t)
}

func TestDuplicateIDs(t *testing.T) {
	certs := []models.Certificate{
		{CertificateID: "HWS-1"},
		{CertificateID: "HWS-2"},
		{CertificateID: "hws-1"},
		{CertificateID: "HWS-1 "},
		{CertificateID: "HWS-3"},
	}
	assert.Equal(t, []string{"hws-1"}, DuplicateIDs(certs))
	assert.Empty(t, DuplicateIDs(certs[:2]))

	// ids compare the way Verify compares stored ids: caseless, untrimmed
	assert.Empty(t, DuplicateIDs([]models.Certificate{{CertificateID: "HWS-2"}, {CertificateID: " hws-2"}}))
}
