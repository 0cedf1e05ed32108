// Package certificates holds the search and verification rules of the
// certificate portal. Both matchers are pure functions over a record list.
package certificates

import (
	"strings"

	"github.com/aimlclub/hackathon-portal/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultSuggestionLimit is how many suggestions the portal shows while typing.
const DefaultSuggestionLimit = 5

// SearchResult separates "no search performed" from "searched, nothing found".
type SearchResult struct {
	Performed bool
	Results   []models.Certificate
}

// Search returns, in input order, every record where the trimmed query is a
// caseless substring of the name, email, team name or certificate id.
// A blank query performs no search.
func Search(query string, records []models.Certificate) SearchResult {
	q := strings.TrimSpace(query)
	if q == "" {
		return SearchResult{}
	}

	return SearchResult{Performed: true, Results: filter(fold(q), records, -1)}
}

// Suggest returns at most limit matches for the type-ahead list.
func Suggest(query string, records []models.Certificate, limit int) []models.Certificate {
	q := strings.TrimSpace(query)
	if q == "" || limit <= 0 {
		return nil
	}
	return filter(fold(q), records, limit)
}

// Verify finds the first record whose certificate id equals the trimmed id,
// ignoring case. Stored ids are compared as they are.
func Verify(id string, records []models.Certificate) (models.Certificate, bool) {
	key := Key(strings.TrimSpace(id))
	if key == "" {
		return models.Certificate{}, false
	}

	for _, record := range records {
		if Key(record.CertificateID) == key {
			return record, true
		}
	}
	return models.Certificate{}, false
}

// Key is the comparison form of a certificate id used by Verify.
func Key(id string) string {
	return fold(id)
}

// Lookup is the exact, case-sensitive match used by certificate links.
func Lookup(id string, records []models.Certificate) (models.Certificate, bool) {
	for _, record := range records {
		if record.CertificateID == id {
			return record, true
		}
	}
	return models.Certificate{}, false
}

func filter(q string, records []models.Certificate, limit int) []models.Certificate {
	found := make([]models.Certificate, 0)
	for _, record := range records {
		if limit >= 0 && len(found) >= limit {
			break
		}
		if matchesAny(q, record) {
			found = append(found, record)
		}
	}
	return found
}

func matchesAny(q string, record models.Certificate) bool {
	return strings.Contains(fold(record.Name), q) ||
		strings.Contains(fold(record.Email), q) ||
		strings.Contains(fold(record.TeamName), q) ||
		strings.Contains(fold(record.CertificateID), q)
}

// fold lower-cases s. Letters are not expanded, so "ß" never equals "ss".
// A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Lower(language.Und).String(s)
}
