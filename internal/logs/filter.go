package logs

import (
	"github.com/charliek/m3tail/internal/domain"
)

// Matches returns true if the record passes every active constraint
func Matches(r domain.LogRecord, c domain.FilterCriteria) bool {
	return c.MatchesLevel(r.Level) && c.MatchesTags(r.Tags) && c.MatchesSearch(r)
}

// FilterRecords derives the filtered view from the full record sequence.
// Level is applied first, then tags, then the search query; surviving
// records keep their relative order. The result never aliases records.
func FilterRecords(records []domain.LogRecord, c domain.FilterCriteria) []domain.LogRecord {
	result := make([]domain.LogRecord, 0, len(records))

	if c.IsEmpty() {
		return append(result, records...)
	}

	for _, r := range records {
		if !c.MatchesLevel(r.Level) {
			continue
		}
		if !c.MatchesTags(r.Tags) {
			continue
		}
		if !c.MatchesSearch(r) {
			continue
		}
		result = append(result, r)
	}

	return result
}

// LastN returns at most the last n records. n <= 0 returns records unchanged.
func LastN(records []domain.LogRecord, n int) []domain.LogRecord {
	if n > 0 && len(records) > n {
		return records[len(records)-n:]
	}
	return records
}
