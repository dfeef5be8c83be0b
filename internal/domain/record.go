package domain

import (
	"strings"
	"time"
)

// TimestampLayout is the only timestamp form the m3log grammar accepts
const TimestampLayout = "2006-01-02T15:04:05Z"

// DefaultLevel is used when a record is constructed without a level
const DefaultLevel = "INFO"

// LogRecord represents a single decoded or constructed m3log entry
type LogRecord struct {
	Timestamp string   `json:"timestamp,omitempty"`
	Tags      []string `json:"tags"`
	Level     string   `json:"level,omitempty"`
	Content   string   `json:"content"`
}

// DedupKey identifies a unique log event. Tags and level do not take part.
type DedupKey struct {
	Timestamp string
	Content   string
}

// Key returns the dedup key for the record
func (r LogRecord) Key() DedupKey {
	return DedupKey{Timestamp: r.Timestamp, Content: r.Content}
}

// Time parses the record timestamp. Returns the zero time when the
// timestamp is absent or not in TimestampLayout.
func (r LogRecord) Time() time.Time {
	if r.Timestamp == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimestampLayout, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasTag returns true if the record carries the tag verbatim
func (r LogRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slice storage with r
func (r LogRecord) Clone() LogRecord {
	c := r
	if r.Tags != nil {
		c.Tags = append([]string(nil), r.Tags...)
	}
	return c
}

// FilterCriteria defines the active search/level/tag constraints.
// All active constraints must pass; tags match if any one is shared.
type FilterCriteria struct {
	SearchQuery   string   `json:"search"`
	SelectedLevel string   `json:"level"`
	SelectedTags  []string `json:"tags"`
}

// IsEmpty returns true if no constraint is active
func (c FilterCriteria) IsEmpty() bool {
	return c.SearchQuery == "" && c.SelectedLevel == "" && len(c.SelectedTags) == 0
}

// MatchesLevel returns true if the level constraint is unset or equal
func (c FilterCriteria) MatchesLevel(level string) bool {
	return c.SelectedLevel == "" || c.SelectedLevel == level
}

// MatchesTags returns true if no tags are selected or the record shares one
func (c FilterCriteria) MatchesTags(tags []string) bool {
	if len(c.SelectedTags) == 0 {
		return true
	}
	for _, want := range c.SelectedTags {
		for _, have := range tags {
			if want == have {
				return true
			}
		}
	}
	return false
}

// MatchesSearch performs a case-insensitive substring match against
// the content and every tag
func (c FilterCriteria) MatchesSearch(r LogRecord) bool {
	if c.SearchQuery == "" {
		return true
	}
	q := strings.ToLower(c.SearchQuery)
	if strings.Contains(strings.ToLower(r.Content), q) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// Clone returns a copy that shares no slice storage with c
func (c FilterCriteria) Clone() FilterCriteria {
	out := c
	if c.SelectedTags != nil {
		out.SelectedTags = append([]string(nil), c.SelectedTags...)
	}
	return out
}

// ViewReason describes what caused the filtered view to change
type ViewReason string

const (
	ViewReasonInsert   ViewReason = "insert"
	ViewReasonCriteria ViewReason = "criteria"
	ViewReasonClear    ViewReason = "clear"
)

// String returns the string representation of ViewReason
func (r ViewReason) String() string {
	return string(r)
}

// ViewChange is published once per mutating store operation
type ViewChange struct {
	Reason  ViewReason `json:"reason"`
	Version uint64     `json:"version"`
	Total   int        `json:"total"`
	Visible int        `json:"visible"`
	// Record is set for inserts only
	Record *LogRecord `json:"record,omitempty"`
	// Matched reports whether Record passed the criteria at insert time
	Matched bool `json:"matched,omitempty"`
}

// StoreStats contains counters about the record store
type StoreStats struct {
	TotalRecords   int
	VisibleRecords int
	Subscribers    int
	Version        uint64
}
