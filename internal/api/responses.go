package api

import (
	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/ingest"
	"github.com/charliek/m3tail/internal/m3log"
	"github.com/charliek/m3tail/internal/notify"
)

// StatusResponse represents the response for GET /status
type StatusResponse struct {
	State          string         `json:"state"`
	Path           string         `json:"path,omitempty"`
	Include        []string       `json:"include"`
	TotalRecords   int            `json:"total_records"`
	VisibleRecords int            `json:"visible_records"`
	Diagnostics    int            `json:"diagnostics"`
	Filter         FilterResponse `json:"filter"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	ConfigFile     string         `json:"config_file,omitempty"`
	APIVersion     string         `json:"api_version"`
}

// LogsResponse represents the response for GET /logs
type LogsResponse struct {
	Logs          []LogRecordResponse `json:"logs"`
	FilteredCount int                 `json:"filtered_count"`
	TotalCount    int                 `json:"total_count"`
}

// LogRecordResponse represents a single record
type LogRecordResponse struct {
	Timestamp string   `json:"timestamp"`
	Tags      []string `json:"tags"`
	Level     string   `json:"level"`
	Content   string   `json:"content"`
	Line      string   `json:"line"` // m3log encoding
}

// FilterResponse represents the session criteria.
// It is also the request body for PUT /filter.
type FilterResponse struct {
	Search string   `json:"search"`
	Level  string   `json:"level"`
	Tags   []string `json:"tags"`
}

// LevelsResponse represents the response for GET /levels
type LevelsResponse struct {
	Levels []string `json:"levels"`
}

// TagsResponse represents the response for GET /tags
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// WatchRequest is the body for POST /watch
type WatchRequest struct {
	Path string `json:"path"`
}

// WatchResponse reports the controller state after a lifecycle call
type WatchResponse struct {
	State string `json:"state"`
	Path  string `json:"path,omitempty"`
}

// IngestResponse represents the response for POST /logs
type IngestResponse struct {
	Lines      int `json:"lines"`
	Accepted   int `json:"accepted"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
}

// DiagnosticsResponse represents the response for GET /diagnostics
type DiagnosticsResponse struct {
	Diagnostics []notify.Diagnostic `json:"diagnostics"`
}

// NoticesResponse represents the response for GET /notices
type NoticesResponse struct {
	Notices []notify.Notice `json:"notices"`
}

// ViewChangeResponse is the payload of one SSE event
type ViewChangeResponse struct {
	Reason  string             `json:"reason"`
	Version uint64             `json:"version"`
	Total   int                `json:"total"`
	Visible int                `json:"visible"`
	Record  *LogRecordResponse `json:"record,omitempty"`
	Matched bool               `json:"matched,omitempty"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToLogRecordResponse converts a domain.LogRecord to LogRecordResponse
func ToLogRecordResponse(r domain.LogRecord) LogRecordResponse {
	tags := r.Tags
	if tags == nil {
		tags = []string{}
	}
	return LogRecordResponse{
		Timestamp: r.Timestamp,
		Tags:      tags,
		Level:     r.Level,
		Content:   r.Content,
		Line:      m3log.Encode(r),
	}
}

// ToLogRecordResponses converts a slice of records
func ToLogRecordResponses(records []domain.LogRecord) []LogRecordResponse {
	out := make([]LogRecordResponse, len(records))
	for i, r := range records {
		out[i] = ToLogRecordResponse(r)
	}
	return out
}

// ToFilterResponse converts criteria to FilterResponse
func ToFilterResponse(c domain.FilterCriteria) FilterResponse {
	tags := c.SelectedTags
	if tags == nil {
		tags = []string{}
	}
	return FilterResponse{
		Search: c.SearchQuery,
		Level:  c.SelectedLevel,
		Tags:   tags,
	}
}

// Criteria converts the request body to filter criteria
func (f FilterResponse) Criteria() domain.FilterCriteria {
	return domain.FilterCriteria{
		SearchQuery:   f.Search,
		SelectedLevel: f.Level,
		SelectedTags:  f.Tags,
	}
}

// ToViewChangeResponse converts a domain.ViewChange to ViewChangeResponse
func ToViewChangeResponse(c domain.ViewChange) ViewChangeResponse {
	resp := ViewChangeResponse{
		Reason:  c.Reason.String(),
		Version: c.Version,
		Total:   c.Total,
		Visible: c.Visible,
		Matched: c.Matched,
	}
	if c.Record != nil {
		rec := ToLogRecordResponse(*c.Record)
		resp.Record = &rec
	}
	return resp
}

// ToIngestResponse converts an ingest.IngestResult
func ToIngestResponse(r ingest.IngestResult) IngestResponse {
	return IngestResponse{
		Lines:      r.Lines,
		Accepted:   r.Accepted,
		Duplicates: r.Duplicates,
		Malformed:  r.Malformed,
	}
}

// ToWatchResponse converts an ingest.Status
func ToWatchResponse(s ingest.Status) WatchResponse {
	return WatchResponse{
		State: s.State.String(),
		Path:  s.Path,
	}
}
