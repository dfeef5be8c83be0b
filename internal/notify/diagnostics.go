package notify

import (
	"log/slog"
	"time"
)

// Diagnostic describes a line or file that could not be ingested
type Diagnostic struct {
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Line    int       `json:"line,omitempty"` // 1-based, 0 for whole-file failures
	Message string    `json:"message"`
	Error   string    `json:"error,omitempty"`
}

// Reporter receives ingestion diagnostics
type Reporter interface {
	Report(d Diagnostic)
}

// Diagnostics logs ingestion problems at WARN and keeps the most recent
// ones for inspection. They never reach the user-facing Notifier.
type Diagnostics struct {
	logger *slog.Logger
	recent *ring[Diagnostic]
}

// NewDiagnostics creates a diagnostics sink retaining up to capacity entries
func NewDiagnostics(logger *slog.Logger, capacity int) *Diagnostics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Diagnostics{
		logger: logger,
		recent: newRing[Diagnostic](capacity),
	}
}

// Report logs and retains a diagnostic
func (d *Diagnostics) Report(diag Diagnostic) {
	if diag.Time.IsZero() {
		diag.Time = time.Now()
	}

	attrs := []any{"source", diag.Source}
	if diag.Line > 0 {
		attrs = append(attrs, "line", diag.Line)
	}
	if diag.Error != "" {
		attrs = append(attrs, "err", diag.Error)
	}
	d.logger.Warn(diag.Message, attrs...)

	d.recent.push(diag)
}

// Recent returns up to n of the latest diagnostics, oldest first.
// n <= 0 returns everything retained.
func (d *Diagnostics) Recent(n int) []Diagnostic {
	return d.recent.last(n)
}

// Count returns the number of retained diagnostics
func (d *Diagnostics) Count() int {
	return d.recent.size()
}
