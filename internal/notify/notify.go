// Package notify carries messages about the session to the user and keeps
// a separate, bounded record of ingestion diagnostics.
package notify

import (
	"log/slog"
	"time"

	"github.com/charliek/m3tail/internal/logs"
)

// Level is the severity of a user-facing notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// String returns the string representation of Level
func (l Level) String() string {
	return string(l)
}

// Notice is a short message shown to the user
type Notice struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

// Notifier receives user-facing session notices
type Notifier interface {
	Notify(level Level, message string)
}

// Center is the default Notifier. Notices are logged, retained in a ring
// and fanned out to subscribers.
type Center struct {
	logger  *slog.Logger
	recent  *ring[Notice]
	streams *logs.Hub[Notice]
	now     func() time.Time
}

// NewCenter creates a notice center retaining up to capacity notices
func NewCenter(logger *slog.Logger, capacity int) *Center {
	if logger == nil {
		logger = slog.Default()
	}
	return &Center{
		logger:  logger,
		recent:  newRing[Notice](capacity),
		streams: logs.NewHub[Notice](16),
		now:     time.Now,
	}
}

// Notify records and publishes a notice
func (c *Center) Notify(level Level, message string) {
	n := Notice{Time: c.now(), Level: level, Message: message}

	switch level {
	case LevelError:
		c.logger.Error(message, "source", "notice")
	case LevelWarning:
		c.logger.Warn(message, "source", "notice")
	default:
		c.logger.Info(message, "source", "notice")
	}

	c.recent.push(n)
	c.streams.Broadcast(n)
}

// Recent returns up to n of the latest notices, oldest first.
// n <= 0 returns everything retained.
func (c *Center) Recent(n int) []Notice {
	return c.recent.last(n)
}

// Latest returns the most recent notice, if any
func (c *Center) Latest() (Notice, bool) {
	last := c.recent.last(1)
	if len(last) == 0 {
		return Notice{}, false
	}
	return last[0], true
}

// Subscribe registers for new notices
func (c *Center) Subscribe() (string, <-chan Notice) {
	return c.streams.Subscribe(nil)
}

// Unsubscribe removes a subscription
func (c *Center) Unsubscribe(id string) {
	c.streams.Unsubscribe(id)
}

// Close closes all subscriptions
func (c *Center) Close() {
	c.streams.Close()
}
