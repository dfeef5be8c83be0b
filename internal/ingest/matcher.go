package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/charliek/m3tail/internal/domain"
)

// Matcher decides which files are recognized as m3log files.
// Patterns without a slash match the base name; patterns with one match
// the whole slash-separated path.
type Matcher struct {
	patterns []string
}

// NewMatcher validates patterns and returns a matcher for them
func NewMatcher(patterns []string) (*Matcher, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: bad include pattern %q", domain.ErrInvalidConfig, p)
		}
	}
	return &Matcher{patterns: append([]string(nil), patterns...)}, nil
}

// Match reports whether path names a recognized file
func (m *Matcher) Match(path string) bool {
	slashed := filepath.ToSlash(path)
	name := filepath.Base(path)

	for _, p := range m.patterns {
		subject := name
		if strings.Contains(p, "/") {
			subject = slashed
		}
		if ok, _ := doublestar.Match(p, subject); ok {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}
