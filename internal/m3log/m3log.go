// Package m3log encodes and decodes single m3log lines.
//
// A line has the form
//
//	@2023-04-01T15:30:45Z [user, auth, login] #INFO: login ok
//
// The timestamp is UTC with a literal Z and no fractional seconds, the tag
// list is comma separated inside brackets, the level is one or more word
// characters and the content runs verbatim to the end of the line.
package m3log

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charliek/m3tail/internal/domain"
)

// lineRegex matches a whole m3log line. The tag group is non-greedy with no
// character class restriction, so the first "] #LEVEL: " closes the list.
var lineRegex = regexp.MustCompile(`^@(\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z) \[(.*?)\] #(\w+): (.*)$`)

// lineBreak splits text into lines on \n or \r\n
var lineBreak = regexp.MustCompile(`\r?\n`)

// nowFunc is replaced in tests
var nowFunc = time.Now

// Now returns the current time in the m3log timestamp layout
func Now() string {
	return nowFunc().UTC().Format(domain.TimestampLayout)
}

// Validate reports whether line matches the m3log grammar
func Validate(line string) bool {
	return lineRegex.MatchString(line)
}

// Decode parses an m3log line. Returns an error wrapping domain.ErrFormat
// if the line does not match the grammar.
func Decode(line string) (domain.LogRecord, error) {
	m := lineRegex.FindStringSubmatch(line)
	if m == nil {
		return domain.LogRecord{}, fmt.Errorf("%w: %q", domain.ErrFormat, truncate(line, 80))
	}
	return domain.LogRecord{
		Timestamp: m[1],
		Tags:      splitTags(m[2]),
		Level:     m[3],
		Content:   m[4],
	}, nil
}

// Encode formats a record as an m3log line. An absent timestamp is replaced
// by the current time and an absent level by domain.DefaultLevel.
//
// Tags are joined with ", " while Decode splits on "," and trims, so a
// round trip preserves tag values but not the original separator spacing.
func Encode(r domain.LogRecord) string {
	ts := r.Timestamp
	if ts == "" {
		ts = Now()
	}
	level := r.Level
	if level == "" {
		level = domain.DefaultLevel
	}
	return fmt.Sprintf("@%s [%s] #%s: %s", ts, strings.Join(r.Tags, ", "), level, r.Content)
}

// New builds a record stamped with the current time without going through
// the grammar. An empty level becomes domain.DefaultLevel.
func New(content string, tags []string, level string) domain.LogRecord {
	if level == "" {
		level = domain.DefaultLevel
	}
	if tags == nil {
		tags = []string{}
	}
	return domain.LogRecord{
		Timestamp: Now(),
		Tags:      tags,
		Level:     level,
		Content:   content,
	}
}

// Lines splits text on \n or \r\n. Blank lines are kept so callers can
// report accurate line numbers.
func Lines(text string) []string {
	if text == "" {
		return nil
	}
	return lineBreak.Split(text, -1)
}

// splitTags splits the bracket contents on commas and trims each tag.
// An empty list yields no tags; empty items between commas are kept.
func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, len(parts))
	for i, p := range parts {
		tags[i] = strings.TrimSpace(p)
	}
	return tags
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
