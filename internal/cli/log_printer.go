package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charliek/m3tail/internal/api"
	"github.com/charliek/m3tail/internal/constants"
	"github.com/charliek/m3tail/internal/domain"
)

// LogPrinter handles consistent record formatting and level colors
type LogPrinter struct {
	out     io.Writer
	noColor bool
}

// NewLogPrinter creates a new LogPrinter writing to out
func NewLogPrinter(out io.Writer, noColor bool) *LogPrinter {
	return &LogPrinter{out: out, noColor: noColor}
}

// PrintRecord prints a record as its m3log line, colorized by level
func (lp *LogPrinter) PrintRecord(r domain.LogRecord) {
	lp.print(r.Timestamp, r.Tags, r.Level, r.Content)
}

// PrintAPIRecord prints a record received from the API
func (lp *LogPrinter) PrintAPIRecord(r api.LogRecordResponse) {
	lp.print(r.Timestamp, r.Tags, r.Level, r.Content)
}

func (lp *LogPrinter) print(ts string, tags []string, level, content string) {
	tagList := "[" + strings.Join(tags, ", ") + "]"
	if lp.noColor {
		fmt.Fprintf(lp.out, "@%s %s #%s: %s\n", ts, tagList, level, content)
		return
	}
	fmt.Fprintf(lp.out, "@%s %s%s%s #%s%s%s: %s\n",
		ts,
		constants.TagColor, tagList, constants.ColorReset,
		levelColor(level), level, constants.ColorReset,
		content)
}

// PrintMalformed reports a line that failed to decode
func (lp *LogPrinter) PrintMalformed(source string, line int, err error) {
	if lp.noColor {
		fmt.Fprintf(lp.out, "%s:%d: %v\n", source, line, err)
		return
	}
	fmt.Fprintf(lp.out, "%s%s:%d: %v%s\n", constants.ColorBrightRed, source, line, err, constants.ColorReset)
}

// levelColor returns the color for a well-known level, or none
func levelColor(level string) string {
	return constants.LevelColors[level]
}
