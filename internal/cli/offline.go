package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charliek/m3tail/internal/api"
	"github.com/charliek/m3tail/internal/fswatch"
	"github.com/charliek/m3tail/internal/logging"
	"github.com/charliek/m3tail/internal/m3log"
)

type parseOptions struct {
	json   bool
	strict bool
}

func (a *App) newParseCmd() *cobra.Command {
	var opts parseOptions
	cmd := &cobra.Command{
		Use:   "parse <file>...",
		Short: "Decode m3log files and report malformed lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := a.cmdParse(args, opts); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print records as JSON lines")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit 1 if any line is malformed")
	return cmd
}

// cmdParse handles the 'parse' command. Records go to stdout, malformed
// lines and the summary to stderr.
func (a *App) cmdParse(files []string, opts parseOptions) int {
	fsys := fswatch.NewOS(logging.Discard())
	printer := NewLogPrinter(a.stdout, a.noColor)
	reports := NewLogPrinter(a.stderr, a.noColor)
	enc := json.NewEncoder(a.stdout)

	var records, malformed, failed int
	for _, file := range files {
		content, err := fsys.ReadFile(file)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			failed++
			continue
		}

		for i, line := range m3log.Lines(content) {
			if strings.TrimSpace(line) == "" {
				continue
			}
			record, err := m3log.Decode(line)
			if err != nil {
				malformed++
				reports.PrintMalformed(file, i+1, err)
				continue
			}

			records++
			if opts.json {
				if err := enc.Encode(api.ToLogRecordResponse(record)); err != nil {
					fmt.Fprintf(a.stderr, "Warning: failed to encode record: %v\n", err)
				}
			} else {
				printer.PrintRecord(record)
			}
		}
	}

	fmt.Fprintf(a.stderr, "%d records, %d malformed\n", records, malformed)

	if failed > 0 || (opts.strict && malformed > 0) {
		return 1
	}
	return 0
}

type emitOptions struct {
	tags  []string
	level string
	file  string
}

func (a *App) newEmitCmd() *cobra.Command {
	var opts emitOptions
	cmd := &cobra.Command{
		Use:   "emit <content>...",
		Short: "Build an m3log line stamped with the current time",
		Long: `Build an m3log line from content, stamped with the current time.
The line is printed, or appended to --file when given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cmdEmit(strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Tag (repeatable or comma separated)")
	cmd.Flags().StringVarP(&opts.level, "level", "l", "", "Level (default INFO)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Append the line to this file")
	return cmd
}

// cmdEmit handles the 'emit' command
func (a *App) cmdEmit(content string, opts emitOptions) error {
	if strings.ContainsAny(content, "\r\n") {
		return fmt.Errorf("content must be a single line")
	}

	line := m3log.Encode(m3log.New(content, opts.tags, opts.level))
	if !m3log.Validate(line) {
		return fmt.Errorf("cannot encode %q as an m3log line", line)
	}

	if opts.file == "" {
		fmt.Fprintln(a.stdout, line)
		return nil
	}

	f, err := os.OpenFile(opts.file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", opts.file, err)
	}
	if _, err := fmt.Fprintln(f, line); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", opts.file, err)
	}
	return f.Close()
}
