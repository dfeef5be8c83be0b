package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/charliek/m3tail/internal/api"
	"github.com/charliek/m3tail/internal/constants"
	"github.com/charliek/m3tail/internal/domain"
)

// run adapts an int-returning command to cobra
func run(code int) error {
	if code != 0 {
		return exitError{code: code}
	}
	return nil
}

func (a *App) newStatusCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.cmdStatus(jsonOutput))
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// cmdStatus handles the 'status' command
func (a *App) cmdStatus(jsonOutput bool) int {
	status, err := a.client().GetStatus()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		fmt.Fprintf(a.stderr, "Is m3tail running? Try 'm3tail watch' first.\n")
		return 1
	}

	if jsonOutput {
		if err := json.NewEncoder(a.stdout).Encode(status); err != nil {
			fmt.Fprintf(a.stderr, "Warning: failed to encode output: %v\n", err)
		}
		return 0
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "State:\t%s\n", status.State)
	if status.Path != "" {
		fmt.Fprintf(w, "Path:\t%s\n", status.Path)
	}
	fmt.Fprintf(w, "Include:\t%s\n", strings.Join(status.Include, " "))
	fmt.Fprintf(w, "Records:\t%d visible / %d total\n", status.VisibleRecords, status.TotalRecords)
	fmt.Fprintf(w, "Filter:\t%s\n", describeFilter(status.Filter))
	fmt.Fprintf(w, "Diagnostics:\t%d\n", status.Diagnostics)
	fmt.Fprintf(w, "Uptime:\t%s\n", formatDuration(time.Duration(status.UptimeSeconds)*time.Second))
	if status.ConfigFile != "" {
		fmt.Fprintf(w, "Config:\t%s\n", status.ConfigFile)
	}
	w.Flush()

	return 0
}

type logsOptions struct {
	params domain.LogParams
	follow bool
	json   bool
}

func (a *App) newLogsCmd() *cobra.Command {
	var opts logsOptions
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show records from a running instance",
		Long: `Show records from a running instance. Without --search, --level or --tag
the session's filtered view is shown; with any of them the records are
filtered for this call only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.params.Lines < 1 {
				return fmt.Errorf("invalid lines value %d (must be a positive integer)", opts.params.Lines)
			}
			return run(a.cmdLogs(cmd.Context(), opts))
		},
	}
	cmd.Flags().StringVarP(&opts.params.Search, "search", "s", "", "Case-insensitive search over content and tags")
	cmd.Flags().StringVarP(&opts.params.Level, "level", "l", "", "Exact level")
	cmd.Flags().StringSliceVarP(&opts.params.Tags, "tag", "t", nil, "Tag (repeatable or comma separated, any match)")
	cmd.Flags().IntVarP(&opts.params.Lines, "lines", "n", constants.DefaultLogLimit, "Number of most recent records")
	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Stream new records")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON lines")
	return cmd
}

// cmdLogs handles the 'logs' command
func (a *App) cmdLogs(parent context.Context, opts logsOptions) int {
	client := a.client()
	printer := NewLogPrinter(a.stdout, a.noColor)
	enc := json.NewEncoder(a.stdout)

	emit := func(r api.LogRecordResponse) {
		if opts.json {
			if err := enc.Encode(r); err != nil {
				fmt.Fprintf(a.stderr, "Warning: failed to encode record: %v\n", err)
			}
			return
		}
		printer.PrintAPIRecord(r)
	}

	logs, err := client.GetLogs(opts.params)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	for _, r := range logs.Logs {
		emit(r)
	}
	if !opts.follow {
		if !opts.json && len(logs.Logs) < logs.FilteredCount {
			fmt.Fprintf(a.stderr, "\n(showing %d of %d matching records)\n", len(logs.Logs), logs.FilteredCount)
		}
		return 0
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ad-hoc streams only carry matching inserts; the session stream
	// carries every change and only records in the view are shown
	adhoc := opts.params.HasFilter()
	err = client.StreamLogs(ctx, opts.params, func(change api.ViewChangeResponse) {
		if change.Reason != domain.ViewReasonInsert.String() || change.Record == nil {
			return
		}
		if adhoc || change.Matched {
			emit(*change.Record)
		}
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type filterOptions struct {
	search string
	level  string
	tags   []string
	reset  bool
	json   bool
}

func (a *App) newFilterCmd() *cobra.Command {
	var opts filterOptions
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Show or change the session criteria of a running instance",
		Long: `Show or change the session criteria of a running instance. Only the
criteria given as flags change; an empty value clears that criterion.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			return run(a.cmdFilter(opts, flags.Changed("search"), flags.Changed("level"), flags.Changed("tag")))
		},
	}
	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Search query")
	cmd.Flags().StringVarP(&opts.level, "level", "l", "", "Level")
	cmd.Flags().StringSliceVarP(&opts.tags, "tag", "t", nil, "Tags (repeatable or comma separated)")
	cmd.Flags().BoolVar(&opts.reset, "reset", false, "Clear all criteria first")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	return cmd
}

// cmdFilter handles the 'filter' command
func (a *App) cmdFilter(opts filterOptions, setSearch, setLevel, setTags bool) int {
	client := a.client()

	filter, err := client.GetFilter()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	if opts.reset || setSearch || setLevel || setTags {
		next := *filter
		if opts.reset {
			next = api.FilterResponse{}
		}
		if setSearch {
			next.Search = opts.search
		}
		if setLevel {
			next.Level = opts.level
		}
		if setTags {
			next.Tags = opts.tags
		}

		filter, err = client.SetFilter(next)
		if err != nil {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			return 1
		}
	}

	if opts.json {
		if err := json.NewEncoder(a.stdout).Encode(filter); err != nil {
			fmt.Fprintf(a.stderr, "Warning: failed to encode output: %v\n", err)
		}
		return 0
	}
	fmt.Fprintln(a.stdout, describeFilter(*filter))
	return 0
}

func (a *App) newLevelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "levels",
		Short: "List the levels present in a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.cmdList(a.client().GetLevels))
		},
	}
}

func (a *App) newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags present in a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.cmdList(a.client().GetTags))
		},
	}
}

// cmdList prints one value per line
func (a *App) cmdList(get func() ([]string, error)) int {
	values, err := get()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	for _, v := range values {
		fmt.Fprintln(a.stdout, v)
	}
	return 0
}

func (a *App) newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every record in a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.cmdClear())
		},
	}
}

// cmdClear handles the 'clear' command
func (a *App) cmdClear() int {
	if err := a.client().ClearLogs(); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(a.stdout, "Cleared all records")
	return 0
}

func (a *App) newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <path>",
		Short: "Start watching a path in a running instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.cmdStart(args[0]))
		},
	}
}

// cmdStart handles the 'start' command. Relative paths are resolved here,
// since the server may run in another directory.
func (a *App) cmdStart(path string) int {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	resp, err := a.client().StartWatch(path)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: failed to watch %s: %v\n", path, err)
		return 1
	}
	fmt.Fprintf(a.stdout, "Watching %s\n", resp.Path)
	return 0
}

func (a *App) newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop watching in a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.cmdStop())
		},
	}
}

// cmdStop handles the 'stop' command
func (a *App) cmdStop() int {
	if _, err := a.client().StopWatch(); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(a.stdout, "Watching stopped")
	return 0
}

func (a *App) newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Shut down a running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(a.cmdDown())
		},
	}
}

// cmdDown handles the 'down' command
func (a *App) cmdDown() int {
	if err := a.client().Shutdown(); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(a.stdout, "Shutdown initiated")
	return 0
}

// describeFilter renders criteria for humans
func describeFilter(f api.FilterResponse) string {
	var parts []string
	if f.Search != "" {
		parts = append(parts, fmt.Sprintf("search=%q", f.Search))
	}
	if f.Level != "" {
		parts = append(parts, "level="+f.Level)
	}
	if len(f.Tags) > 0 {
		parts = append(parts, "tags="+strings.Join(f.Tags, ","))
	}
	if len(parts) == 0 {
		return "(none)"
	}
	return strings.Join(parts, " ")
}

// formatDuration formats a duration nicely
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
