// Package ingest turns m3log files and text into records in a logs.Store,
// loading whatever already exists under a path and then following changes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/charliek/m3tail/internal/constants"
	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/fswatch"
	"github.com/charliek/m3tail/internal/logs"
	"github.com/charliek/m3tail/internal/m3log"
	"github.com/charliek/m3tail/internal/notify"
)

// FileSystem is the file-system surface the controller consumes.
// fswatch.FS is the default implementation.
type FileSystem interface {
	Exists(path string) (bool, error)
	ReadFile(path string) (string, error)
	ListDirectory(path string) ([]domain.DirEntry, error)
	Watch(path string, opts domain.WatchOptions, handler func(domain.WatchEvent)) (fswatch.CancelFunc, error)
}

// ControllerConfig holds configuration for the ingestion controller
type ControllerConfig struct {
	Include            []string      // File name patterns recognized as m3log files
	Debounce           time.Duration // Quiet period before a batch of changes is handled
	MaxConcurrentReads int64         // Upper bound on concurrent file re-reads
}

// DefaultControllerConfig returns default configuration
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Include:            constants.DefaultIncludePatterns,
		Debounce:           constants.DefaultDebounce,
		MaxConcurrentReads: constants.DefaultMaxConcurrentReads,
	}
}

// Status is a snapshot of the controller state
type Status struct {
	State   domain.WatchState `json:"state"`
	Path    string            `json:"path,omitempty"`
	Include []string          `json:"include"`
}

// Controller owns the watch lifecycle. It is Idle until StartWatching
// succeeds and Watching until StopWatching.
type Controller struct {
	// lifecycle serializes StartWatching and StopWatching
	lifecycle sync.Mutex

	fs       FileSystem
	store    *logs.Store
	notifier notify.Notifier
	diags    notify.Reporter
	logger   *slog.Logger
	matcher  *Matcher
	config   ControllerConfig

	watching atomic.Bool
	path     atomic.Value // string
	cancel   fswatch.CancelFunc

	// sem bounds concurrent re-reads; inflight tracks them for Wait
	sem      *semaphore.Weighted
	inflight *readGroup
}

// readGroup counts dispatched re-reads. Unlike a sync.WaitGroup it may be
// waited on while the watch goroutine is still adding reads.
type readGroup struct {
	mu   sync.Mutex
	idle *sync.Cond
	n    int
}

func newReadGroup() *readGroup {
	g := &readGroup{}
	g.idle = sync.NewCond(&g.mu)
	return g
}

func (g *readGroup) add() {
	g.mu.Lock()
	g.n++
	g.mu.Unlock()
}

func (g *readGroup) done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n--
	if g.n == 0 {
		g.idle.Broadcast()
	}
}

// wait blocks until no read is in flight
func (g *readGroup) wait() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.n > 0 {
		g.idle.Wait()
	}
}

// New creates a controller feeding store from fsys
func New(fsys FileSystem, store *logs.Store, notifier notify.Notifier, diags notify.Reporter, logger *slog.Logger, config ControllerConfig) (*Controller, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notify.NewCenter(logger, constants.DefaultNoticeCapacity)
	}
	if diags == nil {
		diags = notify.NewDiagnostics(logger, constants.DefaultDiagnosticCapacity)
	}
	if len(config.Include) == 0 {
		config.Include = constants.DefaultIncludePatterns
	}
	if config.MaxConcurrentReads <= 0 {
		config.MaxConcurrentReads = constants.DefaultMaxConcurrentReads
	}

	matcher, err := NewMatcher(config.Include)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		fs:       fsys,
		store:    store,
		notifier: notifier,
		diags:    diags,
		logger:   logger,
		matcher:  matcher,
		config:   config,
		sem:      semaphore.NewWeighted(config.MaxConcurrentReads),
		inflight: newReadGroup(),
	}
	c.path.Store("")
	return c, nil
}

// State returns the current lifecycle state
func (c *Controller) State() domain.WatchState {
	if c.watching.Load() {
		return domain.WatchStateWatching
	}
	return domain.WatchStateIdle
}

// Path returns the watched path, or "" when idle
func (c *Controller) Path() string {
	return c.path.Load().(string)
}

// Status returns a snapshot of the controller state
func (c *Controller) Status() Status {
	return Status{
		State:   c.State(),
		Path:    c.Path(),
		Include: c.matcher.Patterns(),
	}
}

// Store returns the store records are inserted into
func (c *Controller) Store() *logs.Store {
	return c.store
}

// StartWatching loads everything under path and then registers a
// recursive, debounced watch on it. An empty path or an active watch is a
// precondition failure and leaves the state unchanged. A failed watch
// registration leaves the controller Idle; records loaded before the
// failure stay in the store.
func (c *Controller) StartWatching(ctx context.Context, path string) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if path == "" {
		c.notifier.Notify(notify.LevelWarning, "watch path required")
		return fmt.Errorf("%w: watch path required", domain.ErrPrecondition)
	}
	if c.watching.Load() {
		c.notifier.Notify(notify.LevelWarning, "already watching")
		return fmt.Errorf("%w: already watching %s", domain.ErrPrecondition, c.Path())
	}

	path = filepath.Clean(path)

	result, err := c.LoadExisting(ctx, path)
	if err != nil {
		return err
	}
	c.logger.Info("loaded existing logs",
		"path", path,
		"files", result.Files,
		"accepted", result.Accepted,
		"malformed", result.Malformed,
	)

	cancel, err := c.fs.Watch(path, domain.WatchOptions{
		Recursive: true,
		Debounce:  c.config.Debounce,
	}, c.handleEvent)
	if err != nil {
		c.notifier.Notify(notify.LevelError, "watch failed: "+err.Error())
		if !errors.Is(err, domain.ErrWatchRegistration) {
			err = fmt.Errorf("%w: %v", domain.ErrWatchRegistration, err)
		}
		return err
	}

	c.cancel = cancel
	c.path.Store(path)
	c.watching.Store(true)
	c.notifier.Notify(notify.LevelInfo, "watching started")
	return nil
}

// StopWatching cancels the watch and waits for in-flight reads to finish.
// It is a no-op when Idle.
func (c *Controller) StopWatching() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if !c.watching.Load() {
		return nil
	}

	// After cancel returns no further events are dispatched
	c.cancel()
	c.cancel = nil
	c.inflight.wait()

	c.watching.Store(false)
	c.path.Store("")
	c.notifier.Notify(notify.LevelInfo, "watching stopped")
	return nil
}

// Wait blocks until dispatched change handling has drained. It may be
// called while watching; reads dispatched during the call are waited for
// too.
func (c *Controller) Wait() {
	c.inflight.wait()
}

// LoadExisting ingests what is already at path. A missing path loads
// nothing. A file is ingested whatever its name; a directory is walked
// depth first and only recognized files are ingested. Read and list
// failures are reported and skipped. The only error returned is the
// context's.
func (c *Controller) LoadExisting(ctx context.Context, path string) (IngestResult, error) {
	var result IngestResult

	exists, err := c.fs.Exists(path)
	if err != nil {
		c.report(path, 0, "stat failed", err)
		return result, nil
	}
	if !exists {
		c.logger.Debug("nothing to load", "path", path)
		return result, nil
	}

	content, err := c.fs.ReadFile(path)
	switch {
	case err == nil:
		result.Files++
		result.Add(c.IngestContent(path, content))
		return result, nil
	case !errors.Is(err, domain.ErrIsDirectory):
		result.Failed++
		c.report(path, 0, "read failed", err)
		return result, nil
	}

	stack := []string{path}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := c.fs.ListDirectory(dir)
		if err != nil {
			c.report(dir, 0, "list failed", err)
			continue
		}

		for _, e := range entries {
			full := filepath.Join(dir, e.Name)
			switch {
			case e.IsDirectory:
				stack = append(stack, full)
			case e.IsFile && c.matcher.Match(full):
				result.Add(c.ingestFile(full))
			}
		}
	}

	return result, nil
}

// IngestContent splits content into lines and inserts every valid one.
// Blank lines are skipped; malformed lines are reported with their
// 1-based line number and skipped.
func (c *Controller) IngestContent(source, content string) IngestResult {
	var result IngestResult

	for i, line := range m3log.Lines(content) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		result.Lines++

		record, err := m3log.Decode(line)
		if err != nil {
			result.Malformed++
			c.report(source, i+1, "skipping malformed line", err)
			continue
		}

		if c.store.Insert(record) {
			result.Accepted++
		} else {
			result.Duplicates++
		}
	}

	return result
}

// handleEvent dispatches one re-read per recognized path. Runs on the
// watch goroutine, so reads happen elsewhere.
func (c *Controller) handleEvent(ev domain.WatchEvent) {
	if !ev.Kind.TriggersRead() {
		return
	}

	for _, p := range ev.Paths {
		if !c.matcher.Match(p) {
			continue
		}

		c.inflight.add()
		go func(path string) {
			defer c.inflight.done()

			// Never fails with a background context
			_ = c.sem.Acquire(context.Background(), 1)
			defer c.sem.Release(1)

			result := c.ingestFile(path)
			c.logger.Debug("re-read file",
				"path", path,
				"kind", ev.Kind,
				"accepted", result.Accepted,
			)
		}(p)
	}
}

func (c *Controller) ingestFile(path string) IngestResult {
	content, err := c.fs.ReadFile(path)
	if err != nil {
		c.report(path, 0, "read failed", err)
		return IngestResult{Failed: 1}
	}

	result := c.IngestContent(path, content)
	result.Files = 1
	return result
}

func (c *Controller) report(source string, line int, message string, err error) {
	c.diags.Report(notify.Diagnostic{
		Source:  source,
		Line:    line,
		Message: message,
		Error:   err.Error(),
	})
}
