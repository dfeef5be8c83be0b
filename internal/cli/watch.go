package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/charliek/m3tail/internal/api"
	"github.com/charliek/m3tail/internal/config"
	"github.com/charliek/m3tail/internal/constants"
	"github.com/charliek/m3tail/internal/daemon"
	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/fswatch"
	"github.com/charliek/m3tail/internal/ingest"
	"github.com/charliek/m3tail/internal/logging"
	"github.com/charliek/m3tail/internal/logs"
	"github.com/charliek/m3tail/internal/notify"
	"github.com/charliek/m3tail/internal/tui"
)

type watchOptions struct {
	noAPI    bool
	useTUI   bool
	port     int
	include  []string
	debounce time.Duration
	verbose  bool
	detach   bool
}

func (a *App) newWatchCmd() *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Load and follow m3log files under a path",
		Long: `Load every recognized file under path, then follow changes to them.
Without a path the configured watch.path is used. With the API enabled and
no path at all, watching can be started later with 'm3tail start'.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			if code := a.cmdWatch(cmd.Context(), path, opts); code != 0 {
				return exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.noAPI, "no-api", false, "Do not start the HTTP API")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "Browse records in the interactive viewer")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "API port (overrides config)")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "File name patterns to ingest (overrides config)")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", 0, "Quiet period before changes are re-read (overrides config)")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.Flags().BoolVarP(&opts.detach, "detach", "d", false, "Run in the background (stop with 'm3tail down')")

	return cmd
}

// isLocalhost checks if the host is a localhost address
func isLocalhost(host string) bool {
	return host == "" || host == "127.0.0.1" || host == "localhost" || host == "::1"
}

// cmdWatch handles the 'watch' command
func (a *App) cmdWatch(parent context.Context, path string, opts watchOptions) int {
	cfg, cfgPath, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(a.stderr, "Error loading config: %v\n", err)
		return 1
	}

	if opts.port > 0 {
		if opts.port > 65535 {
			fmt.Fprintf(a.stderr, "Invalid port: %d (must be 1-65535)\n", opts.port)
			return 1
		}
		cfg.API.Port = opts.port
	}
	if len(opts.include) > 0 {
		cfg.Watch.Include = opts.include
	}
	if opts.debounce > 0 {
		cfg.Watch.Debounce = opts.debounce
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	if path == "" {
		path = cfg.WatchPath()
	} else if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	useAPI := cfg.API.IsEnabled() && !opts.noAPI
	if path == "" && !useAPI {
		fmt.Fprintf(a.stderr, "Error: no path to watch (pass one or set watch.path)\n")
		return 1
	}

	if opts.detach && !daemon.IsChild() {
		if opts.useTUI || !useAPI {
			fmt.Fprintf(a.stderr, "Error: --detach needs the API and cannot be combined with --tui\n")
			return 1
		}
		return a.detachWatch()
	}

	// The viewer owns the terminal, so process logs are dropped while it runs
	logger := logging.Discard()
	if !opts.useTUI {
		logger = logging.New(logging.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: a.stderr,
		})
	}

	store := logs.NewStore(logs.StoreConfig{SubscriptionBuffer: constants.DefaultSubscriptionBuffer})
	notices := notify.NewCenter(logger, constants.DefaultNoticeCapacity)
	diags := notify.NewDiagnostics(logger, constants.DefaultDiagnosticCapacity)

	ctrl, err := ingest.New(fswatch.NewOS(logger), store, notices, diags, logger, ingest.ControllerConfig{
		Include:            cfg.Watch.Include,
		Debounce:           cfg.Watch.Debounce,
		MaxConcurrentReads: int64(cfg.Watch.MaxConcurrentReads),
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		apiServer *api.Server
		reg       *daemon.Registration
		apiErr    = make(chan error, 1)
	)
	if useAPI {
		// Claim the working directory so remote commands run here find this instance
		reg, err = daemon.Register("", daemon.State{
			Host:       cfg.API.Host,
			Port:       cfg.API.Port,
			WatchPath:  path,
			ConfigFile: cfgPath,
		})
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			fmt.Fprintf(a.stderr, "Error: %v\n", err)
			store.Close()
			notices.Close()
			return 1
		}
		if err != nil {
			logger.Warn("could not record instance state", "err", err)
		}

		authEnabled := cfg.API.Token != ""
		if !isLocalhost(cfg.API.Host) && !authEnabled {
			fmt.Fprintf(a.stderr, "WARNING: API bound to %s without a token (set %s)\n", cfg.API.Host, config.EnvAPIToken)
			fmt.Fprintf(a.stderr, "         Any network client can read and control this instance.\n")
		}

		handlers := api.NewHandlers(ctrl, notices, diags, logger, cfgPath)
		handlers.OnShutdown(cancel)
		apiServer = api.NewServer(api.ServerConfig{
			Host:        cfg.API.Host,
			Port:        cfg.API.Port,
			AuthEnabled: authEnabled,
			Token:       cfg.API.Token,
		}, handlers, logger)

		// An API that cannot serve ends the run
		go func() {
			if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("API server error", "err", err)
				apiErr <- err
				cancel()
			}
		}()
	}

	if !opts.useTUI {
		if cfgPath != "" {
			fmt.Fprintf(a.stdout, "Using config: %s\n", cfgPath)
		}
		if apiServer != nil {
			fmt.Fprintf(a.stdout, "API server: http://%s\n", apiServer.Addr())
		}
	}

	var watchErr error
	if path != "" {
		watchErr = ctrl.StartWatching(ctx, path)
	}

	// The initial load is printed from the store; the subscription, taken
	// first, carries only what came after it
	printed := make(chan struct{})
	if !opts.useTUI {
		_, changes := store.Subscribe()
		backlog, version := store.Backlog()
		go func() {
			defer close(printed)
			a.printRecords(store, backlog, version, changes)
		}()
	} else {
		close(printed)
	}

	if watchErr != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", watchErr)
		if !useAPI || errors.Is(watchErr, context.Canceled) {
			a.shutdown(ctrl, apiServer, store, notices, printed)
			_ = reg.Release()
			return 1
		}
	}

	if opts.useTUI {
		if err := tui.Run(ctx, store, ctrl, notices); err != nil {
			fmt.Fprintf(a.stderr, "TUI error: %v\n", err)
		}
	} else {
		<-ctx.Done()
		fmt.Fprintln(a.stdout, "\nShutting down...")
	}

	a.shutdown(ctrl, apiServer, store, notices, printed)
	if err := reg.Release(); err != nil {
		fmt.Fprintf(a.stderr, "Error removing instance state: %v\n", err)
	}

	select {
	case err := <-apiErr:
		fmt.Fprintf(a.stderr, "Error: API server: %v\n", err)
		return 1
	default:
	}
	if !opts.useTUI {
		fmt.Fprintln(a.stdout, "Shutdown complete")
	}
	return 0
}

// detachWatch re-runs the current command line in the background
func (a *App) detachWatch() int {
	if state, err := daemon.Running(""); err == nil {
		fmt.Fprintf(a.stderr, "Error: m3tail is already running here (pid %d, %s)\n", state.PID, state.URL())
		return 1
	}
	if err := daemon.CleanupStale(""); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	if err := daemon.EnsureStateDir(""); err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	logPath := daemon.LogPath("")
	pid, err := daemon.Detach(a.args, logPath)
	if err != nil {
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(a.stdout, "m3tail started (pid %d)\n", pid)
	fmt.Fprintf(a.stdout, "Logs: %s\n", logPath)
	return 0
}

// shutdown stops ingestion and the API, then closes the store so the
// printer drains and exits
func (a *App) shutdown(ctrl *ingest.Controller, apiServer *api.Server, store *logs.Store, notices *notify.Center, printed <-chan struct{}) {
	if err := ctrl.StopWatching(); err != nil {
		fmt.Fprintf(a.stderr, "Error stopping watch: %v\n", err)
	}

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeout)
		defer cancel()
		if err := apiServer.Shutdown(ctx); err != nil {
			fmt.Fprintf(a.stderr, "Error stopping API server: %v\n", err)
		}
	}

	store.Close()
	notices.Close()
	<-printed
}

// printRecords prints the backlog, then every record inserted after
// version until the channel closes
func (a *App) printRecords(store *logs.Store, backlog []domain.LogRecord, version uint64, changes <-chan domain.ViewChange) {
	printer := NewLogPrinter(a.stdout, a.noColor)
	for _, r := range backlog {
		printer.PrintRecord(r)
	}

	last := version
	for change := range changes {
		if change.Version <= version {
			continue
		}
		// A full subscription buffer drops changes rather than blocking ingestion
		if change.Version > last+1 {
			fmt.Fprintf(a.stderr, "(%d changes skipped)\n", change.Version-last-1)
		}
		last = change.Version

		if change.Reason == domain.ViewReasonInsert && change.Record != nil {
			printer.PrintRecord(*change.Record)
		}
	}

	if final := store.Stats().Version; final > last {
		fmt.Fprintf(a.stderr, "(%d changes skipped)\n", final-last)
	}
}
