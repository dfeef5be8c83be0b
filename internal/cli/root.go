package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/charliek/m3tail/internal/config"
	"github.com/charliek/m3tail/internal/constants"
	"github.com/charliek/m3tail/internal/daemon"
	"github.com/charliek/m3tail/internal/domain"
)

// Version is set during build
var Version = "dev"

// exitError carries an exit code for failures already reported to the user
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// App holds global flag values and the output streams commands write to
type App struct {
	configPath           string
	configExplicitlySet  bool
	apiAddr              string
	apiAddrExplicitlySet bool
	noColor              bool

	// args are the arguments after the program name, re-used by a
	// detached watcher
	args []string

	stdout io.Writer
	stderr io.Writer
}

// NewApp creates an App writing to the process's stdout and stderr
func NewApp() *App {
	return &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// Run executes the command line in args (including the program name) and
// returns the process exit code
func (a *App) Run(args []string) int {
	root := a.newRootCmd()
	a.args = []string{}
	if len(args) > 1 {
		a.args = args[1:]
	}
	root.SetArgs(a.args)

	if err := root.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			return exit.code
		}
		fmt.Fprintf(a.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "m3tail",
		Short: "Follow and filter m3log files",
		Long: `m3tail loads m3log files under a path, follows changes to them and keeps
a deduplicated, filterable view of the records. It supports:
  - Recursive watching with debounced re-reads
  - Search, level and tag filtering
  - An HTTP API with a live change stream
  - Interactive TUI for browsing`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.configExplicitlySet = cmd.Flags().Changed("config")
			a.apiAddrExplicitlySet = cmd.Flags().Changed("addr")
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", constants.DefaultConfigFile, "Config file")
	root.PersistentFlags().StringVar(&a.apiAddr, "addr", constants.DefaultAPIAddress, "API address for remote commands")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	root.SetVersionTemplate("m3tail version {{.Version}}\n")

	root.AddCommand(
		a.newWatchCmd(),
		a.newParseCmd(),
		a.newEmitCmd(),
		a.newLogsCmd(),
		a.newFilterCmd(),
		a.newLevelsCmd(),
		a.newTagsCmd(),
		a.newStatusCmd(),
		a.newClearCmd(),
		a.newStartCmd(),
		a.newStopCmd(),
		a.newDownCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(a.stdout, "m3tail version %s\n", Version)
			},
		},
	)

	return root
}

// loadConfig loads the config file with environment overrides applied.
// A missing file falls back to the discovered one and then to defaults,
// unless --config was given explicitly.
func (a *App) loadConfig() (*config.Config, string, error) {
	path := a.configPath
	cfg, err := config.Load(path)
	if errors.Is(err, domain.ErrConfigNotFound) && !a.configExplicitlySet {
		path = ""
		if found, findErr := config.FindConfigFile(); findErr == nil {
			path = found
			cfg, err = config.Load(found)
		} else {
			cfg, err = config.Default(), nil
		}
	}
	if err != nil {
		return nil, "", err
	}

	if err := config.ApplyOverrides(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// client returns an API client for remote commands.
// The address priority is:
// 1. --addr
// 2. State file of a watcher running in the working directory
// 3. The config's api section
func (a *App) client() *Client {
	cfg, _, err := a.loadConfig()
	if err != nil {
		cfg = config.Default()
	}

	addr := a.apiAddr
	if !a.apiAddrExplicitlySet {
		addr = "http://" + cfg.API.Address()
		if state, err := daemon.Running(""); err == nil {
			addr = state.URL()
		}
	}
	return NewClient(addr, cfg.API.Token)
}
