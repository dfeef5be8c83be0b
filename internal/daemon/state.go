package daemon

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// StateDirName is the directory, relative to where m3tail runs, holding runtime files
	StateDirName = ".m3tail"
	// StateFileName holds the JSON State of the running watcher
	StateFileName = "m3tail.state"
	// PIDFileName is the locked PID file
	PIDFileName = "m3tail.pid"
	// LogFileName receives the output of a detached watcher
	LogFileName = "m3tail.log"
)

// State describes a running watcher so remote commands can reach its API.
// It is written once at startup and only read afterwards.
type State struct {
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	WatchPath  string    `json:"watch_path,omitempty"`
	ConfigFile string    `json:"config_file,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// URL returns the base URL of the watcher's API
func (s *State) URL() string {
	return "http://" + net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s *State) validate() error {
	if s.PID <= 0 {
		return fmt.Errorf("invalid PID: %d", s.PID)
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}
	if s.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	return nil
}

// Write stores the state under dir. The file is replaced atomically so a
// concurrent LoadState never sees a partial write.
func (s *State) Write(dir string) error {
	if err := s.validate(); err != nil {
		return err
	}
	if err := EnsureStateDir(dir); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp, err := os.CreateTemp(StateDir(dir), StateFileName+".*")
	if err != nil {
		return fmt.Errorf("creating state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), StatePath(dir)); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// LoadState reads the state stored under dir
func LoadState(dir string) (*State, error) {
	data, err := os.ReadFile(StatePath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	return &state, nil
}

// RemoveState removes the state file under dir
func RemoveState(dir string) error {
	if err := os.Remove(StatePath(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// StateDir returns the runtime directory under dir, or under the working
// directory when dir is empty
func StateDir(dir string) string {
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return StateDirName
		}
	}
	return filepath.Join(dir, StateDirName)
}

// StatePath returns the path of the state file
func StatePath(dir string) string {
	return filepath.Join(StateDir(dir), StateFileName)
}

// PIDPath returns the path of the PID file
func PIDPath(dir string) string {
	return filepath.Join(StateDir(dir), PIDFileName)
}

// LogPath returns the path of the detached watcher's log
func LogPath(dir string) string {
	return filepath.Join(StateDir(dir), LogFileName)
}

// EnsureStateDir creates the runtime directory
func EnsureStateDir(dir string) error {
	if err := os.MkdirAll(StateDir(dir), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return nil
}

// CleanupStateDir removes the state and PID files. The log is kept.
func CleanupStateDir(dir string) error {
	if err := RemoveState(dir); err != nil {
		return err
	}
	if err := os.Remove(PIDPath(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}
