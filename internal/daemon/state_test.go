package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestState_Write_Validation(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		wantErr bool
	}{
		{name: "valid", state: State{PID: 42, Host: "127.0.0.1", Port: 5656}},
		{name: "zero PID", state: State{PID: 0, Host: "127.0.0.1", Port: 5656}, wantErr: true},
		{name: "port too low", state: State{PID: 42, Host: "127.0.0.1", Port: 0}, wantErr: true},
		{name: "port too high", state: State{PID: 42, Host: "127.0.0.1", Port: 70000}, wantErr: true},
		{name: "empty host", state: State{PID: 42, Port: 5656}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Write(t.TempDir())
			if (err != nil) != tt.wantErr {
				t.Errorf("Write() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestState_WriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	want := State{
		PID:        1234,
		Host:       "127.0.0.1",
		Port:       5656,
		WatchPath:  "/var/log/app",
		ConfigFile: "m3tail.yaml",
		StartedAt:  started,
	}

	if err := want.Write(dir); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	info, err := os.Stat(StatePath(dir))
	if err != nil {
		t.Fatalf("state file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("state file permissions = %o, want 600", perm)
	}

	got, err := LoadState(dir)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	if *got != want {
		t.Errorf("LoadState = %+v, want %+v", *got, want)
	}

	// No temp files are left next to the state
	entries, err := os.ReadDir(StateDir(dir))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the state file, got %d entries", len(entries))
	}
}

func TestState_URL(t *testing.T) {
	s := State{Host: "127.0.0.1", Port: 5656}
	if got := s.URL(); got != "http://127.0.0.1:5656" {
		t.Errorf("URL() = %q", got)
	}

	s = State{Host: "::1", Port: 8080}
	if got := s.URL(); got != "http://[::1]:8080" {
		t.Errorf("URL() = %q", got)
	}
}

func TestLoadState_NotFound(t *testing.T) {
	_, err := LoadState(t.TempDir())
	if !errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected ErrStateNotFound, got %v", err)
	}
}

func TestLoadState_Corrupt(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureStateDir(dir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(StatePath(dir), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadState(dir)
	if err == nil || errors.Is(err, ErrStateNotFound) {
		t.Errorf("expected an unmarshal error, got %v", err)
	}
}

func TestPaths(t *testing.T) {
	dir := "/work"
	if got := StateDir(dir); got != filepath.Join(dir, ".m3tail") {
		t.Errorf("StateDir = %q", got)
	}
	if got := StatePath(dir); got != filepath.Join(dir, ".m3tail", "m3tail.state") {
		t.Errorf("StatePath = %q", got)
	}
	if got := PIDPath(dir); got != filepath.Join(dir, ".m3tail", "m3tail.pid") {
		t.Errorf("PIDPath = %q", got)
	}
	if got := LogPath(dir); got != filepath.Join(dir, ".m3tail", "m3tail.log") {
		t.Errorf("LogPath = %q", got)
	}
}

func TestStateDir_Empty(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if got := StateDir(""); got != filepath.Join(wd, StateDirName) {
		t.Errorf("StateDir(\"\") = %q", got)
	}
}

func TestRemoveState(t *testing.T) {
	dir := t.TempDir()

	// Missing state is not an error
	if err := RemoveState(dir); err != nil {
		t.Errorf("RemoveState on missing file: %v", err)
	}

	s := State{PID: 1, Host: "localhost", Port: 1}
	if err := s.Write(dir); err != nil {
		t.Fatal(err)
	}
	if err := RemoveState(dir); err != nil {
		t.Fatalf("RemoveState failed: %v", err)
	}
	if _, err := os.Stat(StatePath(dir)); !os.IsNotExist(err) {
		t.Error("state file still exists")
	}
}

func TestCleanupStateDir(t *testing.T) {
	dir := t.TempDir()
	if err := EnsureStateDir(dir); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{StatePath(dir), PIDPath(dir), LogPath(dir)} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	if err := CleanupStateDir(dir); err != nil {
		t.Fatalf("CleanupStateDir failed: %v", err)
	}

	if _, err := os.Stat(StatePath(dir)); !os.IsNotExist(err) {
		t.Error("state file still exists")
	}
	if _, err := os.Stat(PIDPath(dir)); !os.IsNotExist(err) {
		t.Error("PID file still exists")
	}
	if _, err := os.Stat(LogPath(dir)); err != nil {
		t.Error("log file should be kept")
	}
}
