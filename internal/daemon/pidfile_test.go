package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquirePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	p, err := AcquirePIDFile(path)
	if err != nil {
		t.Fatalf("AcquirePIDFile failed: %v", err)
	}
	defer p.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading PID file: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("PID file contains %q, want %d", got, os.Getpid())
	}

	if !IsLocked(path) {
		t.Error("expected PID file to be locked")
	}

	// flock locks belong to the open file, so a second acquire conflicts
	// even within one process
	if _, err := AcquirePIDFile(path); !errors.Is(err, ErrLocked) {
		t.Errorf("second acquire: expected ErrLocked, got %v", err)
	}
}

func TestAcquirePIDFile_OverwritesStaleContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(path, []byte("999999999999\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := AcquirePIDFile(path)
	if err != nil {
		t.Fatalf("AcquirePIDFile failed: %v", err)
	}
	defer p.Release()

	data, _ := os.ReadFile(path)
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("PID file contains %q", got)
	}
}

func TestPIDFile_Release(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	p, err := AcquirePIDFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("PID file should be removed")
	}
	if IsLocked(path) {
		t.Error("PID file should not be locked after release")
	}

	if err := p.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}

	var nilFile *PIDFile
	if err := nilFile.Release(); err != nil {
		t.Errorf("nil Release: %v", err)
	}
}

func TestIsLocked_Unlocked(t *testing.T) {
	dir := t.TempDir()

	if IsLocked(filepath.Join(dir, "missing.pid")) {
		t.Error("missing file should not be locked")
	}

	path := filepath.Join(dir, "plain.pid")
	if err := os.WriteFile(path, []byte("1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if IsLocked(path) {
		t.Error("unlocked file reported as locked")
	}
}

func TestProcessExists(t *testing.T) {
	if !ProcessExists(os.Getpid()) {
		t.Error("current process should exist")
	}
	if ProcessExists(0) {
		t.Error("PID 0 should not exist")
	}
	if ProcessExists(-1) {
		t.Error("negative PID should not exist")
	}
	// Far above any default pid_max
	if ProcessExists(1 << 30) {
		t.Error("huge PID should not exist")
	}
}
