package daemon

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// PIDFile is an exclusively locked file holding the owner's PID.
// The lock is released when the process exits, so a crashed watcher never
// leaves the directory claimed.
type PIDFile struct {
	path string
	file *os.File
}

// AcquirePIDFile creates and locks the PID file at path and writes the
// current PID to it. It returns ErrLocked when another holder exists.
func AcquirePIDFile(path string) (*PIDFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening PID file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("locking PID file: %w", err)
	}

	p := &PIDFile{path: path, file: f}
	if err := p.writePID(); err != nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		return nil, err
	}
	return p, nil
}

func (p *PIDFile) writePID() error {
	if err := p.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating PID file: %w", err)
	}
	if _, err := p.file.WriteAt([]byte(fmt.Sprintf("%d\n", os.Getpid())), 0); err != nil {
		return fmt.Errorf("writing PID: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("syncing PID file: %w", err)
	}
	return nil
}

// Release unlocks and removes the PID file. It is safe to call twice.
func (p *PIDFile) Release() error {
	if p == nil || p.file == nil {
		return nil
	}

	_ = syscall.Flock(int(p.file.Fd()), syscall.LOCK_UN)
	_ = p.file.Close()
	p.file = nil

	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// IsLocked reports whether some process holds the lock on path.
// A missing file is not locked.
func IsLocked(path string) bool {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err != nil {
		return true
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false
}

// ProcessExists checks if a process with the given PID exists
func ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds; signal 0 probes. EPERM means
	// the process exists but belongs to someone else.
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
