// Package daemon tracks a running watcher through files under .m3tail/
// and starts detached watchers.
package daemon

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// ChildEnvVar marks the re-executed, detached process
const ChildEnvVar = "M3TAIL_DETACHED"

// IsChild reports whether this process was started by Detach
func IsChild() bool {
	return os.Getenv(ChildEnvVar) == "1"
}

// Detach starts the current executable with args in a new session. The
// child's output is appended to logPath. It returns the child's PID and
// does not wait for it.
func Detach(args []string, logPath string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("getting executable path: %w", err)
	}

	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return 0, fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(executable, args...)
	cmd.Env = append(os.Environ(), ChildEnvVar+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting detached process: %w", err)
	}

	pid := cmd.Process.Pid
	_ = cmd.Process.Release()
	return pid, nil
}

// FindAvailablePort asks the OS for a free TCP port on host
func FindAvailablePort(host string) (int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, fmt.Errorf("finding available port: %w", err)
	}
	defer listener.Close()

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected address type: %T", listener.Addr())
	}
	return tcpAddr.Port, nil
}

// Running returns the state of the watcher owning dir, or ErrNotRunning.
//
// This is best effort: the owner may exit right after the check.
func Running(dir string) (*State, error) {
	state, err := LoadState(dir)
	if errors.Is(err, ErrStateNotFound) {
		return nil, ErrNotRunning
	}
	if err != nil {
		return nil, err
	}

	if IsLocked(PIDPath(dir)) || ProcessExists(state.PID) {
		return state, nil
	}
	return nil, ErrNotRunning
}

// CleanupStale removes files left behind by a watcher that did not exit
// cleanly. It returns ErrAlreadyRunning if the owner is still alive.
func CleanupStale(dir string) error {
	if IsLocked(PIDPath(dir)) {
		return ErrAlreadyRunning
	}

	state, err := LoadState(dir)
	if err != nil && !errors.Is(err, ErrStateNotFound) {
		return err
	}
	if state != nil && ProcessExists(state.PID) && state.PID != os.Getpid() {
		return ErrAlreadyRunning
	}
	return CleanupStateDir(dir)
}

// Registration is a claim on a directory by the current process
type Registration struct {
	dir string
	pid *PIDFile
}

// Register claims dir for the current process and records state there.
// PID and StartedAt are filled in when unset.
func Register(dir string, state State) (*Registration, error) {
	if err := EnsureStateDir(dir); err != nil {
		return nil, err
	}

	pid, err := AcquirePIDFile(PIDPath(dir))
	if errors.Is(err, ErrLocked) {
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, err
	}

	if state.PID == 0 {
		state.PID = os.Getpid()
	}
	if state.StartedAt.IsZero() {
		state.StartedAt = time.Now().UTC()
	}
	if err := state.Write(dir); err != nil {
		_ = pid.Release()
		return nil, err
	}

	return &Registration{dir: dir, pid: pid}, nil
}

// Release removes the state and gives up the claim
func (r *Registration) Release() error {
	if r == nil {
		return nil
	}
	err := RemoveState(r.dir)
	if perr := r.pid.Release(); err == nil {
		err = perr
	}
	return err
}
