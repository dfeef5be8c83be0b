package daemon

import "errors"

var (
	// ErrStateNotFound is returned when no state file exists
	ErrStateNotFound = errors.New("state file not found")
	// ErrAlreadyRunning is returned when a watcher already owns the directory
	ErrAlreadyRunning = errors.New("m3tail is already running in this directory")
	// ErrNotRunning is returned when no watcher owns the directory
	ErrNotRunning = errors.New("m3tail is not running")
	// ErrLocked is returned when another process holds the PID file lock
	ErrLocked = errors.New("PID file is locked by another process")
)
