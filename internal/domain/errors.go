package domain

import "errors"

// Domain errors
var (
	ErrFormat            = errors.New("invalid m3log line")
	ErrNotFound          = errors.New("path not found")
	ErrIsDirectory       = errors.New("path is a directory")
	ErrIO                = errors.New("i/o failure")
	ErrPrecondition      = errors.New("precondition failed")
	ErrWatchRegistration = errors.New("watch registration failed")
	ErrConfigNotFound    = errors.New("config file not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Error codes for API responses
const (
	ErrCodeFormat            = "FORMAT_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeIO                = "IO_ERROR"
	ErrCodePrecondition      = "PRECONDITION_FAILED"
	ErrCodeWatchRegistration = "WATCH_REGISTRATION_FAILED"
	ErrCodeInvalidConfig     = "INVALID_CONFIG"

	// API-only codes with no matching sentinel
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeStreamingNotSupported = "STREAMING_NOT_SUPPORTED"
)

// ErrorCode returns the API error code for a domain error
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrFormat):
		return ErrCodeFormat
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConfigNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrIO), errors.Is(err, ErrIsDirectory):
		return ErrCodeIO
	case errors.Is(err, ErrPrecondition):
		return ErrCodePrecondition
	case errors.Is(err, ErrWatchRegistration):
		return ErrCodeWatchRegistration
	case errors.Is(err, ErrInvalidConfig):
		return ErrCodeInvalidConfig
	default:
		return "INTERNAL_ERROR"
	}
}
