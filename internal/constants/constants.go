// Package constants provides shared configuration values used across the m3tail application.
package constants

import "time"

// Configuration file defaults
const (
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "m3tail.yaml"

	// DefaultAPIHost is the default host for the API server
	DefaultAPIHost = "127.0.0.1"

	// DefaultAPIPort is the default port for the API server
	DefaultAPIPort = 5656

	// DefaultAPIAddress is the default API address for client connections
	DefaultAPIAddress = "http://127.0.0.1:5656"
)

// Watch defaults
const (
	// DefaultDebounce is the quiet period before a batch of changes is handled
	DefaultDebounce = 500 * time.Millisecond

	// DefaultMaxConcurrentReads bounds concurrent file re-reads
	DefaultMaxConcurrentReads = 4
)

// DefaultIncludePatterns are the file names recognized as m3log files
var DefaultIncludePatterns = []string{"*.log", "*.txt"}

// Timeout and duration defaults
const (
	// DefaultRequestTimeout is the default timeout for API requests
	DefaultRequestTimeout = 30 * time.Second

	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
)

// Log configuration
const (
	// DefaultLogLimit is the default number of records to return
	DefaultLogLimit = 100

	// MaxLogLines is the maximum number of records that can be requested
	MaxLogLines = 10000

	// MaxIngestBodySize caps POSTed m3log text
	MaxIngestBodySize = 4 << 20 // 4MB

	// DefaultLogLevel and DefaultLogFormat configure the process logger
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Buffer sizes
const (
	// DefaultSubscriptionBuffer is the default size for subscription buffers
	DefaultSubscriptionBuffer = 100

	// DefaultNoticeCapacity is the number of user notices retained
	DefaultNoticeCapacity = 100

	// DefaultDiagnosticCapacity is the number of ingestion diagnostics retained
	DefaultDiagnosticCapacity = 500

	// ScannerBufferSize is the initial buffer size for SSE line scanning
	ScannerBufferSize = 64 * 1024 // 64KB

	// ScannerMaxBufferSize is the maximum buffer size for SSE line scanning
	ScannerMaxBufferSize = 1024 * 1024 // 1MB
)

// ANSI color codes for terminal output
var (
	// LevelColors maps well-known levels to colors in printed output
	LevelColors = map[string]string{
		"ERROR": "\033[31m", // red
		"WARN":  "\033[33m", // yellow
		"INFO":  "\033[32m", // green
		"DEBUG": "\033[36m", // cyan
		"TRACE": "\033[34m", // blue
	}

	// TagColor is used for the tag list in printed output
	TagColor = "\033[35m"

	// ColorReset resets the terminal color
	ColorReset = "\033[0m"

	// ColorBrightRed is used for malformed-line reports
	ColorBrightRed = "\033[91m"
)
