package config

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/charliek/m3tail/internal/domain"
	"github.com/charliek/m3tail/internal/logging"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors. Every problem is reported.
func Validate(config *Config) error {
	var errs []string

	if config.API.Port < 0 || config.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port: must be between 0 and 65535, got %d", config.API.Port))
	}

	for i, pattern := range config.Watch.Include {
		if err := ValidatePattern(pattern); err != nil {
			errs = append(errs, fmt.Sprintf("watch.include[%d]: %v", i, err))
		}
	}

	if config.Watch.Debounce < 0 {
		errs = append(errs, "watch.debounce: must be non-negative")
	}
	if config.Watch.MaxConcurrentReads < 0 {
		errs = append(errs, "watch.max_concurrent_reads: must be non-negative")
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		errs = append(errs, fmt.Sprintf("log.level: %v", err))
	}
	if !logging.ValidFormat(config.Log.Format) {
		errs = append(errs, fmt.Sprintf("log.format: must be text or json, got %q", config.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// ValidatePattern checks that an include pattern is usable
func ValidatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return &ValidationError{Field: "include", Message: "pattern cannot be empty"}
	}
	if !doublestar.ValidatePattern(pattern) {
		return &ValidationError{Field: "include", Message: fmt.Sprintf("invalid pattern %q", pattern)}
	}
	return nil
}
