package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/charliek/m3tail/internal/domain"
)

// Environment variables that override configuration keys
const (
	EnvWatchPath = "M3TAIL_WATCH_PATH"
	EnvAPIHost   = "M3TAIL_API_HOST"
	EnvAPIPort   = "M3TAIL_API_PORT"
	EnvAPIToken  = "M3TAIL_API_TOKEN"
	EnvLogLevel  = "M3TAIL_LOG_LEVEL"
	EnvLogFormat = "M3TAIL_LOG_FORMAT"
	EnvDebounce  = "M3TAIL_DEBOUNCE"
)

var overrideKeys = []string{EnvWatchPath, EnvAPIHost, EnvAPIPort, EnvAPIToken, EnvLogLevel, EnvLogFormat, EnvDebounce}

// LoadEnvFile reads a .env file and returns the variables as a map
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("env file not found: %s", path)
	}

	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}

	return env, nil
}

// MergeEnv merges multiple environment maps in order, with later maps taking precedence
func MergeEnv(envMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, env := range envMaps {
		for k, v := range env {
			result[k] = v
		}
	}
	return result
}

// processOverrides returns the override keys set in the process environment
func processOverrides() map[string]string {
	env := make(map[string]string)
	for _, key := range overrideKeys {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env
}

// ApplyOverrides applies environment overrides to config.
// Priority (lowest to highest):
// 1. Config file values
// 2. env_file
// 3. Process environment
func ApplyOverrides(config *Config) error {
	var fileEnv map[string]string
	if config.EnvFile != "" {
		var err error
		fileEnv, err = LoadEnvFile(resolvePath(config.EnvFile, config.Dir))
		if err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	}

	if err := ApplyEnv(config, MergeEnv(fileEnv, processOverrides())); err != nil {
		return err
	}
	return Validate(config)
}

// ApplyEnv applies the recognized override keys in env to config
func ApplyEnv(config *Config, env map[string]string) error {
	if v, ok := env[EnvWatchPath]; ok && v != "" {
		// Relative to the working directory, not the config file
		config.Watch.Path = v
		if abs, err := filepath.Abs(v); err == nil {
			config.Watch.Path = abs
		}
	}
	if v, ok := env[EnvAPIHost]; ok && v != "" {
		config.API.Host = v
	}
	if v, ok := env[EnvAPIPort]; ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, EnvAPIPort, err)
		}
		config.API.Port = port
	}
	if v, ok := env[EnvAPIToken]; ok && v != "" {
		config.API.Token = v
	}
	if v, ok := env[EnvLogLevel]; ok && v != "" {
		config.Log.Level = v
	}
	if v, ok := env[EnvLogFormat]; ok && v != "" {
		config.Log.Format = v
	}
	if v, ok := env[EnvDebounce]; ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, EnvDebounce, err)
		}
		config.Watch.Debounce = d
	}
	return nil
}

// resolvePath resolves a potentially relative path against a base directory
func resolvePath(path, baseDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() (string, error) {
	candidates := []string{
		"m3tail.yaml",
		"m3tail.yml",
		".m3tail.yaml",
		".m3tail.yml",
	}

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: tried %v", domain.ErrConfigNotFound, candidates)
}

// CheckFilePermissions checks if a file has secure permissions.
// On Unix-like systems, it verifies the file is not world-writable.
func CheckFilePermissions(path string) error {
	// Skip permission check on Windows
	if runtime.GOOS == "windows" {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking file permissions: %w", err)
	}

	if info.Mode().Perm()&0002 != 0 {
		return fmt.Errorf("%w: config file %s is world-writable. Please run: chmod o-w %s", domain.ErrInvalidConfig, path, path)
	}

	return nil
}
