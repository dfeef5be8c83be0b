package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/charliek/m3tail/internal/constants"
	"github.com/charliek/m3tail/internal/domain"
)

// Config represents the top-level m3tail configuration
type Config struct {
	Watch   WatchConfig `yaml:"watch"`
	API     APIConfig   `yaml:"api"`
	Log     LogConfig   `yaml:"log"`
	EnvFile string      `yaml:"env_file"`

	// Dir is the directory the config was loaded from, used to resolve
	// relative paths. Empty for defaults and parsed bytes.
	Dir string `yaml:"-"`
}

// WatchConfig defines what is ingested and how changes are followed
type WatchConfig struct {
	Path               string        `yaml:"path"`
	Include            []string      `yaml:"include"`
	Debounce           time.Duration `yaml:"-"`
	MaxConcurrentReads int           `yaml:"max_concurrent_reads"`
}

// APIConfig defines the HTTP API configuration
type APIConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"` // nil = enabled
	Port    int    `yaml:"port"`
	Host    string `yaml:"host"`
	Token   string `yaml:"-"` // Bearer token, from the environment only
}

// IsEnabled reports whether the API server should run
func (a APIConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Address returns host:port
func (a APIConfig) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// LogConfig defines the process logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// rawConfig is used for initial YAML parsing so durations can be given as strings
type rawConfig struct {
	Watch struct {
		Path               string   `yaml:"path"`
		Include            []string `yaml:"include"`
		Debounce           string   `yaml:"debounce"`
		MaxConcurrentReads int      `yaml:"max_concurrent_reads"`
	} `yaml:"watch"`
	API     APIConfig `yaml:"api"`
	Log     LogConfig `yaml:"log"`
	EnvFile string    `yaml:"env_file"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	config := &Config{}
	config.Watch.Debounce = constants.DefaultDebounce
	applyDefaults(config)
	return config
}

// Load reads and parses a configuration file
func Load(path string) (*Config, error) {
	// First check if file exists
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("checking config file: %w", err)
	}

	// Check file permissions for security
	if err := CheckFilePermissions(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if dir, err := filepath.Abs(filepath.Dir(path)); err == nil {
		config.Dir = dir
	}
	return config, nil
}

// Parse parses configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %v", domain.ErrInvalidConfig, err)
	}

	config := &Config{
		Watch: WatchConfig{
			Path:               raw.Watch.Path,
			Include:            raw.Watch.Include,
			MaxConcurrentReads: raw.Watch.MaxConcurrentReads,
		},
		API:     raw.API,
		Log:     raw.Log,
		EnvFile: raw.EnvFile,
	}

	if raw.Watch.Debounce != "" {
		d, err := time.ParseDuration(raw.Watch.Debounce)
		if err != nil {
			return nil, fmt.Errorf("%w: watch.debounce: %v", domain.ErrInvalidConfig, err)
		}
		config.Watch.Debounce = d
	} else {
		config.Watch.Debounce = constants.DefaultDebounce
	}

	applyDefaults(config)

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyDefaults(config *Config) {
	if len(config.Watch.Include) == 0 {
		config.Watch.Include = append([]string(nil), constants.DefaultIncludePatterns...)
	}
	if config.Watch.MaxConcurrentReads == 0 {
		config.Watch.MaxConcurrentReads = constants.DefaultMaxConcurrentReads
	}
	if config.API.Port == 0 {
		config.API.Port = constants.DefaultAPIPort
	}
	if config.API.Host == "" {
		config.API.Host = constants.DefaultAPIHost
	}
	if config.Log.Level == "" {
		config.Log.Level = constants.DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = constants.DefaultLogFormat
	}
}

// WatchPath returns the watch path resolved against the config directory
func (c *Config) WatchPath() string {
	if c.Watch.Path == "" {
		return ""
	}
	return resolvePath(c.Watch.Path, c.Dir)
}
