// Package config holds the diffjury application configuration and helpers
// for loading it from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	// Global configuration instance
	globalConfig *Config
	configMutex  sync.RWMutex
)

// Get returns the global configuration instance
// If the configuration has not been initialized, it will return an error
func Get() (*Config, error) {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}

	return globalConfig, nil
}

// Set sets the global configuration instance
func Set(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = cfg
}

// Config represents the complete application configuration
type Config struct {
	OpenAI    OpenAIConfig
	Analysis  AnalysisConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	configDir string // Internal: Directory where config was loaded from
}

// OpenAIConfig holds configuration specific to the OpenAI client
type OpenAIConfig struct {
	APIKey      string        // API key used when none is supplied per call
	BaseURL     string        // API base URL (override for proxies or tests)
	Model       string        // Default chat model
	MaxTokens   int           // Maximum tokens to generate
	Temperature float64       // Sampling temperature
	Timeout     time.Duration // Request timeout
}

// AnalysisConfig represents tunables of the analysis pipeline
type AnalysisConfig struct {
	Concurrency  int  // Number of files judged in parallel
	MaxDiffBytes int  // Diffs larger than this are split on hunk boundaries
	History      bool // Whether analysis runs are persisted to the local database
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	CacheSize       int           // Cache size in KiB
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Query timeout
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// New creates an empty configuration
func New() *Config {
	return &Config{}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Analysis.Concurrency < 1 {
		return fmt.Errorf("analysis concurrency must be at least 1, got %d", c.Analysis.Concurrency)
	}

	if c.Analysis.MaxDiffBytes < 1024 {
		return fmt.Errorf("analysis max diff bytes must be at least 1024, got %d", c.Analysis.MaxDiffBytes)
	}

	if c.OpenAI.Timeout <= 0 {
		return fmt.Errorf("openai timeout must be positive, got %s", c.OpenAI.Timeout)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// ParseLogLevel converts a string log level to slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnvString gets a string from environment variables with a default value
func getEnvString(key, defaultValue string) string {
	if value, exists := lookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer from environment variables with a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := lookupEnv(key); exists && value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat gets a float from environment variables with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := lookupEnv(key); exists && value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool gets a boolean from environment variables with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := lookupEnv(key); exists && value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration from environment variables with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := lookupEnv(key); exists && value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
