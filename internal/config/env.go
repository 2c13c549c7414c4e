package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// lookupEnv is the environment accessor used by the getEnv helpers.
// It is a variable so tests can substitute a fake environment.
var lookupEnv = os.LookupEnv

// DefaultsFromEnv builds a configuration from environment variables alone,
// without touching the filesystem. Used by the C library entry points, which
// must not create config directories or database files on the host process's
// behalf.
func DefaultsFromEnv() (*Config, error) {
	cfg := New()

	cfg.OpenAI = OpenAIConfig{
		BaseURL:     getEnvString("DIFFJURY_OPENAI_BASE_URL", ""),
		Model:       getEnvString("DIFFJURY_OPENAI_MODEL", "gpt-3.5-turbo"),
		MaxTokens:   getEnvInt("DIFFJURY_OPENAI_MAX_TOKENS", 1024),
		Temperature: getEnvFloat("DIFFJURY_OPENAI_TEMPERATURE", 0.1),
		Timeout:     getEnvDuration("DIFFJURY_OPENAI_TIMEOUT", 60*time.Second),
	}

	cfg.Analysis = AnalysisConfig{
		Concurrency:  getEnvInt("DIFFJURY_ANALYSIS_CONCURRENCY", 4),
		MaxDiffBytes: getEnvInt("DIFFJURY_ANALYSIS_MAX_DIFF_BYTES", 12000),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("DIFFJURY_LOG_LEVEL", "error"),
		Format:     getEnvString("DIFFJURY_LOG_FORMAT", "text"),
		Output:     "stderr",
		TimeFormat: time.RFC3339,
	}

	return cfg, cfg.Validate()
}

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - envFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, envFilePath string) (*Config, error) {
	cfg := New()

	// If configDir is empty, use the default
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".diffjury")

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	defaultDBPath := filepath.Join(configDir, "diffjury.db")
	defaultLogPath := filepath.Join(configDir, "diffjury.log")

	// Use provided env file path or default
	if envFilePath == "" {
		envFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	customEnvFile := getEnvString("ENV_FILE_PATH", "")
	if customEnvFile != "" {
		if err := godotenv.Load(customEnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", customEnvFile, err)
		}
	} else {
		// Try the config directory first, then the current directory as fallback
		if err := godotenv.Load(envFilePath); err != nil {
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	// OpenAI Configuration
	cfg.OpenAI = OpenAIConfig{
		APIKey:      getEnvString("DIFFJURY_OPENAI_API_KEY", ""),
		BaseURL:     getEnvString("DIFFJURY_OPENAI_BASE_URL", ""),
		Model:       getEnvString("DIFFJURY_OPENAI_MODEL", "gpt-3.5-turbo"),
		MaxTokens:   getEnvInt("DIFFJURY_OPENAI_MAX_TOKENS", 1024),
		Temperature: getEnvFloat("DIFFJURY_OPENAI_TEMPERATURE", 0.1),
		Timeout:     getEnvDuration("DIFFJURY_OPENAI_TIMEOUT", 60*time.Second),
	}

	// Analysis Configuration
	cfg.Analysis = AnalysisConfig{
		Concurrency:  getEnvInt("DIFFJURY_ANALYSIS_CONCURRENCY", 4),
		MaxDiffBytes: getEnvInt("DIFFJURY_ANALYSIS_MAX_DIFF_BYTES", 12000),
		History:      getEnvBool("DIFFJURY_ANALYSIS_HISTORY", true),
	}

	// Database Configuration
	cfg.Database = DatabaseConfig{
		Path:            getEnvString("DIFFJURY_DB_PATH", defaultDBPath),
		BusyTimeout:     getEnvInt("DIFFJURY_DB_BUSY_TIMEOUT", 5000),
		JournalMode:     getEnvString("DIFFJURY_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("DIFFJURY_DB_SYNCHRONOUS_MODE", "NORMAL"),
		CacheSize:       getEnvInt("DIFFJURY_DB_CACHE_SIZE", -64000), // ~64MB
		ForeignKeys:     getEnvBool("DIFFJURY_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("DIFFJURY_DB_CONN_MAX_LIFE", 5*time.Minute),
		QueryTimeout:    getEnvDuration("DIFFJURY_DB_QUERY_TIMEOUT", 30*time.Second),
	}

	// Logging Configuration
	cfg.Logging = LoggingConfig{
		Level:      getEnvString("DIFFJURY_LOG_LEVEL", "info"),
		Format:     getEnvString("DIFFJURY_LOG_FORMAT", "text"),
		Output:     getEnvString("DIFFJURY_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("DIFFJURY_LOG_ADD_SOURCE", true),
		TimeFormat: getEnvString("DIFFJURY_LOG_TIME_FORMAT", time.RFC3339),
	}

	// Validate the configuration
	return cfg, cfg.Validate()
}
