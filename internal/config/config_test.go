package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withEnv substitutes the environment accessor for the duration of a test
func withEnv(t *testing.T, env map[string]string) {
	t.Helper()

	original := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = original })
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg, err := LoadFromEnv(t.TempDir(), "nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAI.Model)
	assert.Equal(t, 1024, cfg.OpenAI.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.Equal(t, 12000, cfg.Analysis.MaxDiffBytes)
	assert.True(t, cfg.Analysis.History)
	assert.Equal(t, "WAL", cfg.Database.JournalMode)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	withEnv(t, map[string]string{
		"DIFFJURY_OPENAI_API_KEY":         "sk-test",
		"DIFFJURY_OPENAI_MODEL":           "gpt-4o",
		"DIFFJURY_OPENAI_TIMEOUT":         "90s",
		"DIFFJURY_OPENAI_TEMPERATURE":     "0.5",
		"DIFFJURY_ANALYSIS_CONCURRENCY":   "8",
		"DIFFJURY_ANALYSIS_MAX_DIFF_BYTES": "20000",
		"DIFFJURY_ANALYSIS_HISTORY":       "false",
		"DIFFJURY_DB_PATH":                "/tmp/test.db",
		"DIFFJURY_LOG_LEVEL":              "debug",
		"DIFFJURY_LOG_FORMAT":             "json",
	})

	cfg, err := LoadFromEnv(t.TempDir(), "nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 90*time.Second, cfg.OpenAI.Timeout)
	assert.InDelta(t, 0.5, cfg.OpenAI.Temperature, 0.001)
	assert.Equal(t, 8, cfg.Analysis.Concurrency)
	assert.Equal(t, 20000, cfg.Analysis.MaxDiffBytes)
	assert.False(t, cfg.Analysis.History)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromEnv_InvalidValuesFallBack(t *testing.T) {
	withEnv(t, map[string]string{
		"DIFFJURY_ANALYSIS_CONCURRENCY": "not-a-number",
		"DIFFJURY_OPENAI_TIMEOUT":       "garbage",
	})

	cfg, err := LoadFromEnv(t.TempDir(), "nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
}

func TestDefaultsFromEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"DIFFJURY_OPENAI_MODEL": "gpt-4o-mini",
	})

	cfg, err := DefaultsFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	// No filesystem side effects for the library path
	assert.Empty(t, cfg.ConfigDir())
	assert.Empty(t, cfg.Database.Path)
}

func TestValidate(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg, err := LoadFromEnv(t.TempDir(), "nonexistent.env")
	require.NoError(t, err)

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, cfg.Validate())
	})

	t.Run("zero concurrency", func(t *testing.T) {
		bad := *cfg
		bad.Analysis.Concurrency = 0
		assert.Error(t, bad.Validate())
	})

	t.Run("tiny diff budget", func(t *testing.T) {
		bad := *cfg
		bad.Analysis.MaxDiffBytes = 10
		assert.Error(t, bad.Validate())
	})

	t.Run("bad log level", func(t *testing.T) {
		bad := *cfg
		bad.Logging.Level = "verbose"
		assert.Error(t, bad.Validate())
	})

	t.Run("bad log format", func(t *testing.T) {
		bad := *cfg
		bad.Logging.Format = "xml"
		assert.Error(t, bad.Validate())
	})
}

func TestGlobalConfig(t *testing.T) {
	withEnv(t, map[string]string{})

	cfg, err := LoadFromEnv(t.TempDir(), "nonexistent.env")
	require.NoError(t, err)

	Set(cfg)
	got, err := Get()
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLogLevel("debug").String())
	assert.Equal(t, "INFO", ParseLogLevel("info").String())
	assert.Equal(t, "WARN", ParseLogLevel("warn").String())
	assert.Equal(t, "ERROR", ParseLogLevel("error").String())
	assert.Equal(t, "INFO", ParseLogLevel("unknown").String())
}
