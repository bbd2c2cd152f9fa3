package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.Model)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "https://api.perplexity.ai", cfg.Perplexity.BaseURL)
	assert.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	assert.Equal(t, 5, cfg.Scheduler.BatchSize)
	assert.Equal(t, 50*time.Second, cfg.Scheduler.MaxRuntime())
	assert.Equal(t, 7*24*time.Hour, cfg.Scheduler.SharedFreshness())
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.CustomerFreshness())
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.InterCallDelay())
	assert.Equal(t, 4, cfg.Scheduler.MaxParallelBackends)
	assert.Equal(t, 80, cfg.Extract.ContextRadius)
	assert.Equal(t, 200, cfg.Extract.MaxSnippetLength)
	assert.InDelta(t, 3.00, cfg.Pricing.Anthropic.Input, 0.001)
	assert.InDelta(t, 0.40, cfg.Pricing.Gemini.Output, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/visibility
log:
  level: debug
  format: console
server:
  port: 9090
scheduler:
  batch_size: 10
  max_runtime_secs: 25
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/visibility", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 25*time.Second, cfg.Scheduler.MaxRuntime())
	// Defaults still apply for unset values
	assert.Equal(t, 168, cfg.Scheduler.SharedFreshnessHours)
	assert.Equal(t, 80, cfg.Extract.ContextRadius)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chTempDir(t)

	yaml := `
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("VISIBILITY_SERVER_PORT", "7070")
	t.Setenv("VISIBILITY_OPENAI_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.OpenAI.Key)
}

func TestLoadEnvOnly(t *testing.T) {
	// No config file at all: every key, secrets included, must still be
	// reachable through the environment.
	chTempDir(t)

	t.Setenv("VISIBILITY_ANTHROPIC_KEY", "sk-ant")
	t.Setenv("VISIBILITY_PERPLEXITY_KEY", "pplx")
	t.Setenv("VISIBILITY_GEMINI_KEY", "gm")
	t.Setenv("VISIBILITY_SERVER_CRON_SECRET", "hunter2")
	t.Setenv("VISIBILITY_STORE_DATABASE_URL", "postgres://env/visibility")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-ant", cfg.Anthropic.Key)
	assert.Equal(t, "pplx", cfg.Perplexity.Key)
	assert.Equal(t, "gm", cfg.Gemini.Key)
	assert.Equal(t, "hunter2", cfg.Server.CronSecret)
	assert.Equal(t, "postgres://env/visibility", cfg.Store.DatabaseURL)
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"json info", LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", LogConfig{Level: "debug", Format: "console"}, false},
		{"bad level", LogConfig{Level: "verbose", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
