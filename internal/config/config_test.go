package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 14, cfg.Planner.MaxDays)
	assert.Equal(t, "09:00", cfg.Planner.DayStart)
	assert.Equal(t, 8, cfg.Deep.MaxSteps)
	assert.Equal(t, 24, cfg.Deep.CandidateCap)
	assert.True(t, cfg.Deep.FallbackToFast)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
planner:
  max_days: 5
deep:
  max_steps: 4
  fallback_to_fast: false
tasks:
  workers: 3
  drain_timeout: 5s
`)
	t.Setenv("TASK_PER_USER_LIMIT", "7")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Planner.MaxDays)
	assert.Equal(t, 4, cfg.Deep.MaxSteps)
	assert.False(t, cfg.Deep.FallbackToFast)
	assert.Equal(t, 3, cfg.Tasks.Workers)
	assert.Equal(t, 5*time.Second, cfg.Tasks.DrainTimeout)
	assert.Equal(t, 7, cfg.Tasks.PerUserLimit)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	// untouched sections keep defaults
	assert.Equal(t, 64, cfg.Tasks.QueueSize)
}

func TestLoad_ProviderSpecificKey(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: gemini\n")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}

func TestValidate_RejectsBadWindow(t *testing.T) {
	cfg := Default()
	cfg.Planner.DayStart = "18:00"
	cfg.Planner.DayEnd = "09:00"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LLM.Provider = "anthropic"
	assert.Error(t, cfg.Validate())
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "planner: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}
