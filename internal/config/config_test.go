package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app_errors "stockchat/backend/internal/errors"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.AppPort)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.LLMModel)
	assert.Equal(t, "memory", cfg.CheckpointBackend)
	assert.Equal(t, 8, cfg.MaxToolRounds)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Contains(t, cfg.SystemPrompt, "render_stock_chart")
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("CHECKPOINT_BACKEND", "sqlite")
	t.Setenv("TOOL_TIMEOUT", "5s")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.AppPort)
	assert.Equal(t, "sqlite", cfg.CheckpointBackend)
	assert.Equal(t, 5*time.Second, cfg.ToolTimeout)
	assert.Equal(t, "google-key", cfg.LLMAPIKey)
}

func TestLoadConfig_RejectsUnknownProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "bogus")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.ErrorIs(t, err, app_errors.ErrValidation)
}

func TestConfig_Validate(t *testing.T) {
	base := Config{LLMProvider: "ollama", CheckpointBackend: "bolt", MaxToolRounds: 1, ToolTimeout: time.Second}
	require.NoError(t, base.Validate())

	bad := base
	bad.CheckpointBackend = "postgres"
	assert.ErrorIs(t, bad.Validate(), app_errors.ErrValidation)

	bad = base
	bad.MaxToolRounds = 0
	assert.ErrorIs(t, bad.Validate(), app_errors.ErrValidation)
}

func TestLoadClientConfig(t *testing.T) {
	t.Setenv("STOCKCHAT_API_URL", "http://api.example.com/")

	cfg, err := LoadClientConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", cfg.APIURL)
	assert.Equal(t, time.Duration(0), cfg.Timeout)
}
