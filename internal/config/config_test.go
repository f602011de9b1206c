package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.MaxAgentSteps)
	assert.Equal(t, 3, cfg.SelectedCharactersCap)
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 5*time.Minute, cfg.RenderTimeout)
	assert.Equal(t, "redis", cfg.StoreBackend)
	assert.Equal(t, defaultModels["anthropic"], cfg.PlannerModel)
	assert.Equal(t, cfg.PlannerModel, cfg.StructurerModel)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MAX_AGENT_STEPS", "4")
	t.Setenv("SELECTED_CHARACTERS_CAP", "2")
	t.Setenv("LLM_TIMEOUT", "15s")
	t.Setenv("LLM_PROVIDER", "Venice")
	t.Setenv("LLM_MODEL_PLANNER", "planner-x")
	t.Setenv("LLM_MODEL_STRUCTURER", "structurer-y")
	t.Setenv("STORE_BACKEND", "SQLITE")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxAgentSteps)
	assert.Equal(t, 2, cfg.SelectedCharactersCap)
	assert.Equal(t, 15*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "venice", cfg.LLMProvider)
	assert.Equal(t, "planner-x", cfg.PlannerModel)
	assert.Equal(t, "structurer-y", cfg.StructurerModel)
	assert.Equal(t, "planner-x", cfg.WriterModel)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero cap", "SELECTED_CHARACTERS_CAP", "0"},
		{"cap above scene limit", "SELECTED_CHARACTERS_CAP", "5"},
		{"zero steps", "MAX_AGENT_STEPS", "0"},
		{"bad duration", "RENDER_TIMEOUT", "soon"},
		{"unknown provider", "LLM_PROVIDER", "bedrock"},
		{"unknown store", "STORE_BACKEND", "mongo"},
		{"unknown renderer", "RENDER_PROVIDER", "dalle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}
