package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Default models per LLM provider, used when LLM_MODEL_PLANNER is unset.
var defaultModels = map[string]string{
	"anthropic": "claude-3-5-sonnet-latest",
	"venice":    "llama-3.3-70b",
	"openai":    "gpt-4o-mini",
	"ollama":    "llama3.1",
}

type Config struct {
	Port         string     `env:"PORT" envDefault:"8080"`
	Environment  string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level `env:"-"`
	WorkerID     string     `env:"WORKER_ID"`

	// LLM
	LLMProvider     string        `env:"LLM_PROVIDER" envDefault:"anthropic"`
	AnthropicAPIKey string        `env:"ANTHROPIC_API_KEY"`
	VeniceAPIKey    string        `env:"VENICE_API_KEY"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OllamaURL       string        `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`
	PlannerModel    string        `env:"LLM_MODEL_PLANNER"`
	StructurerModel string        `env:"LLM_MODEL_STRUCTURER"`
	WriterModel     string        `env:"LLM_MODEL_WRITER"`
	LLMTimeout      time.Duration `env:"LLM_TIMEOUT" envDefault:"90s"`

	// Agent
	MaxAgentSteps         int `env:"MAX_AGENT_STEPS" envDefault:"10"`
	SelectedCharactersCap int `env:"SELECTED_CHARACTERS_CAP" envDefault:"3"`

	// Entity store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL     string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"./data/scenes.db"`

	// Image rendering
	RenderProvider     string        `env:"RENDER_PROVIDER" envDefault:"comfyui"`
	ComfyUIURL         string        `env:"COMFYUI_API_URL" envDefault:"http://localhost:8188"`
	WorkflowsDir       string        `env:"COMFYUI_WORKFLOWS_DIR" envDefault:"./workflows"`
	MediaRoot          string        `env:"MEDIA_ROOT" envDefault:"./media"`
	MediaURL           string        `env:"MEDIA_URL" envDefault:"/media/"`
	BackendURL         string        `env:"BACKEND_URL" envDefault:"http://localhost:8080"`
	RenderTimeout      time.Duration `env:"RENDER_TIMEOUT" envDefault:"5m"`
	RenderRateInterval time.Duration `env:"RENDER_RATE_INTERVAL" envDefault:"2s"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)
	cfg.LLMProvider = strings.ToLower(cfg.LLMProvider)
	cfg.StoreBackend = strings.ToLower(cfg.StoreBackend)
	cfg.RenderProvider = strings.ToLower(cfg.RenderProvider)

	if cfg.PlannerModel == "" {
		cfg.PlannerModel = defaultModels[cfg.LLMProvider]
	}
	if cfg.StructurerModel == "" {
		cfg.StructurerModel = cfg.PlannerModel
	}
	if cfg.WriterModel == "" {
		cfg.WriterModel = cfg.PlannerModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks option bounds and enumerations.
func (c *Config) Validate() error {
	if c.MaxAgentSteps < 1 {
		return fmt.Errorf("MAX_AGENT_STEPS must be at least 1, got %d", c.MaxAgentSteps)
	}
	if c.SelectedCharactersCap < 1 || c.SelectedCharactersCap > scene.DefaultCharactersCap {
		return fmt.Errorf("SELECTED_CHARACTERS_CAP must be between 1 and %d, got %d", scene.DefaultCharactersCap, c.SelectedCharactersCap)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive")
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("RENDER_TIMEOUT must be positive")
	}
	if _, ok := defaultModels[c.LLMProvider]; !ok {
		return fmt.Errorf("unsupported LLM_PROVIDER %q", c.LLMProvider)
	}
	switch c.StoreBackend {
	case "redis", "sqlite":
	default:
		return fmt.Errorf("unsupported STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.RenderProvider {
	case "comfyui", "static":
	default:
		return fmt.Errorf("unsupported RENDER_PROVIDER %q", c.RenderProvider)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
