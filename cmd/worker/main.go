package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/scene-engine/internal/agent"
	"github.com/jwebster45206/scene-engine/internal/config"
	"github.com/jwebster45206/scene-engine/internal/generator"
	"github.com/jwebster45206/scene-engine/internal/logger"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/services/events"
	"github.com/jwebster45206/scene-engine/internal/services/queue"
	"github.com/jwebster45206/scene-engine/internal/services/render"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/internal/worker"
)

func newLLMService(cfg *config.Config, log *slog.Logger) services.LLMService {
	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			log.Error("Anthropic API key is required when using anthropic provider")
			os.Exit(1)
		}
		log.Info("Using Anthropic LLM provider")
		return services.NewAnthropicService(cfg.AnthropicAPIKey, cfg.PlannerModel, log)
	case "venice":
		if cfg.VeniceAPIKey == "" {
			log.Error("Venice API key is required when using venice provider")
			os.Exit(1)
		}
		log.Info("Using Venice LLM provider")
		return services.NewVeniceService(cfg.VeniceAPIKey, cfg.PlannerModel)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			log.Error("OpenAI API key is required when using openai provider")
			os.Exit(1)
		}
		log.Info("Using OpenAI-compatible LLM provider", "base_url", cfg.OpenAIBaseURL)
		return services.NewOpenAIService(cfg.OpenAIAPIKey, cfg.PlannerModel, cfg.OpenAIBaseURL)
	case "ollama":
		log.Info("Using Ollama LLM provider", "url", cfg.OllamaURL)
		return services.NewOllamaService(cfg.OllamaURL, cfg.PlannerModel, log)
	}
	log.Error("Invalid LLM provider specified", "provider", cfg.LLMProvider, "supported", []string{"anthropic", "venice", "openai", "ollama"})
	os.Exit(1)
	return nil
}

func newRenderer(cfg *config.Config, log *slog.Logger) render.Renderer {
	switch cfg.RenderProvider {
	case "static":
		log.Info("Using static image renderer")
		return render.NewStaticRenderer(cfg.BackendURL, cfg.MediaURL)
	default:
		r, err := render.NewComfyUIRenderer(render.ComfyUIConfig{
			APIURL:       cfg.ComfyUIURL,
			WorkflowsDir: cfg.WorkflowsDir,
			MediaRoot:    cfg.MediaRoot,
			MediaURL:     cfg.MediaURL,
			BackendURL:   cfg.BackendURL,
			RateInterval: cfg.RenderRateInterval,
		}, log)
		if err != nil {
			log.Error("Failed to create ComfyUI renderer", "error", err)
			os.Exit(1)
		}
		log.Info("Using ComfyUI image renderer", "url", cfg.ComfyUIURL)
		return r
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Scene Engine Worker",
		"environment", cfg.Environment,
		"llm_provider", cfg.LLMProvider,
		"planner_model", cfg.PlannerModel,
		"store_backend", cfg.StoreBackend,
		"render_provider", cfg.RenderProvider)

	// Initialize queue service
	queueClient, err := queue.NewClient(cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	sceneQueue := queue.NewSceneQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.GetRedisClient(), log)
	log.Info("Queue service initialized successfully")

	store, err := storage.Open(cfg.StoreBackend, cfg.RedisURL, cfg.SQLitePath, log)
	if err != nil {
		log.Error("Failed to open entity store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing entity store", "error", err)
		}
	}()
	log.Info("Entity store initialized successfully")

	provider := newLLMService(cfg, log)
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer initCancel()
	if err := provider.InitModel(initCtx, cfg.PlannerModel); err != nil {
		log.Error("Failed to initialize LLM model", "error", err, "model", cfg.PlannerModel)
		os.Exit(1)
	}
	llm := services.WithTimeout(provider, cfg.LLMTimeout)
	renderer := render.WithTimeout(newRenderer(cfg, log), cfg.RenderTimeout)

	models := generator.Models{Writer: cfg.WriterModel, Structurer: cfg.StructurerModel}
	sceneAgent, err := agent.New(
		llm,
		generator.NewLocationGenerator(llm, renderer, store, models, log),
		generator.NewCharacterGenerator(llm, renderer, store, models, log),
		store,
		agent.Config{
			MaxSteps:      cfg.MaxAgentSteps,
			CharactersCap: cfg.SelectedCharactersCap,
			PlannerModel:  cfg.PlannerModel,
		},
		log,
	)
	if err != nil {
		log.Error("Failed to create scene agent", "error", err)
		os.Exit(1)
	}

	// The lock client shares the queue connection pool
	w := worker.New(sceneQueue, sceneAgent, store, broadcaster, queueClient.GetRedisClient(), log, cfg.WorkerID)

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for scene requests...")

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// Give worker time to finish current request
	time.Sleep(2 * time.Second)

	log.Info("Worker exited")
}
