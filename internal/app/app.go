package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"stockchat/backend/internal/api"
	"stockchat/backend/internal/chart"
	"stockchat/backend/internal/config"
	"stockchat/backend/internal/interfaces"
	"stockchat/backend/internal/llm"
	"stockchat/backend/internal/market"
	"stockchat/backend/internal/repository"
	"stockchat/backend/internal/service"
	"stockchat/backend/internal/tools"
)

var (
	_ interfaces.ChatService  = (*service.ChatService)(nil)
	_ interfaces.ModelService = (*service.ModelService)(nil)
	_ service.ToolExecutor    = (*tools.Registry)(nil)
	_ tools.MarketData        = (*market.Client)(nil)
	_ tools.ChartRenderer     = (*chart.Renderer)(nil)
)

// App is the assembled server.
type App struct {
	Server *http.Server
	store  io.Closer
}

// NewApp wires every dependency described by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	repo, store, err := repository.NewThreadRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	registry := tools.NewRegistry(cfg.ToolTimeout)
	if err := tools.RegisterStockTools(registry, market.NewClient(cfg.MarketDataURL, nil), chart.NewRenderer()); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	chatService := service.NewChatService(repo, provider, registry, service.Options{
		Model:         cfg.LLMModel,
		SystemPrompt:  cfg.SystemPrompt,
		Temperature:   cfg.LLMTemperature,
		MaxToolRounds: cfg.MaxToolRounds,
	})
	modelService := service.NewModelService(provider)

	chatHandler := api.NewChatHandler(chatService)
	modelHandler := api.NewModelHandler(modelService)
	router := api.NewRouter(chatHandler, modelHandler, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}

	return &App{Server: server, store: store}, nil
}

// Close releases the checkpoint store.
func (a *App) Close() error {
	return a.store.Close()
}

// Run starts the server and blocks until SIGINT or SIGTERM.
func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	setupLogger(cfg.LogLevel)

	logConfigSource()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LLMProvider == config.ProviderOllama {
		if err := waitForOllama(ctx, cfg.OllamaURL); err != nil {
			slog.Error("Ollama never became ready", "error", err)
			return 1
		}
	}
	if cfg.LLMProvider == config.ProviderOpenAI && cfg.LLMAPIKey == "" {
		slog.Warn("LLM_API_KEY is empty, model calls will likely be rejected.")
	}

	app, err := NewApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("Failed to close checkpoint store", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", cfg.AppPort, "provider", cfg.LLMProvider, "model", cfg.LLMModel, "backend", cfg.CheckpointBackend)
		serverErr <- app.Server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}

func logConfigSource() {
	configFileUsed := viper.ConfigFileUsed()
	if configFileUsed != "" {
		slog.Info("Successfully loaded configuration from file.", "file", configFileUsed)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

func setupLogger(logLevel string) {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(logLevel),
	})))
}

func parseLevel(logLevel string) slog.Level {
	switch strings.ToUpper(logLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// waitForOllama polls the Ollama root endpoint until it answers 200 or ctx ends.
func waitForOllama(ctx context.Context, ollamaURL string) error {
	slog.Info("Waiting for Ollama to be ready...")
	client := &http.Client{Timeout: 2 * time.Second}
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ollamaURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if resp != nil {
			if bErr := resp.Body.Close(); bErr != nil {
				slog.Warn("Failed to close response body in ollama health check", "error", bErr)
			}
			if resp.StatusCode == http.StatusOK {
				slog.Info("Ollama is ready.")
				return nil
			}
		}
		slog.Debug("Ollama not ready yet, retrying in 3 seconds...", "url", ollamaURL, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
}
