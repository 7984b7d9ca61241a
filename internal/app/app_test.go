package app

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockchat/backend/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		AppPort:            0,
		LogLevel:           "DEBUG",
		LLMProvider:        config.ProviderOpenAI,
		LLMBaseURL:         "http://127.0.0.1:1/v1",
		LLMModel:           "test-model",
		MarketDataURL:      "http://127.0.0.1:1",
		CheckpointBackend:  config.BackendSQLite,
		DatabasePath:       filepath.Join(t.TempDir(), "threads.db"),
		CORSAllowedOrigins: []string{"*"},
		MaxToolRounds:      4,
		ToolTimeout:        time.Second,
	}
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NotNil(t, app)
	defer func() { require.NoError(t, app.Close()) }()

	assert.NotNil(t, app.Server)
	assert.Equal(t, time.Duration(0), app.Server.WriteTimeout)

	rr := httptest.NewRecorder()
	app.Server.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestNewApp_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.CheckpointBackend = "cassandra"

	_, err := NewApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestWaitForOllama(t *testing.T) {
	t.Run("Ready", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		assert.NoError(t, waitForOllama(context.Background(), srv.URL))
	})

	t.Run("Cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, waitForOllama(ctx, srv.URL), context.DeadlineExceeded)
	})
}
