package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	app_errors "stockchat/backend/internal/errors"
)

const defaultSystemPrompt = "You are a stock analysis assistant. You can stream answers, fetch real-time stock " +
	"prices, historical prices (with date range), news, balance sheet data, and also " +
	"render quick PNG price charts via the render_stock_chart tool. If you return a " +
	"data URI image, present it as markdown so the client can display the chart."

// Supported values for LLM_PROVIDER and CHECKPOINT_BACKEND.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendBolt   = "bolt"
)

var (
	Providers = []string{ProviderOpenAI, ProviderOllama}
	Backends  = []string{BackendMemory, BackendSQLite, BackendRedis, BackendBolt}
)

// Config holds the server configuration.
type Config struct {
	AppPort            int           `mapstructure:"APP_PORT"`
	LogLevel           string        `mapstructure:"LOG_LEVEL"`
	LLMProvider        string        `mapstructure:"LLM_PROVIDER"`
	LLMBaseURL         string        `mapstructure:"LLM_BASE_URL"`
	LLMAPIKey          string        `mapstructure:"LLM_API_KEY"`
	LLMModel           string        `mapstructure:"LLM_MODEL"`
	LLMTemperature     float32       `mapstructure:"LLM_TEMPERATURE"`
	OllamaURL          string        `mapstructure:"OLLAMA_URL"`
	SystemPrompt       string        `mapstructure:"SYSTEM_PROMPT"`
	MarketDataURL      string        `mapstructure:"MARKET_DATA_URL"`
	CheckpointBackend  string        `mapstructure:"CHECKPOINT_BACKEND"`
	DatabasePath       string        `mapstructure:"DATABASE_PATH"`
	BoltPath           string        `mapstructure:"BOLT_PATH"`
	RedisAddr          string        `mapstructure:"REDIS_ADDR"`
	RedisThreadTTL     time.Duration `mapstructure:"REDIS_THREAD_TTL"`
	CORSAllowedOrigins []string      `mapstructure:"CORS_ALLOWED_ORIGINS"`
	MaxToolRounds      int           `mapstructure:"MAX_TOOL_ROUNDS"`
	ToolTimeout        time.Duration `mapstructure:"TOOL_TIMEOUT"`
}

// ClientConfig holds the settings of the terminal client.
type ClientConfig struct {
	APIURL  string        `mapstructure:"STOCKCHAT_API_URL"`
	Timeout time.Duration `mapstructure:"STOCKCHAT_TIMEOUT"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("APP_PORT", 8888)
	viper.SetDefault("LOG_LEVEL", "INFO")
	viper.SetDefault("LLM_PROVIDER", ProviderOpenAI)
	viper.SetDefault("LLM_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/")
	viper.SetDefault("LLM_API_KEY", "")
	viper.SetDefault("LLM_MODEL", "gemini-2.5-flash-lite")
	viper.SetDefault("LLM_TEMPERATURE", 0)
	viper.SetDefault("OLLAMA_URL", "http://localhost:11434")
	viper.SetDefault("SYSTEM_PROMPT", defaultSystemPrompt)
	viper.SetDefault("MARKET_DATA_URL", "https://query1.finance.yahoo.com")
	viper.SetDefault("CHECKPOINT_BACKEND", BackendMemory)
	viper.SetDefault("DATABASE_PATH", "./data/stockchat.db")
	viper.SetDefault("BOLT_PATH", "./data/threads.bolt")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_THREAD_TTL", "0s")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("MAX_TOOL_ROUNDS", 8)
	viper.SetDefault("TOOL_TIMEOUT", "30s")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// The Python SDKs read GOOGLE_API_KEY, keep accepting it.
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = os.Getenv("GOOGLE_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that would make the server unusable.
func (c *Config) Validate() error {
	if !slices.Contains(Providers, c.LLMProvider) {
		return fmt.Errorf("%w: unknown LLM_PROVIDER %q", app_errors.ErrValidation, c.LLMProvider)
	}
	if !slices.Contains(Backends, c.CheckpointBackend) {
		return fmt.Errorf("%w: unknown CHECKPOINT_BACKEND %q", app_errors.ErrValidation, c.CheckpointBackend)
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("%w: MAX_TOOL_ROUNDS must be positive", app_errors.ErrValidation)
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("%w: TOOL_TIMEOUT must be positive", app_errors.ErrValidation)
	}
	return nil
}

// LoadClientConfig reads the terminal client settings from the environment.
// It uses its own viper instance so it never sees server keys.
func LoadClientConfig() (*ClientConfig, error) {
	v := viper.New()
	v.SetDefault("STOCKCHAT_API_URL", "http://localhost:8888")
	v.SetDefault("STOCKCHAT_TIMEOUT", "0s")
	v.AutomaticEnv()

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &cfg, nil
}
