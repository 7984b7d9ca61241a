// Package llm talks to chat-completion backends that support streaming and
// function calling.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"stockchat/backend/internal/config"
	app_errors "stockchat/backend/internal/errors"
	"stockchat/backend/internal/model"
)

// Provider defines the interface for interacting with a language model.
type Provider interface {
	// ChatStream sends the conversation and streams the reply on ch. It closes
	// ch before returning.
	ChatStream(ctx context.Context, req *ChatRequest, ch chan<- StreamEvent) error
	ListModels(ctx context.Context) (*ListModelsResponse, error)
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role       model.Role
	Content    string
	ToolCalls  []model.ToolCall
	ToolCallID string
	ToolName   string
}

// ToolDefinition describes a function the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type ChatRequest struct {
	Model       string
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float32
}

// StreamEvent carries either a text delta or the tool calls the model
// finished requesting.
type StreamEvent struct {
	Content   string
	ToolCalls []model.ToolCall
}

type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
	Size       int64     `json:"size,omitempty"`
}

type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// NewProvider builds the provider selected by cfg.LLMProvider.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(cfg.LLMBaseURL, cfg.LLMAPIKey), nil
	case config.ProviderOllama:
		return NewOllamaProvider(cfg.OllamaURL), nil
	default:
		return nil, fmt.Errorf("%w: unknown LLM provider %q", app_errors.ErrValidation, cfg.LLMProvider)
	}
}

// classifyStatus wraps err with the sentinel matching an upstream HTTP status.
func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests || strings.Contains(strings.ToLower(err.Error()), "quota"):
		return fmt.Errorf("%w: %v", app_errors.ErrQuotaExhausted, err)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: %v", app_errors.ErrUpstream, err)
	default:
		return err
	}
}
