package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"stockchat/backend/internal/model"
)

type ollamaProvider struct {
	client *http.Client
	url    string
}

// NewOllamaProvider creates a provider for a local Ollama server.
func NewOllamaProvider(url string) Provider {
	return &ollamaProvider{
		client: &http.Client{},
		url:    strings.TrimRight(url, "/"),
	}
}

type ollamaFunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaStreamChunk struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error"`
}

func toOllamaRequest(req *ChatRequest) *ollamaChatRequest {
	out := &ollamaChatRequest{
		Model:   req.Model,
		Stream:  true,
		Options: map[string]any{"temperature": req.Temperature},
	}
	for _, msg := range req.Messages {
		om := ollamaMessage{Role: string(msg.Role), Content: msg.Content, ToolName: msg.ToolName}
		for _, tc := range msg.ToolCalls {
			args := tc.Arguments
			if len(args) == 0 {
				args = json.RawMessage(`{}`)
			}
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{Function: ollamaFunctionCall{Name: tc.Name, Arguments: args}})
		}
		out.Messages = append(out.Messages, om)
	}
	for _, d := range req.Tools {
		var t ollamaTool
		t.Type = "function"
		t.Function.Name = d.Name
		t.Function.Description = d.Description
		t.Function.Parameters = d.Parameters
		out.Tools = append(out.Tools, t)
	}
	return out
}

func (p *ollamaProvider) ChatStream(ctx context.Context, req *ChatRequest, ch chan<- StreamEvent) error {
	defer close(ch)

	body, err := json.Marshal(toOllamaRequest(req))
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return classifyStatus(resp.StatusCode, fmt.Errorf("api returned non-200 status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	var toolCalls []model.ToolCall
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk ollamaStreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			slog.Warn("Failed to decode ollama stream chunk", "error", err)
			continue
		}
		if chunk.Error != "" {
			return classifyStatus(0, errors.New(chunk.Error))
		}
		for _, tc := range chunk.Message.ToolCalls {
			toolCalls = append(toolCalls, model.ToolCall{
				ID:        uuid.NewString(),
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			})
		}
		if chunk.Message.Content != "" {
			select {
			case ch <- StreamEvent{Content: chunk.Message.Content}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("could not read stream: %w", err)
	}

	if len(toolCalls) > 0 {
		select {
		case ch <- StreamEvent{ToolCalls: toolCalls}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *ollamaProvider) ListModels(ctx context.Context) (*ListModelsResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, classifyStatus(resp.StatusCode, fmt.Errorf("api returned non-200 status %d: %s", resp.StatusCode, string(bodyBytes)))
	}

	var list ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("could not decode model list: %w", err)
	}
	return &list, nil
}
