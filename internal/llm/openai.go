package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"stockchat/backend/internal/model"
)

type openAIProvider struct {
	client *goopenai.Client
}

// NewOpenAIProvider creates a provider for any OpenAI-compatible endpoint.
// An empty baseURL targets api.openai.com.
func NewOpenAIProvider(baseURL, apiKey string) Provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &openAIProvider{client: goopenai.NewClientWithConfig(cfg)}
}

func openAIMessages(messages []Message) []goopenai.ChatCompletionMessage {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := goopenai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		if msg.Role == model.RoleTool {
			m.Name = msg.ToolName
		}
		for _, tc := range msg.ToolCalls {
			args := string(tc.Arguments)
			if args == "" {
				args = "{}"
			}
			m.ToolCalls = append(m.ToolCalls, goopenai.ToolCall{
				ID:   tc.ID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func openAITools(defs []ToolDefinition) []goopenai.Tool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]goopenai.Tool, len(defs))
	for i, d := range defs {
		out[i] = goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			},
		}
	}
	return out
}

// toolCallBuilder collects streamed tool-call fragments keyed by index.
type toolCallBuilder struct {
	calls map[int]*model.ToolCall
	args  map[int]*strings.Builder
	last  int
}

func newToolCallBuilder() *toolCallBuilder {
	return &toolCallBuilder{
		calls: make(map[int]*model.ToolCall),
		args:  make(map[int]*strings.Builder),
		last:  -1,
	}
}

func (b *toolCallBuilder) add(tc goopenai.ToolCall) {
	idx := b.last
	switch {
	case tc.Index != nil:
		idx = *tc.Index
	case tc.ID != "" || idx < 0:
		idx = len(b.calls)
	}
	b.last = idx

	call, ok := b.calls[idx]
	if !ok {
		call = &model.ToolCall{}
		b.calls[idx] = call
		b.args[idx] = &strings.Builder{}
	}
	if tc.ID != "" {
		call.ID = tc.ID
	}
	if tc.Function.Name != "" {
		call.Name = tc.Function.Name
	}
	b.args[idx].WriteString(tc.Function.Arguments)
}

func (b *toolCallBuilder) build() []model.ToolCall {
	if len(b.calls) == 0 {
		return nil
	}
	keys := make([]int, 0, len(b.calls))
	for k := range b.calls {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	out := make([]model.ToolCall, 0, len(keys))
	for _, k := range keys {
		call := *b.calls[k]
		args := strings.TrimSpace(b.args[k].String())
		if args == "" {
			args = "{}"
		}
		call.Arguments = json.RawMessage(args)
		out = append(out, call)
	}
	return out
}

func (p *openAIProvider) ChatStream(ctx context.Context, req *ChatRequest, ch chan<- StreamEvent) error {
	defer close(ch)

	oreq := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    openAIMessages(req.Messages),
		Tools:       openAITools(req.Tools),
		Temperature: req.Temperature,
		Stream:      true,
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return p.wrapError(ctx, err)
	}
	defer stream.Close()

	calls := newToolCallBuilder()
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return p.wrapError(ctx, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		for _, tc := range delta.ToolCalls {
			calls.add(tc)
		}
		if delta.Content == "" {
			continue
		}
		select {
		case ch <- StreamEvent{Content: delta.Content}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if toolCalls := calls.build(); len(toolCalls) > 0 {
		for i := range toolCalls {
			slog.Debug("Model requested tool", "name", toolCalls[i].Name, "args", string(toolCalls[i].Arguments))
		}
		select {
		case ch <- StreamEvent{ToolCalls: toolCalls}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *openAIProvider) wrapError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	status := 0
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	return classifyStatus(status, fmt.Errorf("chat completion failed: %w", err))
}

func (p *openAIProvider) ListModels(ctx context.Context) (*ListModelsResponse, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, p.wrapError(ctx, err)
	}
	resp := &ListModelsResponse{Models: make([]ModelInfo, 0, len(list.Models))}
	for _, m := range list.Models {
		resp.Models = append(resp.Models, ModelInfo{Name: strings.TrimPrefix(m.ID, "models/")})
	}
	return resp, nil
}
