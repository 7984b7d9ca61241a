package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	app_errors "stockchat/backend/internal/errors"
	"stockchat/backend/internal/llm"
	"stockchat/backend/internal/model"
	"stockchat/backend/internal/repository"
	"stockchat/backend/internal/tools"
)

// Inline warnings written into the reply stream when a turn fails.
const (
	QuotaWarning         = "⚠️ Model quota exhausted. Please retry shortly or upgrade your plan."
	upstreamWarningFmt   = "⚠️ Upstream client error: %v"
	unexpectedWarningFmt = "⚠️ Unexpected server error: %v"
	toolLimitWarning     = "⚠️ Stopped after too many tool calls. Please narrow the question."
)

// cancelledToolResult answers tool calls that never ran because the client
// went away, so a checkpointed round always pairs every call with a result.
const cancelledToolResult = "Error: cancelled"

// ToolExecutor runs the functions offered to the model.
type ToolExecutor interface {
	Definitions() []tools.Definition
	Execute(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Options tune the agent loop.
type Options struct {
	Model         string
	SystemPrompt  string
	Temperature   float32
	MaxToolRounds int
}

type ChatService struct {
	repo  repository.ThreadRepository
	llm   llm.Provider
	tools ToolExecutor
	opts  Options
	now   func() time.Time
}

func NewChatService(repo repository.ThreadRepository, provider llm.Provider, toolset ToolExecutor, opts Options) *ChatService {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = 8
	}
	return &ChatService{repo: repo, llm: provider, tools: toolset, opts: opts, now: time.Now}
}

// GetThread returns the checkpointed conversation of a thread.
func (s *ChatService) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	msgs, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("could not get thread: %w", err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: thread %s", app_errors.ErrNotFound, threadID)
	}
	return &model.Thread{ID: threadID, Messages: msgs}, nil
}

// DeleteThread forgets a thread.
func (s *ChatService) DeleteThread(ctx context.Context, threadID string) error {
	slog.Info("Deleting thread", "thread_id", threadID)
	err := s.repo.DeleteThread(ctx, threadID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: thread %s", app_errors.ErrNotFound, threadID)
	}
	return err
}

// HandleNewMessage runs one user turn through the agent loop and streams the
// reply on streamChan, which is closed on return. Failures are reported as an
// inline warning chunk and the stream still ends normally.
func (s *ChatService) HandleNewMessage(ctx context.Context, req *model.ChatRequest, streamChan chan<- model.StreamResponse) {
	defer close(streamChan)
	log := slog.With("thread_id", req.ThreadID, "response_id", req.ResponseID)

	send := func(chunk model.StreamResponse) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case streamChan <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// Step 1: Load the checkpoint and build the conversation.
	history, err := s.repo.GetThread(ctx, req.ThreadID)
	if err != nil {
		log.Error("Could not load thread history", "error", err)
		send(warningChunk(err))
		return
	}

	userID := req.Prompt.ID
	if userID == "" {
		userID = uuid.NewString()
	}
	produced := []model.ThreadMessage{{
		ID:        userID,
		Role:      model.RoleUser,
		Content:   req.Prompt.Content,
		CreatedAt: s.now(),
	}}

	// Step 2: Persist whatever this turn produced, even when the client went
	// away halfway through.
	defer func() {
		if err := s.repo.AppendMessages(context.WithoutCancel(ctx), req.ThreadID, produced...); err != nil {
			log.Error("CRITICAL: Failed to checkpoint thread", "error", err, "messages", len(produced))
		}
	}()

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: model.RoleSystem, Content: s.opts.SystemPrompt})
	for _, m := range history {
		messages = append(messages, toLLMMessage(m))
	}
	messages = append(messages, toLLMMessage(produced[0]))

	var toolDefs []llm.ToolDefinition
	if s.tools != nil {
		for _, d := range s.tools.Definitions() {
			toolDefs = append(toolDefs, llm.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
		}
	}

	// Step 3: Alternate model calls and tool executions.
	var streamed strings.Builder
	emit := func(content string) bool {
		streamed.WriteString(content)
		return send(model.StreamResponse{Content: content})
	}

	for round := 0; ; round++ {
		if round >= s.opts.MaxToolRounds {
			log.Warn("Tool round limit reached", "rounds", round)
			send(model.StreamResponse{Content: separator(streamed.String()) + toolLimitWarning, Error: model.StreamErrToolLoop})
			break
		}

		text, calls, err := s.complete(ctx, &llm.ChatRequest{
			Model:       s.opts.Model,
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: s.opts.Temperature,
		}, emit)

		if err != nil || len(calls) == 0 {
			if text != "" {
				produced = append(produced, model.ThreadMessage{
					ID:        req.ResponseID,
					Role:      model.RoleAssistant,
					Content:   text,
					CreatedAt: s.now(),
				})
			}
			if err != nil {
				if ctx.Err() != nil {
					log.Info("Client cancelled the stream", "error", err)
					return
				}
				log.Error("Model call failed", "error", err, "round", round)
				chunk := warningChunk(err)
				chunk.Content = separator(streamed.String()) + chunk.Content
				send(chunk)
			}
			break
		}

		assistant := model.ThreadMessage{
			ID:        uuid.NewString(),
			Role:      model.RoleAssistant,
			Content:   text,
			ToolCalls: calls,
			CreatedAt: s.now(),
		}
		produced = append(produced, assistant)
		messages = append(messages, toLLMMessage(assistant))

		for i, call := range calls {
			if ctx.Err() != nil {
				produced = append(produced, s.cancelledTurns(calls[i:])...)
				log.Info("Client cancelled the stream before tool execution", "skipped", len(calls)-i)
				return
			}
			turn := s.toolTurn(call, s.runTool(ctx, call))
			produced = append(produced, turn)
			messages = append(messages, toLLMMessage(turn))

			// Tool output is part of the visible reply so charts reach the client.
			if !emit(separator(streamed.String()) + turn.Content + "\n\n") {
				produced = append(produced, s.cancelledTurns(calls[i+1:])...)
				log.Info("Client cancelled the stream during tool execution")
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
	}

	send(model.StreamResponse{Done: true})
}

// complete streams one model call. Text deltas go to emit as they arrive.
func (s *ChatService) complete(ctx context.Context, req *llm.ChatRequest, emit func(string) bool) (string, []model.ToolCall, error) {
	events := make(chan llm.StreamEvent)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.llm.ChatStream(ctx, req, events)
	}()

	var text strings.Builder
	var calls []model.ToolCall
	open := true
	for ev := range events {
		if ev.Content != "" && open {
			text.WriteString(ev.Content)
			open = emit(ev.Content)
		}
		calls = append(calls, ev.ToolCalls...)
	}
	err := <-errCh
	if err == nil && !open {
		err = ctx.Err()
	}
	return text.String(), calls, err
}

func (s *ChatService) runTool(ctx context.Context, call model.ToolCall) string {
	if s.tools == nil {
		return "Error: no tools are available"
	}
	start := time.Now()
	result, err := s.tools.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		slog.Warn("Tool call failed", "tool", call.Name, "error", err, "duration", time.Since(start))
		return "Error: " + err.Error()
	}
	slog.Debug("Tool call finished", "tool", call.Name, "duration", time.Since(start), "bytes", len(result))
	return result
}

func (s *ChatService) toolTurn(call model.ToolCall, result string) model.ThreadMessage {
	return model.ThreadMessage{
		ID:         uuid.NewString(),
		Role:       model.RoleTool,
		Content:    result,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		CreatedAt:  s.now(),
	}
}

func (s *ChatService) cancelledTurns(calls []model.ToolCall) []model.ThreadMessage {
	turns := make([]model.ThreadMessage, 0, len(calls))
	for _, call := range calls {
		turns = append(turns, s.toolTurn(call, cancelledToolResult))
	}
	return turns
}

func toLLMMessage(m model.ThreadMessage) llm.Message {
	return llm.Message{
		Role:       m.Role,
		Content:    m.Content,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		ToolName:   m.ToolName,
	}
}

// separator returns the blank line needed to start a new block after text.
func separator(text string) string {
	if text == "" || strings.HasSuffix(text, "\n\n") {
		return ""
	}
	if strings.HasSuffix(text, "\n") {
		return "\n"
	}
	return "\n\n"
}

// warningChunk maps an error to the inline warning shown to the user.
func warningChunk(err error) model.StreamResponse {
	switch {
	case errors.Is(err, app_errors.ErrQuotaExhausted):
		return model.StreamResponse{Content: QuotaWarning, Error: model.StreamErrQuota}
	case errors.Is(err, app_errors.ErrUpstream):
		return model.StreamResponse{Content: fmt.Sprintf(upstreamWarningFmt, err), Error: model.StreamErrUpstream}
	default:
		return model.StreamResponse{Content: fmt.Sprintf(unexpectedWarningFmt, err), Error: model.StreamErrInternal}
	}
}
