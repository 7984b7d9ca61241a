package model

import (
	"encoding/json"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Prompt is the user's message as sent by the client.
type Prompt struct {
	Content string `json:"content" validate:"required" example:"What is AAPL trading at?"`
	ID      string `json:"id" example:"b7d4c2a0-6f8e-4a53-9d7e-0c1b2a3d4e5f"`
	Role    Role   `json:"role" validate:"omitempty,eq=user" example:"user"`
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Prompt     Prompt `json:"prompt"`
	ThreadID   string `json:"threadId" validate:"required,max=128" example:"thread-1"`
	ResponseID string `json:"responseId" validate:"required,max=128" example:"c1f0e9d8-7a6b-4c5d-8e9f-0a1b2c3d4e5f"`
}

// Message is one entry of a client-side transcript. Content only grows while
// the reply it belongs to is streaming.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Error     bool      `json:"error,omitempty" yaml:"error,omitempty"`
}

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ThreadMessage is one checkpointed turn of an agent conversation.
type ThreadMessage struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Thread is a conversation checkpoint as returned by the API.
type Thread struct {
	ID       string          `json:"id"`
	Messages []ThreadMessage `json:"messages"`
}

// StreamResponse is the structure for a single chunk in a streaming response.
type StreamResponse struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Error   string `json:"error,omitempty"`
}

// Stream error codes carried in StreamResponse.Error.
const (
	StreamErrQuota    = "quota_exhausted"
	StreamErrUpstream = "upstream_error"
	StreamErrInternal = "internal_error"
	StreamErrToolLoop = "tool_round_limit"
)
