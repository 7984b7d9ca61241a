package interfaces

import (
	"context"

	"stockchat/backend/internal/llm"
	"stockchat/backend/internal/model"
)

// The API layer depends on these contracts instead of the concrete services
// so handlers can be tested against mocks.

// ChatService defines the contract for the chat agent and its checkpoints.
type ChatService interface {
	HandleNewMessage(ctx context.Context, req *model.ChatRequest, streamChan chan<- model.StreamResponse)
	GetThread(ctx context.Context, threadID string) (*model.Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
}

// ModelService defines the contract for listing the provider's models.
type ModelService interface {
	List(ctx context.Context) (*llm.ListModelsResponse, error)
}
