package repository

import (
	"context"

	"stockchat/backend/internal/model"
)

// ThreadRepository checkpoints agent conversations keyed by thread ID.
// Implementations keep messages in the order they were appended.
type ThreadRepository interface {
	// GetThread returns every message of a thread. A thread that was never
	// written is empty, not an error.
	GetThread(ctx context.Context, threadID string) ([]model.ThreadMessage, error)
	AppendMessages(ctx context.Context, threadID string, msgs ...model.ThreadMessage) error
	// DeleteThread returns ErrNotFound when the thread does not exist.
	DeleteThread(ctx context.Context, threadID string) error
}
