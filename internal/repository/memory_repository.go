package repository

import (
	"context"
	"slices"
	"sync"

	"stockchat/backend/internal/model"
)

type memoryRepository struct {
	mu      sync.RWMutex
	threads map[string][]model.ThreadMessage
}

// NewMemoryRepository keeps threads in process memory. They are lost on
// restart.
func NewMemoryRepository() ThreadRepository {
	return &memoryRepository{threads: make(map[string][]model.ThreadMessage)}
}

func (r *memoryRepository) GetThread(_ context.Context, threadID string) ([]model.ThreadMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.threads[threadID]), nil
}

func (r *memoryRepository) AppendMessages(_ context.Context, threadID string, msgs ...model.ThreadMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[threadID] = append(r.threads[threadID], msgs...)
	return nil
}

func (r *memoryRepository) DeleteThread(_ context.Context, threadID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.threads[threadID]; !ok {
		return ErrNotFound
	}
	delete(r.threads, threadID)
	return nil
}
