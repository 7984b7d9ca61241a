package service

import (
	"context"

	"stockchat/backend/internal/llm"
)

// ModelService exposes the models offered by the configured provider.
type ModelService struct {
	llm llm.Provider
}

// NewModelService creates a new ModelService.
func NewModelService(llmProvider llm.Provider) *ModelService {
	return &ModelService{llm: llmProvider}
}

// List returns the models the provider can serve.
func (s *ModelService) List(ctx context.Context) (*llm.ListModelsResponse, error) {
	return s.llm.ListModels(ctx)
}
