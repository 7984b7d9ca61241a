package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockchat/backend/internal/llm"
)

// MockProvider is a mock type for the llm.Provider type.
type MockProvider struct {
	mock.Mock
}

// ChatStream provides a mock function with given fields: ctx, req, ch.
// Use Run to push events on ch; the mock closes ch when the Run function
// returns so callers ranging over it terminate.
func (_m *MockProvider) ChatStream(ctx context.Context, req *llm.ChatRequest, ch chan<- llm.StreamEvent) error {
	defer close(ch)
	ret := _m.Called(ctx, req, ch)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *llm.ChatRequest, chan<- llm.StreamEvent) error); ok {
		r0 = rf(ctx, req, ch)
	} else {
		r0 = ret.Error(0)
	}
	return r0
}

// ListModels provides a mock function with given fields: ctx.
func (_m *MockProvider) ListModels(ctx context.Context) (*llm.ListModelsResponse, error) {
	ret := _m.Called(ctx)

	var r0 *llm.ListModelsResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*llm.ListModelsResponse)
	}
	return r0, ret.Error(1)
}

// NewMockProvider creates a new instance of MockProvider. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockProvider(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProvider {
	m := &MockProvider{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
