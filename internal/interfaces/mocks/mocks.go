package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockchat/backend/internal/llm"
	"stockchat/backend/internal/model"
)

// MockChatService is a mock type for the interfaces.ChatService type.
type MockChatService struct {
	mock.Mock
}

// HandleNewMessage provides a mock function with given fields: ctx, req, streamChan.
// Use Run to push chunks; the mock closes streamChan afterwards like the real
// service does.
func (_m *MockChatService) HandleNewMessage(ctx context.Context, req *model.ChatRequest, streamChan chan<- model.StreamResponse) {
	defer close(streamChan)
	_m.Called(ctx, req, streamChan)
}

// GetThread provides a mock function with given fields: ctx, threadID.
func (_m *MockChatService) GetThread(ctx context.Context, threadID string) (*model.Thread, error) {
	ret := _m.Called(ctx, threadID)

	var r0 *model.Thread
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Thread)
	}
	return r0, ret.Error(1)
}

// DeleteThread provides a mock function with given fields: ctx, threadID.
func (_m *MockChatService) DeleteThread(ctx context.Context, threadID string) error {
	ret := _m.Called(ctx, threadID)
	return ret.Error(0)
}

// NewMockChatService creates a new instance of MockChatService. It also
// registers a testing interface on the mock and a cleanup function to assert
// the mocks expectations.
func NewMockChatService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockChatService {
	m := &MockChatService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

// MockModelService is a mock type for the interfaces.ModelService type.
type MockModelService struct {
	mock.Mock
}

// List provides a mock function with given fields: ctx.
func (_m *MockModelService) List(ctx context.Context) (*llm.ListModelsResponse, error) {
	ret := _m.Called(ctx)

	var r0 *llm.ListModelsResponse
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*llm.ListModelsResponse)
	}
	return r0, ret.Error(1)
}

// NewMockModelService creates a new instance of MockModelService. It also
// registers a testing interface on the mock and a cleanup function to assert
// the mocks expectations.
func NewMockModelService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockModelService {
	m := &MockModelService{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
