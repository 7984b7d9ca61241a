package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockchat/backend/internal/model"
)

// MockThreadRepository is a mock type for the repository.ThreadRepository type.
type MockThreadRepository struct {
	mock.Mock
}

// GetThread provides a mock function with given fields: ctx, threadID.
func (_m *MockThreadRepository) GetThread(ctx context.Context, threadID string) ([]model.ThreadMessage, error) {
	ret := _m.Called(ctx, threadID)

	var r0 []model.ThreadMessage
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.ThreadMessage)
	}
	return r0, ret.Error(1)
}

// AppendMessages provides a mock function with given fields: ctx, threadID, msgs.
// The variadic messages are passed to Called as a single slice argument.
func (_m *MockThreadRepository) AppendMessages(ctx context.Context, threadID string, msgs ...model.ThreadMessage) error {
	ret := _m.Called(ctx, threadID, msgs)
	return ret.Error(0)
}

// DeleteThread provides a mock function with given fields: ctx, threadID.
func (_m *MockThreadRepository) DeleteThread(ctx context.Context, threadID string) error {
	ret := _m.Called(ctx, threadID)
	return ret.Error(0)
}

// NewMockThreadRepository creates a new instance of MockThreadRepository. It
// also registers a testing interface on the mock and a cleanup function to
// assert the mocks expectations.
func NewMockThreadRepository(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockThreadRepository {
	m := &MockThreadRepository{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
