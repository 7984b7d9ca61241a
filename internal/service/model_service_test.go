package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"stockchat/backend/internal/llm"
	"stockchat/backend/internal/llm/mocks"
	"stockchat/backend/internal/service"
)

func setupModelService(t *testing.T) (*service.ModelService, *mocks.MockProvider) {
	mockProvider := mocks.NewMockProvider(t)
	modelService := service.NewModelService(mockProvider)
	return modelService, mockProvider
}

func TestModelService_List(t *testing.T) {
	ctx := context.Background()
	modelService, mockProvider := setupModelService(t)

	expectedResponse := &llm.ListModelsResponse{
		Models: []llm.ModelInfo{{Name: "gemini-2.5-flash-lite"}},
	}
	expectedError := errors.New("provider error")

	testCases := []struct {
		name         string
		setupMock    func()
		expectError  bool
		expectedResp *llm.ListModelsResponse
		expectedErr  error
	}{
		{
			name: "Success",
			setupMock: func() {
				mockProvider.On("ListModels", ctx).Return(expectedResponse, nil).Once()
			},
			expectedResp: expectedResponse,
		},
		{
			name: "Failure - Provider Error",
			setupMock: func() {
				mockProvider.On("ListModels", ctx).Return(nil, expectedError).Once()
			},
			expectError: true,
			expectedErr: expectedError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.setupMock()

			resp, err := modelService.List(ctx)

			if tc.expectError {
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.Nil(t, resp)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedResp, resp)
			}
		})
	}
}
