package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"stockchat/backend/internal/api"
	"stockchat/backend/internal/interfaces/mocks"
	"stockchat/backend/internal/llm"
)

func TestNewRouter(t *testing.T) {
	mockChatSvc := mocks.NewMockChatService(t)
	mockModelSvc := mocks.NewMockModelService(t)
	router := api.NewRouter(api.NewChatHandler(mockChatSvc), api.NewModelHandler(mockModelSvc), []string{"http://localhost:3000"})

	t.Run("Healthz", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	})

	t.Run("Models route", func(t *testing.T) {
		mockModelSvc.On("List", mock.Anything).Return(&llm.ListModelsResponse{}, nil).Once()
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/models", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("CORS preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Chat requires POST", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/chat", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}
