package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tmaxmax/go-sse"

	app_errors "stockchat/backend/internal/errors"
	"stockchat/backend/internal/interfaces"
	"stockchat/backend/internal/model"
)

const (
	chunkEventType = "message"
	doneEventType  = "done"
	errorEventType = "error"
)

// ChatHandler serves the chat stream and thread checkpoints.
type ChatHandler struct {
	service interfaces.ChatService
}

func NewChatHandler(svc interfaces.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// readChatRequest decodes and validates the body shared by both chat endpoints.
func readChatRequest(r *http.Request) (*model.ChatRequest, error) {
	var req model.ChatRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		return nil, err
	}
	if req.Prompt.Role == "" {
		req.Prompt.Role = model.RoleUser
	}
	return &req, nil
}

// startStream runs the chat service for req and returns its chunk channel.
// stop must be called once the caller quits reading early so the service
// goroutine is never left blocked on a send.
func (h *ChatHandler) startStream(r *http.Request, req *model.ChatRequest) (<-chan model.StreamResponse, func()) {
	streamChan := make(chan model.StreamResponse)
	go h.service.HandleNewMessage(r.Context(), req, streamChan)
	stop := func() {
		go func() {
			for range streamChan {
			}
		}()
	}
	return streamChan, stop
}

// HandleChat godoc
// @Summary      Ask a question
// @Description  Streams the assistant reply as plain text chunks. Charts arrive inline as PNG data URIs. Failures are written into the stream as a warning line.
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      model.ChatRequest  true  "Prompt and thread"
// @Success      200      {string}  string             "Concatenated reply text"
// @Failure      400      {object}  ErrorResponse
// @Router       /chat [post]
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	req, err := readChatRequest(r)
	if err != nil {
		respondWithError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, fmt.Errorf("%w: streaming unsupported", app_errors.ErrInternal))
		return
	}

	setStreamHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	log := slog.With("thread_id", req.ThreadID, "response_id", req.ResponseID)
	streamChan, stop := h.startStream(r, req)
	for chunk := range streamChan {
		if chunk.Content == "" {
			continue
		}
		if _, err := io.WriteString(w, chunk.Content); err != nil {
			log.Warn("Could not write to chat stream, client likely disconnected.", "error", err)
			stop()
			return
		}
		flusher.Flush()
	}
	log.Info("Finished streaming response.")
}

// HandleChatEvents godoc
// @Summary      Ask a question (framed events)
// @Description  Same as /chat but every chunk is a JSON `message` event and the reply ends with a `done` event. A chunk that cannot be encoded arrives as an `error` event.
// @Tags         Chat
// @Accept       json
// @Produce      text/event-stream
// @Param        request  body      model.ChatRequest  true  "Prompt and thread"
// @Success      200      {object}  model.StreamResponse "Stream of chunks"
// @Failure      400      {object}  ErrorResponse
// @Router       /chat/events [post]
func (h *ChatHandler) HandleChatEvents(w http.ResponseWriter, r *http.Request) {
	req, err := readChatRequest(r)
	if err != nil {
		respondWithError(w, err)
		return
	}

	setStreamHeaders(w)
	session, err := sse.Upgrade(w, r)
	if err != nil {
		respondWithError(w, fmt.Errorf("%w: %v", app_errors.ErrInternal, err))
		return
	}

	log := slog.With("thread_id", req.ThreadID, "response_id", req.ResponseID)
	streamChan, stop := h.startStream(r, req)
	for chunk := range streamChan {
		eventType := chunkEventType
		if chunk.Done {
			eventType = doneEventType
		}
		if err := sendEvent(session, eventType, chunk); err != nil {
			log.Warn("Could not write to event stream, client likely disconnected.", "error", err)
			stop()
			return
		}
	}
	log.Info("Finished streaming events.")
}

// sendEvent writes payload as a JSON event. A payload that cannot be encoded
// is reported to the client as an error event instead.
func sendEvent(session *sse.Session, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal stream data to JSON", "error", err)
		eventType = errorEventType
		data, _ = json.Marshal(ErrorResponse{Error: "could not encode stream chunk"})
	}
	msg := &sse.Message{Type: sse.Type(eventType)}
	msg.AppendData(string(data))
	if err := session.Send(msg); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return session.Flush()
}

// GetThread godoc
// @Summary      Get a thread
// @Description  Returns every checkpointed turn of a conversation, tool calls included.
// @Tags         Threads
// @Produce      json
// @Param        threadID  path      string  true  "Thread ID"
// @Success      200       {object}  model.Thread
// @Failure      404       {object}  ErrorResponse
// @Router       /threads/{threadID} [get]
func (h *ChatHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	thread, err := h.service.GetThread(r.Context(), threadID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, thread)
}

// DeleteThread godoc
// @Summary      Delete a thread
// @Description  Forgets a conversation so the next message starts fresh.
// @Tags         Threads
// @Produce      json
// @Param        threadID  path      string  true  "Thread ID"
// @Success      200       {object}  StatusResponse
// @Failure      404       {object}  ErrorResponse
// @Router       /threads/{threadID} [delete]
func (h *ChatHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	if err := h.service.DeleteThread(r.Context(), threadID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}
