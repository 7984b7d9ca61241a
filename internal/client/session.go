package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockchat/backend/internal/model"
)

// FailureMessage is shown in place of a reply the server could not deliver.
const FailureMessage = "Sorry, something went wrong while contacting the server. Please try again."

var (
	ErrEmptyPrompt = errors.New("prompt is empty")
	ErrBusy        = errors.New("a reply is still streaming")
	ErrAborted     = errors.New("request aborted")
)

const readChunkSize = 4096

// Client talks to the chat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// NewSession starts a conversation. An empty threadID gets a random one.
func (c *Client) NewSession(threadID string) *Session {
	if threadID == "" {
		threadID = uuid.NewString()
	}
	return &Session{client: c, threadID: threadID, now: time.Now}
}

// UpdateFunc receives the assistant message every time it grows.
type UpdateFunc func(msg model.Message)

// Session holds the transcript of one thread and allows a single request in
// flight at a time.
type Session struct {
	client   *Client
	threadID string
	now      func() time.Time

	mu       sync.Mutex
	messages []model.Message
	cancel   context.CancelFunc
	aborted  bool
}

func (s *Session) ThreadID() string { return s.threadID }

// Messages returns a copy of the transcript.
func (s *Session) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

// Busy reports whether a reply is streaming.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Abort cancels the in-flight request. Text received so far stays in the
// transcript. It reports whether there was anything to cancel.
func (s *Session) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.aborted = true
	s.cancel()
	return true
}

// Send posts text to the chat endpoint and appends the streamed reply to the
// transcript, calling onUpdate after each decoded chunk.
func (s *Session) Send(ctx context.Context, text string, onUpdate UpdateFunc) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyPrompt
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrBusy
	}
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.aborted = false
	prompt := model.Message{ID: uuid.NewString(), Role: model.RoleUser, Content: text, CreatedAt: s.now()}
	s.messages = append(s.messages, prompt)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	responseID := uuid.NewString()
	log := slog.With("thread_id", s.threadID, "response_id", responseID)

	resp, err := s.post(reqCtx, prompt, responseID)
	if err != nil {
		if s.stopped(ctx) {
			return ErrAborted
		}
		log.Warn("Chat request failed", "error", err)
		s.fail(responseID, "", onUpdate)
		return err
	}
	defer resp.Body.Close()

	return s.consume(ctx, resp.Body, responseID, onUpdate, log)
}

func (s *Session) post(ctx context.Context, prompt model.Message, responseID string) (*http.Response, error) {
	body, err := json.Marshal(model.ChatRequest{
		Prompt:     model.Prompt{Content: prompt.Content, ID: prompt.ID, Role: model.RoleUser},
		ThreadID:   s.threadID,
		ResponseID: responseID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("chat endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// consume reads the reply body into a new assistant message.
func (s *Session) consume(ctx context.Context, body io.Reader, responseID string, onUpdate UpdateFunc, log *slog.Logger) error {
	s.mu.Lock()
	s.messages = append(s.messages, model.Message{ID: responseID, Role: model.RoleAssistant, CreatedAt: s.now()})
	idx := len(s.messages) - 1
	s.mu.Unlock()

	dec := NewDecoder()
	buf := make([]byte, readChunkSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if !s.appendChunk(idx, dec.Decode(buf[:n]), onUpdate) {
				return ErrAborted
			}
		}
		if errors.Is(err, io.EOF) {
			s.appendChunk(idx, dec.Flush(), onUpdate)
			log.Debug("Reply finished")
			return nil
		}
		if err != nil {
			if s.stopped(ctx) {
				return ErrAborted
			}
			log.Warn("Reply stream broke", "error", err)
			s.fail(responseID, dec.Flush(), onUpdate)
			return err
		}
	}
}

// appendChunk adds text to the message at idx. It returns false once the
// request has been aborted, in which case nothing is appended.
func (s *Session) appendChunk(idx int, text string, onUpdate UpdateFunc) bool {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return false
	}
	if text == "" {
		s.mu.Unlock()
		return true
	}
	s.messages[idx].Content += text
	msg := s.messages[idx]
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate(msg)
	}
	return true
}

// fail flags the reply as failed, creating it if nothing arrived yet.
func (s *Session) fail(responseID, tail string, onUpdate UpdateFunc) {
	s.mu.Lock()
	var msg *model.Message
	if n := len(s.messages); n > 0 && s.messages[n-1].ID == responseID {
		msg = &s.messages[n-1]
	} else {
		s.messages = append(s.messages, model.Message{ID: responseID, Role: model.RoleAssistant, CreatedAt: s.now()})
		msg = &s.messages[len(s.messages)-1]
	}
	msg.Content += tail
	if msg.Content != "" {
		msg.Content += "\n\n"
	}
	msg.Content += FailureMessage
	msg.Error = true
	snapshot := *msg
	s.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snapshot)
	}
}

func (s *Session) stopped(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted || ctx.Err() != nil
}

// Transcript snapshots the session for export.
func (s *Session) Transcript() Transcript {
	return Transcript{ThreadID: s.threadID, ExportedAt: s.now(), Messages: s.Messages()}
}
