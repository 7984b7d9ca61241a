package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockchat/backend/internal/model"
)

// chatServer serves /api/chat with handle and counts the requests it gets.
func chatServer(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, req model.ChatRequest)) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var req model.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handle(w, r, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writeFlush(w http.ResponseWriter, b []byte) {
	_, _ = w.Write(b)
	w.(http.Flusher).Flush()
}

func TestSession_Send_EmptyPromptSendsNothing(t *testing.T) {
	srv, calls := chatServer(t, func(w http.ResponseWriter, r *http.Request, req model.ChatRequest) {})
	session := New(srv.URL, nil).NewSession("thread-1")

	for _, input := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, session.Send(context.Background(), input, nil), ErrEmptyPrompt)
	}
	assert.Zero(t, calls.Load())
	assert.Empty(t, session.Messages())
}

func TestSession_Send_StreamsReply(t *testing.T) {
	// ARRANGE: split a four byte rune across two writes.
	emoji := []byte("📈")
	var got model.ChatRequest
	srv, _ := chatServer(t, func(w http.ResponseWriter, r *http.Request, req model.ChatRequest) {
		got = req
		w.Header().Set("Content-Type", "text/event-stream")
		writeFlush(w, []byte("AAPL is up "))
		writeFlush(w, emoji[:2])
		writeFlush(w, append(emoji[2:], []byte(" today.")...))
	})
	session := New(srv.URL+"/", nil).NewSession("thread-1")

	// ACT
	var updates []model.Message
	err := session.Send(context.Background(), "  How is AAPL?  ", func(msg model.Message) {
		updates = append(updates, msg)
	})

	// ASSERT
	require.NoError(t, err)
	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "How is AAPL?", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "AAPL is up 📈 today.", msgs[1].Content)
	assert.False(t, msgs[1].Error)

	assert.Equal(t, "thread-1", got.ThreadID)
	assert.Equal(t, msgs[1].ID, got.ResponseID)
	assert.Equal(t, msgs[0].ID, got.Prompt.ID)
	assert.Equal(t, "How is AAPL?", got.Prompt.Content)
	assert.Equal(t, model.RoleUser, got.Prompt.Role)

	require.NotEmpty(t, updates)
	assert.Equal(t, msgs[1], updates[len(updates)-1])
	assert.False(t, session.Busy())
}

func TestSession_Send_Busy(t *testing.T) {
	release := make(chan struct{})
	srv, calls := chatServer(t, func(w http.ResponseWriter, r *http.Request, req model.ChatRequest) {
		writeFlush(w, []byte("thinking"))
		<-release
	})
	session := New(srv.URL, nil).NewSession("")
	assert.NotEmpty(t, session.ThreadID())

	firstChunk := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- session.Send(context.Background(), "first", func(model.Message) {
			select {
			case firstChunk <- struct{}{}:
			default:
			}
		})
	}()
	<-firstChunk

	assert.True(t, session.Busy())
	assert.ErrorIs(t, session.Send(context.Background(), "second", nil), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, session.Messages(), 2)
}

func TestSession_Abort_StopsAppending(t *testing.T) {
	// ARRANGE: the server sends one chunk, then keeps trickling until cancelled.
	srv, _ := chatServer(t, func(w http.ResponseWriter, r *http.Request, req model.ChatRequest) {
		writeFlush(w, []byte("partial"))
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				writeFlush(w, []byte(" more"))
			}
		}
	})
	session := New(srv.URL, nil).NewSession("thread-1")

	// ACT: abort from the first update.
	aborted := false
	err := session.Send(context.Background(), "stream forever", func(msg model.Message) {
		if !aborted {
			aborted = session.Abort()
		}
	})

	// ASSERT
	assert.ErrorIs(t, err, ErrAborted)
	assert.True(t, aborted)
	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "partial", msgs[1].Content)
	assert.False(t, msgs[1].Error)
	assert.False(t, session.Busy())
	assert.False(t, session.Abort(), "nothing left to abort")
}

func TestSession_Send_Failures(t *testing.T) {
	t.Run("Failure - Server error status", func(t *testing.T) {
		srv, _ := chatServer(t, func(w http.ResponseWriter, r *http.Request, req model.ChatRequest) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		})
		session := New(srv.URL, nil).NewSession("thread-1")

		var last model.Message
		err := session.Send(context.Background(), "hello", func(msg model.Message) { last = msg })

		assert.ErrorContains(t, err, "500")
		msgs := session.Messages()
		require.Len(t, msgs, 2)
		assert.True(t, msgs[1].Error)
		assert.Equal(t, FailureMessage, msgs[1].Content)
		assert.Equal(t, msgs[1], last)
	})

	t.Run("Failure - Network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		session := New(url, nil).NewSession("thread-1")

		err := session.Send(context.Background(), "hello", nil)

		assert.Error(t, err)
		msgs := session.Messages()
		require.Len(t, msgs, 2)
		assert.True(t, msgs[1].Error)
		assert.False(t, session.Busy())
	})
}

func TestSession_Transcript(t *testing.T) {
	srv, _ := chatServer(t, func(w http.ResponseWriter, r *http.Request, req model.ChatRequest) {
		writeFlush(w, []byte("Here: "+pngURI))
	})
	session := New(srv.URL, nil).NewSession("thread-9")
	require.NoError(t, session.Send(context.Background(), "chart please", nil))

	tr := session.Transcript()
	assert.Equal(t, "thread-9", tr.ThreadID)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, []string{pngURI}, ExtractImages(tr.Messages[1].Content))
}
