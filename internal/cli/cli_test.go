package cli

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockchat/backend/internal/client"
	"stockchat/backend/internal/model"
)

var chartURI = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG fake chart"))

// replyServer answers every chat request with the given chunks.
func replyServer(t *testing.T, chunks ...string) (*httptest.Server, *atomic.Int32) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req model.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for _, c := range chunks {
			_, _ = w.Write([]byte(c))
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

func TestAskCommand(t *testing.T) {
	// ARRANGE
	srv, calls := replyServer(t, "Here is AAPL:\n\n", chartURI+"\n\n", "Looks bullish.")
	dir := t.TempDir()
	transcript := filepath.Join(dir, "chat.html")

	// ACT
	out, err := runCLI(t, "", "ask", "--api-url", srv.URL, "--image-dir", filepath.Join(dir, "charts"),
		"--transcript", transcript, "chart", "AAPL")

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, out, "Here is AAPL:")
	assert.Contains(t, out, "[chart 1]")
	assert.Contains(t, out, "Looks bullish.")
	assert.NotContains(t, out, "base64,")

	charts, err := filepath.Glob(filepath.Join(dir, "charts", "*-chart-1.png"))
	require.NoError(t, err)
	require.Len(t, charts, 1)
	data, err := os.ReadFile(charts[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG fake chart"), data)

	page, err := os.ReadFile(transcript)
	require.NoError(t, err)
	assert.Contains(t, string(page), `<img src="`+chartURI+`"`)
}

func TestAskCommand_ServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	out, err := runCLI(t, "", "ask", "--api-url", srv.URL, "--image-dir", "", "hello")

	assert.ErrorContains(t, err, "502")
	assert.Contains(t, out, client.FailureMessage)
}

func TestAskCommand_EmptyQuestion(t *testing.T) {
	srv, calls := replyServer(t, "never")

	_, err := runCLI(t, "", "ask", "--api-url", srv.URL, "   ")

	assert.ErrorIs(t, err, client.ErrEmptyPrompt)
	assert.Zero(t, calls.Load())
}

func TestChatCommand(t *testing.T) {
	t.Run("Streams a reply and writes the transcript", func(t *testing.T) {
		srv, calls := replyServer(t, "AAPL is ", "$190.")
		transcript := filepath.Join(t.TempDir(), "chat.json")

		out, err := runCLI(t, "\n   \nWhat is AAPL at?\n", "--api-url", srv.URL, "--thread", "thread-7", "--transcript", transcript)

		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load(), "blank lines must not send requests")
		assert.Contains(t, out, "Thread thread-7")
		assert.Contains(t, out, "AAPL is $190.")

		raw, err := os.ReadFile(transcript)
		require.NoError(t, err)
		var tr client.Transcript
		require.NoError(t, json.Unmarshal(raw, &tr))
		assert.Equal(t, "thread-7", tr.ThreadID)
		require.Len(t, tr.Messages, 2)
		assert.Equal(t, "AAPL is $190.", tr.Messages[1].Content)
	})

	t.Run("Quit before asking", func(t *testing.T) {
		srv, calls := replyServer(t, "never")

		_, err := runCLI(t, "/quit\nignored question\n", "chat", "--api-url", srv.URL)

		require.NoError(t, err)
		assert.Zero(t, calls.Load())
	})
}

func TestReplyPrinter(t *testing.T) {
	var out bytes.Buffer
	p := &replyPrinter{out: &out}

	p.update(model.Message{Content: "Hello\nwor"})
	assert.Equal(t, "Hello\n", out.String())

	// A chart still arriving stays hidden until its line ends.
	p.update(model.Message{Content: "Hello\nworld\n![AAPL](" + chartURI[:30]})
	assert.Equal(t, "Hello\nworld\n", out.String())

	p.finish(model.Message{Content: "Hello\nworld\n![AAPL](" + chartURI + ")"})
	assert.Equal(t, "Hello\nworld\n[chart 1]\n", out.String())
}

func TestSaveImages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	msg := model.Message{ID: "0123456789abcdef", Content: chartURI + " and again " + chartURI}

	paths, err := saveImages(dir, msg)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "01234567-chart-1.png")}, paths)

	paths, err = saveImages("", msg)
	assert.NoError(t, err)
	assert.Empty(t, paths)
}
