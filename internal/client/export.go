package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"

	"stockchat/backend/internal/model"
)

// Transcript is an exported conversation.
type Transcript struct {
	ThreadID   string          `json:"thread_id" yaml:"thread_id"`
	ExportedAt time.Time       `json:"exported_at" yaml:"exported_at"`
	Messages   []model.Message `json:"messages" yaml:"messages"`
}

type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// FormatFromPath picks the export format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return FormatMarkdown, nil
	case ".html", ".htm":
		return FormatHTML, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported transcript format %q", filepath.Ext(path))
	}
}

// Export writes t to w in the given format.
func Export(w io.Writer, t Transcript, format Format) error {
	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, renderMarkdown(t))
		return err
	case FormatHTML:
		return renderHTML(w, t)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported transcript format %q", format)
	}
}

func speaker(m model.Message) string {
	if m.Role == model.RoleUser {
		return "You"
	}
	if m.Error {
		return "Assistant (failed)"
	}
	return "Assistant"
}

func renderMarkdown(t Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Thread %s\n\n", t.ThreadID)
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", speaker(m), strings.TrimSpace(m.Content))
	}
	return b.String()
}

// renderHTML converts each message with goldmark. Images are pulled out of
// the text and rendered once each as <img> elements after it.
func renderHTML(w io.Writer, t Transcript) error {
	md := goldmark.New()
	var b bytes.Buffer
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"><title>Thread %s</title></head>\n<body>\n", html.EscapeString(t.ThreadID))
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "<section class=\"%s\">\n<h2>%s</h2>\n", html.EscapeString(string(m.Role)), html.EscapeString(speaker(m)))
		text := ReplaceImages(m.Content, func(i int, _ string) string {
			return fmt.Sprintf("*[chart %d]*", i+1)
		})
		if err := md.Convert([]byte(text), &b); err != nil {
			return fmt.Errorf("failed to render message %s: %w", m.ID, err)
		}
		for i, uri := range ExtractImages(m.Content) {
			fmt.Fprintf(&b, "<img src=\"%s\" alt=\"chart %d\">\n", html.EscapeString(uri), i+1)
		}
		b.WriteString("</section>\n")
	}
	b.WriteString("</body>\n</html>\n")
	_, err := w.Write(b.Bytes())
	return err
}
