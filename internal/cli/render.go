package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stockchat/backend/internal/client"
	"stockchat/backend/internal/model"
)

var (
	youStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	chartStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

// displayText swaps inline images for a short placeholder.
func displayText(content string) string {
	return client.ReplaceImages(content, func(i int, _ string) string {
		return fmt.Sprintf("[chart %d]", i+1)
	})
}

// replyPrinter prints a streaming reply line by line. Lines are held back
// until complete so a data URI still arriving is never printed raw.
type replyPrinter struct {
	out     io.Writer
	printed int
}

func (p *replyPrinter) update(msg model.Message) {
	display := displayText(msg.Content)
	end := strings.LastIndex(display, "\n") + 1
	p.flushTo(display, end)
}

// finish prints whatever is left of the reply.
func (p *replyPrinter) finish(msg model.Message) {
	display := displayText(msg.Content)
	p.flushTo(display, len(display))
	if p.printed > 0 && !strings.HasSuffix(display, "\n") {
		fmt.Fprintln(p.out)
	}
}

func (p *replyPrinter) flushTo(display string, end int) {
	if end <= p.printed || end > len(display) {
		return
	}
	fmt.Fprint(p.out, display[p.printed:end])
	p.printed = end
}

// saveImages writes every chart of msg to dir and returns the file paths.
func saveImages(dir string, msg model.Message) ([]string, error) {
	uris := client.ExtractImages(msg.Content)
	if dir == "" || len(uris) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	prefix := msg.ID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	var paths []string
	for i, uri := range uris {
		data, mimeType, err := client.DecodeImage(uri)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(dir, fmt.Sprintf("%s-chart-%d%s", prefix, i+1, client.ImageExtension(mimeType)))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return paths, fmt.Errorf("failed to save chart: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// lastReply returns the newest assistant message of the session.
func lastReply(session *client.Session) (model.Message, bool) {
	msgs := session.Messages()
	if len(msgs) == 0 || msgs[len(msgs)-1].Role != model.RoleAssistant {
		return model.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// reportReply finishes printing a reply and saves its charts.
func reportReply(out io.Writer, session *client.Session, printer *replyPrinter, imageDir string) {
	msg, ok := lastReply(session)
	if !ok {
		return
	}
	printer.finish(msg)
	if msg.Error {
		return
	}
	paths, err := saveImages(imageDir, msg)
	for i, path := range paths {
		fmt.Fprintln(out, chartStyle.Render(fmt.Sprintf("[chart %d] saved to %s", i+1, path)))
	}
	if err != nil {
		fmt.Fprintln(out, errorStyle.Render("Could not save chart:"), err)
	}
}
