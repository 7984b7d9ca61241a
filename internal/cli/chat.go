package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"stockchat/backend/internal/client"
)

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat (default)",
		Long: `Start an interactive chat session.

Type a question and press Enter. While a reply streams, input is ignored
and Ctrl+C stops the reply. Ctrl+C at the prompt, /quit or end of input
leaves the chat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.newSession()
			if err != nil {
				return err
			}

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)

			out := &syncWriter{w: cmd.OutOrStdout()}
			r := &repl{
				in:         cmd.InOrStdin(),
				out:        out,
				session:    session,
				interrupts: interrupts,
				imageDir:   opts.imageDir,
			}
			fmt.Fprintln(out, dimStyle.Render("Thread "+session.ThreadID()+". Ctrl+C or /quit to leave."))
			r.run(cmd.Context())
			return opts.saveTranscript(out, session)
		},
	}
}

// syncWriter serializes writes from the streaming goroutine and the prompt loop.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type repl struct {
	in         io.Reader
	out        io.Writer
	session    *client.Session
	interrupts <-chan os.Signal
	imageDir   string
}

func (r *repl) run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Fprint(r.out, youStyle.Render("You> "))
		var line string
		select {
		case <-ctx.Done():
			return
		case <-r.interrupts:
			fmt.Fprintln(r.out)
			return
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return
			}
			line = strings.TrimSpace(l)
		}

		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		}
		if eof := r.ask(ctx, line, lines); eof {
			return
		}
	}
}

// ask streams one reply. It reports whether input ended meanwhile.
func (r *repl) ask(ctx context.Context, text string, lines <-chan string) bool {
	fmt.Fprintln(r.out, assistantStyle.Render("Assistant>"))
	printer := &replyPrinter{out: r.out}
	done := make(chan error, 1)
	go func() {
		done <- r.session.Send(ctx, text, printer.update)
	}()

	eof := false
	for {
		select {
		case err := <-done:
			reportReply(r.out, r.session, printer, r.imageDir)
			switch {
			case errors.Is(err, client.ErrAborted):
				fmt.Fprintln(r.out, dimStyle.Render("(stopped)"))
			case err != nil:
				fmt.Fprintln(r.out, errorStyle.Render("Request failed:"), err)
			}
			return eof
		case <-r.interrupts:
			r.session.Abort()
		case _, ok := <-lines:
			if !ok {
				eof = true
				lines = nil
				continue
			}
			fmt.Fprintln(r.out, dimStyle.Render("(still answering, input ignored)"))
		}
	}
}
