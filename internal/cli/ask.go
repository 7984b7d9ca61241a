package cli

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"stockchat/backend/internal/client"
)

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the reply",
		Long: `Ask a single question, stream the reply and exit.

Ctrl+C stops the reply early. Text received until then is kept.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := opts.newSession()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			printer := &replyPrinter{out: out}
			err = session.Send(ctx, strings.Join(args, " "), printer.update)
			reportReply(out, session, printer, opts.imageDir)
			if errors.Is(err, client.ErrAborted) {
				fmt.Fprintln(out, dimStyle.Render("(stopped)"))
				err = nil
			}
			if saveErr := opts.saveTranscript(out, session); saveErr != nil && err == nil {
				err = saveErr
			}
			return err
		},
	}
}
