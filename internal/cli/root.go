package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"stockchat/backend/internal/client"
	"stockchat/backend/internal/config"
)

type options struct {
	apiURL     string
	threadID   string
	verbose    bool
	imageDir   string
	transcript string
}

// NewRootCmd builds the chat-cli command tree. Bare `chat-cli` runs the
// interactive chat.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "chat-cli",
		Short: "Ask a stock-market assistant from the terminal",
		Long: `Chat with the StockChat server from your terminal.

Replies stream in as they are generated. Price charts sent by the
assistant are saved as image files.

Quick Start:
  chat-cli                              # Interactive chat
  chat-cli ask "What is AAPL at?"        # One question, then exit
  chat-cli --transcript chat.html        # Save the conversation on exit`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(cmd.ErrOrStderr(), opts.verbose)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Server base URL (overrides STOCKCHAT_API_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.threadID, "thread", "", "Thread ID to continue (a new one is generated when empty)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&opts.imageDir, "image-dir", "charts", "Directory where charts are saved (empty disables saving)")
	rootCmd.PersistentFlags().StringVar(&opts.transcript, "transcript", "", "Write the transcript to this file on exit (.md, .html, .json or .yaml)")

	chatCmd := newChatCmd(opts)
	rootCmd.RunE = chatCmd.RunE
	rootCmd.AddCommand(chatCmd, newAskCmd(opts))

	return rootCmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		return 1
	}
	return 0
}

func setupLogger(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// newSession resolves the server address and opens a session on it.
func (o *options) newSession() (*client.Session, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load client configuration: %w", err)
	}
	apiURL := cfg.APIURL
	if o.apiURL != "" {
		apiURL = o.apiURL
	}
	slog.Debug("Using chat server", "url", apiURL, "thread_id", o.threadID)
	return client.New(apiURL, &http.Client{Timeout: cfg.Timeout}).NewSession(o.threadID), nil
}

// saveTranscript writes the session to --transcript, if set.
func (o *options) saveTranscript(out io.Writer, session *client.Session) error {
	if o.transcript == "" {
		return nil
	}
	format, err := client.FormatFromPath(o.transcript)
	if err != nil {
		return err
	}
	f, err := os.Create(o.transcript)
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}
	defer f.Close()
	if err := client.Export(f, session.Transcript(), format); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	fmt.Fprintln(out, dimStyle.Render("Transcript saved to "+o.transcript))
	return nil
}
