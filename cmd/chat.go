package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/preview"
	"github.com/samsaffron/streamchat/internal/tui/chat"
	"github.com/samsaffron/streamchat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	chatFlags      transportFlags
	chatPreviewDir string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive TUI chat through the relay. The conversation is saved
after every message and restored on the next start.

Examples:
  streamchat chat
  streamchat chat --url http://relay.internal:8080
  streamchat chat --ws                     # WebSocket transport
  streamchat chat --local --provider groq  # talk to the provider directly
  streamchat chat --preview-dir ./preview  # write previews as a React project

Keyboard shortcuts:
  Enter        - Send message
  Ctrl+J       - Insert newline
  Ctrl+K       - Clear conversation
  Ctrl+P       - Toggle code preview of the latest reply with code
  PgUp/PgDn    - Scroll
  Ctrl+C       - Quit

Slash commands:
  /help        - Show help
  /clear       - Clear conversation
  /preview [n] - Toggle code preview
  /quit        - Exit chat`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	addTransportFlags(chatCmd, &chatFlags)
	chatCmd.Flags().StringVar(&chatPreviewDir, "preview-dir", "", "Write previews as a runnable React project in this directory")
	rootCmd.AddCommand(chatCmd)
}

func addTransportFlags(cmd *cobra.Command, flags *transportFlags) {
	cmd.Flags().StringVar(&flags.url, "url", "", "Relay base URL (default from config)")
	cmd.Flags().BoolVar(&flags.ws, "ws", false, "Use the WebSocket transport")
	cmd.Flags().BoolVar(&flags.local, "local", false, "Call the provider in-process instead of the relay")
	cmd.Flags().StringVar(&flags.provider, "provider", "", "With --local, override provider, optionally with model")
	registerProviderCompletion(cmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// stderr belongs to the TUI; only a configured log file receives records
	if err := setupLogging(cfg, io.Discard); err != nil {
		return err
	}

	transport, label, err := newTransport(cfg, chatFlags)
	if err != nil {
		return err
	}

	feed := chat.NewFeed()
	defer feed.Stop()
	session, st, err := openSession(ctx, cfg, transport, conversation.WithObserver(feed))
	if err != nil {
		return err
	}
	defer st.Close()

	var renderer preview.Renderer = preview.TerminalRenderer{}
	if chatPreviewDir != "" {
		renderer = preview.ProjectWriter{Dir: chatPreviewDir}
	}

	model := chat.New(ctx, session, feed, chat.Options{
		Title:    label,
		Renderer: renderer,
		Styles:   ui.NewStyles(os.Stdout),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run chat: %w", err)
	}
	return nil
}
