package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/exitcode"
	"github.com/samsaffron/streamchat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	askFlags transportFlags
	askText  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer",
	Long: `Send one message through the relay and stream the reply to stdout. The
question and answer are appended to the saved conversation, so earlier
turns are sent as context.

Examples:
  streamchat ask "What is the capital of France?"
  streamchat ask "Write a React counter component" --text
  streamchat ask --local --provider openai:gpt-4o "Explain TCP vs UDP"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	addTransportFlags(askCmd, &askFlags)
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Output plain text instead of rendered markdown")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("nothing to ask")
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, os.Stderr); err != nil {
		return err
	}
	transport, _, err := newTransport(cfg, askFlags)
	if err != nil {
		return err
	}

	output := make(chan string, 64)
	session, st, err := openSession(ctx, cfg, transport, conversation.WithObserver(deltaObserver(ctx, output)))
	if err != nil {
		return err
	}
	defer st.Close()

	errChan := make(chan error, 1)
	go func() {
		errChan <- session.Send(ctx, question)
		close(output)
	}()

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if !askText && isTTY {
		err = streamWithBubbleTea(output)
	} else {
		err = streamPlainText(cmd.OutOrStdout(), output)
	}
	// stops the send if the viewer quit early
	cancel()
	sendErr := <-errChan

	if err != nil {
		return err
	}
	switch {
	case sendErr == nil:
		return nil
	case errors.Is(sendErr, context.Canceled):
		return exitcode.Cancel()
	default:
		return exitcode.Failed(fmt.Sprintf("streaming failed: %v", sendErr))
	}
}

// deltaObserver forwards the text appended to the reply buffer since the
// previous notification.
func deltaObserver(ctx context.Context, output chan<- string) conversation.Observer {
	printed := 0
	return conversation.ObserverFunc(func(s conversation.Snapshot) {
		if s.State != conversation.Streaming || len(s.Buffer) <= printed {
			return
		}
		delta := s.Buffer[printed:]
		printed = len(s.Buffer)
		select {
		case output <- delta:
		case <-ctx.Done():
		}
	})
}

// streamPlainText streams text directly without formatting
func streamPlainText(w io.Writer, output <-chan string) error {
	wrote := false
	for chunk := range output {
		fmt.Fprint(w, chunk)
		wrote = true
	}
	if wrote {
		fmt.Fprintln(w)
	}
	return nil
}

// askModel is the bubbletea model for streaming with glamour
type askModel struct {
	spinner    spinner.Model
	content    *strings.Builder
	output     <-chan string
	done       bool
	finalView  string
	hasContent bool
}

// chunkMsg carries a streaming chunk
type chunkMsg string

// doneMsg signals streaming is complete
type doneMsg struct{}

func newAskModel(output <-chan string) askModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return askModel{
		spinner: s,
		content: &strings.Builder{},
		output:  output,
	}
}

func (m askModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChunk(m.output))
}

// waitForChunk reads from the channel and sends chunks as messages
func waitForChunk(output <-chan string) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-output
		if !ok {
			return doneMsg{}
		}
		return chunkMsg(chunk)
	}
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case chunkMsg:
		m.content.WriteString(string(msg))
		m.hasContent = true
		return m, waitForChunk(m.output)

	case doneMsg:
		m.done = true
		if m.content.Len() > 0 {
			m.finalView = renderAnswer(m.content.String())
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m askModel) View() string {
	if m.done {
		return m.finalView
	}
	if !m.hasContent {
		return m.spinner.View() + " Thinking..."
	}
	return renderAnswer(m.content.String())
}

// streamWithBubbleTea uses bubbletea for proper terminal handling
func streamWithBubbleTea(output <-chan string) error {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return streamPlainText(os.Stdout, output)
	}
	defer tty.Close()

	p := tea.NewProgram(newAskModel(output), tea.WithInput(tty), tea.WithOutput(os.Stdout))
	_, err = p.Run()
	return err
}

func renderAnswer(content string) string {
	rendered, err := renderMarkdown(content)
	if err != nil {
		return content
	}
	return rendered
}

// renderMarkdown renders markdown content using glamour with no padding
func renderMarkdown(content string) (string, error) {
	style := ui.GlamourStyle()
	style.Document.Margin = uintPtr(0)
	style.Document.BlockPrefix = ""
	style.Document.BlockSuffix = ""
	style.CodeBlock.Margin = uintPtr(0)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(0),
	)
	if err != nil {
		return "", err
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rendered) + "\n", nil
}

func uintPtr(v uint) *uint {
	return &v
}
