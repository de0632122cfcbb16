package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/preview"
	"github.com/samsaffron/streamchat/internal/ui"
)

const (
	inputHeight  = 3
	headerHeight = 1
	footerHeight = 2 // status line + help line
)

// sendDoneMsg is returned once Session.Send finishes.
type sendDoneMsg struct {
	err error
}

// clearDoneMsg is returned once Session.Clear finishes.
type clearDoneMsg struct {
	err error
}

// previewMsg carries a rendered preview for turn index.
type previewMsg struct {
	index int
	out   string
	err   error
}

// Options configures the chat model.
type Options struct {
	Title    string // shown in the header, e.g. the relay URL
	Renderer preview.Renderer
	Styles   *ui.Styles
}

// Model is the bubbletea model for the interactive chat.
type Model struct {
	ctx      context.Context
	session  *conversation.Session
	feed     *Feed
	tracker  *preview.Tracker
	renderer preview.Renderer
	styles   *ui.Styles
	keys     keyMap
	title    string

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	snap    conversation.Snapshot
	waiting bool // Send issued, result not yet received

	width  int
	height int

	confirmingClear bool
	showHelp        bool
	notice          string // blocking error, dismissed with enter or esc
	status          string
	previewText     string
	quitting        bool
}

// New creates the chat model. feed must be registered as an observer of
// session so the view follows every state change.
func New(ctx context.Context, session *conversation.Session, feed *Feed, opts Options) *Model {
	styles := opts.Styles
	if styles == nil {
		styles = ui.DefaultStyles()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = preview.TerminalRenderer{}
	}

	keys := defaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Send a message... (/help for commands)"
	ta.ShowLineNumbers = false
	ta.Prompt = ui.UserIcon + " "
	ta.CharLimit = 0
	ta.SetHeight(inputHeight)
	ta.KeyMap.InsertNewline = keys.Newline
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Assistant

	m := &Model{
		ctx:      ctx,
		session:  session,
		feed:     feed,
		tracker:  preview.NewTracker(),
		renderer: renderer,
		styles:   styles,
		keys:     keys,
		title:    opts.Title,
		textarea: ta,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		snap:     session.Snapshot(),
		width:    80,
		height:   24,
	}
	m.refresh()
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.feed.listen())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case snapshotMsg:
		return m, m.applySnapshot(conversation.Snapshot(msg))

	case sendDoneMsg:
		m.waiting = false
		switch {
		case errors.Is(msg.err, conversation.ErrBusy):
			m.status = "A reply is still streaming"
		case errors.Is(msg.err, conversation.ErrEmptyInput):
		case msg.err != nil && m.notice == "":
			// the failure snapshot normally sets the notice first
			m.notice = failureNotice(msg.err)
		}
		return m, m.focusIfIdle()

	case clearDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("History not saved: %v", msg.err)
		} else {
			m.status = "Conversation cleared"
		}
		return m, nil

	case previewMsg:
		if !m.tracker.IsOpen(msg.index) {
			return m, nil
		}
		if msg.err != nil {
			m.previewText = m.styles.Error.Render(fmt.Sprintf("preview failed: %v", msg.err))
		} else {
			m.previewText = msg.out
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.busy() && m.snap.Buffer == "" {
			m.refresh()
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}

	if m.notice != "" {
		if key.Matches(msg, m.keys.Dismiss) {
			m.notice = ""
			return m, m.focusIfIdle()
		}
		return m, nil
	}

	if m.confirmingClear {
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.confirmingClear = false
			return m, m.clear()
		case key.Matches(msg, m.keys.Cancel):
			m.confirmingClear = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Clear):
		return m.requestClear()
	case key.Matches(msg, m.keys.Preview):
		return m.togglePreview()
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.PageUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.PageDown()
		return m, nil
	case key.Matches(msg, m.keys.Send):
		return m.submit()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	if m.busy() {
		return m, nil
	}
	input := m.textarea.Value()
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return m, nil
	}
	if strings.HasPrefix(trimmed, "/") {
		return m.ExecuteCommand(trimmed)
	}

	m.textarea.Reset()
	m.textarea.Blur()
	m.waiting = true
	m.status = ""
	m.showHelp = false
	m.refresh()
	m.viewport.GotoBottom()

	session, ctx := m.session, m.ctx
	return m, func() tea.Msg {
		return sendDoneMsg{err: session.Send(ctx, input)}
	}
}

func (m *Model) requestClear() (tea.Model, tea.Cmd) {
	if len(m.snap.Turns) == 0 {
		m.status = "Nothing to clear"
		return m, nil
	}
	m.confirmingClear = true
	return m, nil
}

func (m *Model) clear() tea.Cmd {
	m.tracker.Close()
	m.previewText = ""
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return clearDoneMsg{err: session.Clear(ctx)}
	}
}

func (m *Model) togglePreview() (tea.Model, tea.Cmd) {
	idx, ok := preview.LatestEligible(m.snap.Turns)
	if !ok {
		m.status = "No code to preview"
		return m, nil
	}
	return m.togglePreviewAt(idx)
}

func (m *Model) togglePreviewAt(idx int) (tea.Model, tea.Cmd) {
	turns := m.snap.Turns
	if !preview.Eligible(turns, idx) && !m.tracker.IsOpen(idx) {
		m.status = fmt.Sprintf("Message %d has no code to preview", idx+1)
		return m, nil
	}
	m.previewText = ""
	if !m.tracker.Toggle(turns, idx) {
		m.refresh()
		return m, nil
	}
	code, _ := preview.ExtractCode(turns[idx].Content)
	m.previewText = m.styles.Muted.Render("rendering preview...")
	m.refresh()

	renderer, ctx := m.renderer, m.ctx
	return m, func() tea.Msg {
		out, err := renderer.Render(ctx, code, preview.Template)
		return previewMsg{index: idx, out: out, err: err}
	}
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.feed.Stop()
	return m, tea.Quit
}

func (m *Model) applySnapshot(s conversation.Snapshot) tea.Cmd {
	m.snap = s
	m.tracker.Sync(s.Turns)
	if _, open := m.tracker.Open(); !open {
		m.previewText = ""
	}
	if s.Err != nil {
		m.notice = failureNotice(s.Err)
	}
	m.refresh()
	m.viewport.GotoBottom()
	return tea.Batch(m.feed.listen(), m.focusIfIdle())
}

func (m *Model) focusIfIdle() tea.Cmd {
	if m.busy() || m.notice != "" {
		return nil
	}
	return m.textarea.Focus()
}

func (m *Model) busy() bool {
	return m.waiting || m.snap.State != conversation.Idle
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.textarea.SetWidth(width)
	m.viewport.Width = width
	m.viewport.Height = max(1, height-headerHeight-inputHeight-footerHeight)
	m.refresh()
}

// refresh re-renders the transcript into the viewport, keeping the scroll
// position pinned to the bottom when it already was.
func (m *Model) refresh() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func failureNotice(err error) string {
	return fmt.Sprintf("Something went wrong: %v", err)
}
