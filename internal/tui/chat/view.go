package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/preview"
	"github.com/samsaffron/streamchat/internal/ui"
)

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	switch {
	case m.notice != "":
		b.WriteString(m.styles.Notice.Render(m.notice + "  " + m.styles.Muted.Render("[enter] dismiss")))
	case m.confirmingClear:
		b.WriteString(m.styles.Bold.Render("Clear the whole conversation? [y/n]"))
	default:
		b.WriteString(m.renderStatus())
	}
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.styles.Title.Render("streamchat")
	if m.title != "" {
		title += " " + m.styles.Subtitle.Render(m.title)
	}
	if n := len(m.snap.Turns); n > 0 {
		count := m.styles.Muted.Render(fmt.Sprintf("%d messages", n))
		if gap := m.width - ui.ANSILen(title) - ui.ANSILen(count); gap > 0 {
			return title + strings.Repeat(" ", gap) + count
		}
	}
	return ui.TruncateWidth(title, m.width)
}

func (m *Model) renderStatus() string {
	if m.status != "" {
		return m.styles.Muted.Render(ui.TruncateWidth(m.status, m.width))
	}
	switch m.snap.State {
	case conversation.Sending:
		return m.styles.Muted.Render("sending...")
	case conversation.Streaming, conversation.Committing:
		return m.styles.Muted.Render("streaming...")
	}
	return ""
}

func (m *Model) renderHelp() string {
	help := []string{"enter send", "ctrl+j newline", "ctrl+k clear", "ctrl+p preview", "ctrl+c quit"}
	return m.styles.Muted.Render(ui.TruncateWidth(strings.Join(help, " • "), m.width))
}

// renderTranscript renders committed turns followed by the in-flight reply.
func (m *Model) renderTranscript() string {
	width := max(20, m.width-2)
	turns := m.snap.Turns

	var b strings.Builder
	if m.showHelp {
		b.WriteString(ui.RenderMarkdown(helpText(), width))
		b.WriteString("\n")
	}

	if len(turns) == 0 && !m.busy() {
		b.WriteString(m.renderEmptyState(width))
		return b.String()
	}

	for i, turn := range turns {
		switch turn.Role {
		case conversation.RoleUser:
			b.WriteString(m.renderUserTurn(turn.Content, width))
		case conversation.RoleAssistant:
			b.WriteString(m.renderAssistantTurn(turns, i, width))
		}
		b.WriteString("\n")
	}

	if m.busy() {
		if m.snap.Buffer == "" && m.snap.State != conversation.Streaming {
			b.WriteString(m.spinner.View() + " " + m.styles.Muted.Render("Thinking..."))
		} else {
			b.WriteString(ui.RenderMarkdown(m.snap.Buffer, width))
			b.WriteString(m.styles.Assistant.Render(ui.CursorGlyph))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderEmptyState(width int) string {
	banner := lipgloss.JoinVertical(lipgloss.Center,
		m.styles.Banner.Render("How can I help you today?"),
		m.styles.Muted.Render("Ask me to code, write, or analyze."),
	)
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, banner)
}

func (m *Model) renderUserTurn(content string, width int) string {
	prefix := m.styles.User.Render(ui.UserIcon + " ")
	wrapped := lipgloss.NewStyle().Width(max(1, width-2)).Render(content)
	lines := strings.Split(wrapped, "\n")
	for i := range lines {
		if i == 0 {
			lines[i] = prefix + lines[i]
		} else {
			lines[i] = "  " + lines[i]
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *Model) renderAssistantTurn(turns []conversation.Turn, i, width int) string {
	var b strings.Builder
	b.WriteString(ui.RenderMarkdown(turns[i].Content, width))

	switch {
	case m.tracker.IsOpen(i):
		box := m.styles.Preview.Width(max(1, width-4)).Render(m.previewText)
		b.WriteString(box)
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("[ctrl+p] hide preview of message %d", i+1)))
		b.WriteString("\n")
	case preview.Eligible(turns, i):
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("[ctrl+p] preview (/preview %d)", i+1)))
		b.WriteString("\n")
	}
	return b.String()
}
