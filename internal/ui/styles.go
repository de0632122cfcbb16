package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Color palette - consistent across all TUI components
var (
	Green  = lipgloss.Color("10") // success
	Red    = lipgloss.Color("9")  // error
	Grey   = lipgloss.Color("8")  // muted text
	Blue   = lipgloss.Color("4")  // borders
	White  = lipgloss.Color("15") // header text
	Purple = lipgloss.Color("5")  // assistant accent
)

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
	UserIcon    = "❯"
	ReplyIcon   = "●"
	CursorGlyph = "▍"
)

// Styles returns styled text helpers bound to a renderer
type Styles struct {
	renderer *lipgloss.Renderer

	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Success   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Banner    lipgloss.Style
	Notice    lipgloss.Style
	Preview   lipgloss.Style
}

// NewStyles creates a new Styles instance for the given output
func NewStyles(output *os.File) *Styles {
	r := lipgloss.NewRenderer(output)

	return &Styles{
		renderer: r,

		Title: r.NewStyle().
			Bold(true).
			Foreground(White),

		Subtitle: r.NewStyle().
			Foreground(Grey),

		Success: r.NewStyle().
			Foreground(Green),

		Error: r.NewStyle().
			Foreground(Red),

		Muted: r.NewStyle().
			Foreground(Grey),

		Bold: r.NewStyle().
			Bold(true),

		User: r.NewStyle().
			Bold(true).
			Foreground(Blue),

		Assistant: r.NewStyle().
			Foreground(Purple),

		Banner: r.NewStyle().
			Bold(true).
			Foreground(White).
			Padding(1, 0),

		Notice: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Red).
			Padding(0, 1),

		Preview: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(Blue).
			Padding(0, 1),
	}
}

// DefaultStyles returns styles for stderr (default TUI output)
func DefaultStyles() *Styles {
	return NewStyles(os.Stderr)
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}
