package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
)

// Command represents a slash command
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
}

// AllCommands returns all available slash commands
func AllCommands() []Command {
	return []Command{
		{
			Name:        "help",
			Aliases:     []string{"h", "?"},
			Description: "Show help and available commands",
			Usage:       "/help",
		},
		{
			Name:        "clear",
			Aliases:     []string{"c"},
			Description: "Clear conversation history",
			Usage:       "/clear",
		},
		{
			Name:        "preview",
			Aliases:     []string{"p"},
			Description: "Toggle the code preview of message n, or of the latest reply with code",
			Usage:       "/preview [n]",
		},
		{
			Name:        "quit",
			Aliases:     []string{"q", "exit"},
			Description: "Exit chat",
			Usage:       "/quit",
		},
	}
}

// CommandSource implements fuzzy.Source for command searching
type CommandSource []Command

func (c CommandSource) String(i int) string {
	return c[i].Name
}

func (c CommandSource) Len() int {
	return len(c)
}

// FilterCommands returns commands matching the query using fuzzy search
func FilterCommands(query string) []Command {
	commands := AllCommands()
	query = strings.TrimPrefix(query, "/")
	if query == "" {
		return commands
	}

	queryLower := strings.ToLower(query)
	for _, cmd := range commands {
		if cmd.Name == queryLower {
			return []Command{cmd}
		}
		for _, alias := range cmd.Aliases {
			if alias == queryLower {
				return []Command{cmd}
			}
		}
	}

	var result []Command
	for _, match := range fuzzy.FindFrom(queryLower, CommandSource(commands)) {
		result = append(result, commands[match.Index])
	}
	return result
}

// ExecuteCommand handles slash command execution
func (m *Model) ExecuteCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}
	m.textarea.Reset()

	name := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	matches := FilterCommands(name)
	switch len(matches) {
	case 0:
		m.status = fmt.Sprintf("Unknown command: /%s. Type /help for available commands.", name)
		return m, nil
	case 1:
	default:
		names := make([]string, 0, len(matches))
		for _, c := range matches {
			names = append(names, "/"+c.Name)
		}
		m.status = fmt.Sprintf("Ambiguous command: /%s. Did you mean: %s?", name, strings.Join(names, ", "))
		return m, nil
	}

	switch matches[0].Name {
	case "help":
		m.showHelp = !m.showHelp
		m.refresh()
		return m, nil
	case "clear":
		return m.requestClear()
	case "preview":
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil || n < 1 || n > len(m.snap.Turns) {
				m.status = fmt.Sprintf("Usage: /preview [message number 1-%d]", len(m.snap.Turns))
				return m, nil
			}
			return m.togglePreviewAt(n - 1)
		}
		return m.togglePreview()
	case "quit":
		return m.quit()
	}
	return m, nil
}

func helpText() string {
	var b strings.Builder
	b.WriteString("## Available Commands\n\n")
	for _, cmd := range AllCommands() {
		b.WriteString(fmt.Sprintf("**%s**", cmd.Usage))
		if len(cmd.Aliases) > 0 {
			b.WriteString(fmt.Sprintf(" (aliases: %s)", strings.Join(cmd.Aliases, ", ")))
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %s\n\n", cmd.Description))
	}

	b.WriteString("## Keyboard Shortcuts\n\n")
	b.WriteString("- `Enter` - Send message\n")
	b.WriteString("- `Ctrl+J` or `Alt+Enter` - Insert newline\n")
	b.WriteString("- `Ctrl+K` - Clear conversation\n")
	b.WriteString("- `Ctrl+P` - Toggle code preview\n")
	b.WriteString("- `PgUp`/`PgDn` - Scroll\n")
	b.WriteString("- `Ctrl+C` - Quit\n")
	return b.String()
}
