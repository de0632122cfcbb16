package conversation

import (
	"fmt"
	"strings"
	"time"
)

// ExportToMarkdown renders the conversation as a markdown transcript.
func ExportToMarkdown(c Conversation, now time.Time) string {
	var b strings.Builder

	b.WriteString("# Chat history\n\n")
	b.WriteString("> Exported from [streamchat](https://github.com/samsaffron/streamchat)\n\n")

	users, assistants := 0, 0
	for _, t := range c.turns {
		if t.Role == RoleUser {
			users++
		} else {
			assistants++
		}
	}
	b.WriteString("| Exported | Turns |\n")
	b.WriteString("|----------|-------|\n")
	b.WriteString(fmt.Sprintf("| %s | %d user / %d assistant |\n\n", now.UTC().Format("2006-01-02 15:04 UTC"), users, assistants))
	b.WriteString("---\n\n")

	for _, t := range c.turns {
		switch t.Role {
		case RoleUser:
			b.WriteString("### User\n\n")
		case RoleAssistant:
			b.WriteString("### Assistant\n\n")
		}
		b.WriteString(strings.TrimRight(t.Content, "\n"))
		b.WriteString("\n\n---\n\n")
	}
	return b.String()
}
