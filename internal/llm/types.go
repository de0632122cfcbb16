package llm

import (
	"context"
	"strings"
)

// Role identifies the author of a message sent upstream.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the upstream request.
type Message struct {
	Role    Role
	Content string
}

// SystemText builds a system message.
func SystemText(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserText builds a user message.
func UserText(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantText builds an assistant message.
func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// Request is a streamed completion request.
type Request struct {
	Model           string
	Messages        []Message
	Temperature     float32
	MaxOutputTokens int
}

// EventType identifies what an Event carries.
type EventType string

const (
	EventTextDelta EventType = "text_delta"
	EventUsage     EventType = "usage"
	EventDone      EventType = "done"
	EventError     EventType = "error"
)

// Usage reports token counts for a completed response.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Event is one item of a provider stream.
type Event struct {
	Type EventType
	Text string
	Use  *Usage
	Err  error
}

// Stream yields provider events in emission order. Recv returns io.EOF once
// the provider has signalled the end of the response.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Provider opens streamed completions against an upstream model API.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request) (Stream, error)
}

// splitSystem separates system instructions from the conversational turns.
// Multiple system messages are joined with a blank line.
func splitSystem(messages []Message) (string, []Message) {
	var systemParts []string
	turns := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			if text := strings.TrimSpace(msg.Content); text != "" {
				systemParts = append(systemParts, text)
			}
			continue
		}
		turns = append(turns, msg)
	}
	return strings.Join(systemParts, "\n\n"), turns
}
