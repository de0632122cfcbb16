// Package conversation owns the chat history and the per-send state machine
// that streams an assistant reply into it.
package conversation

import (
	"encoding/json"
	"fmt"
)

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role a conversation may contain.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one message in a conversation. Turns are never modified after
// they are appended.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered, append-only list of turns. Clear is the only
// operation that removes turns.
type Conversation struct {
	turns []Turn
}

// New returns a conversation holding a copy of turns.
func New(turns ...Turn) Conversation {
	return Conversation{turns: append([]Turn(nil), turns...)}
}

// Turns returns a copy of the turns in production order.
func (c Conversation) Turns() []Turn {
	return append([]Turn(nil), c.turns...)
}

func (c Conversation) Len() int {
	return len(c.turns)
}

func (c *Conversation) Append(t Turn) {
	c.turns = append(c.turns, t)
}

func (c *Conversation) Clear() {
	c.turns = nil
}

// Encode serializes the conversation as a JSON array of {role, content}.
func (c Conversation) Encode() (string, error) {
	turns := c.turns
	if turns == nil {
		turns = []Turn{}
	}
	data, err := json.Marshal(turns)
	if err != nil {
		return "", fmt.Errorf("encode conversation: %w", err)
	}
	return string(data), nil
}

// Decode parses the output of Encode. Turns with an unknown role make the
// whole value invalid.
func Decode(data string) (Conversation, error) {
	var turns []Turn
	if err := json.Unmarshal([]byte(data), &turns); err != nil {
		return Conversation{}, fmt.Errorf("decode conversation: %w", err)
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return Conversation{}, fmt.Errorf("decode conversation: turn %d has invalid role %q", i, t.Role)
		}
	}
	return Conversation{turns: turns}, nil
}
