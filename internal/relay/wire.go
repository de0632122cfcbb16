package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/samsaffron/streamchat/internal/conversation"
)

const (
	ChatPath   = "/api/chat"
	ChatWSPath = "/api/chat/ws"
	HealthPath = "/healthz"
)

// genericError is the only failure text a client ever sees for upstream errors.
const genericError = "Internal Server Error"

// maxBodyBytes bounds the size of a chat request body.
const maxBodyBytes = 4 << 20

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []conversation.Turn `json:"messages"`
}

// ErrorResponse is the body of every non-200 JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WireEvent is the JSON envelope sent server->client on the WebSocket route.
type WireEvent struct {
	Type string `json:"type"`

	// text_delta
	Text string `json:"text,omitempty"`

	// error
	Message string `json:"message,omitempty"`
}

// ClientEvent is the JSON envelope sent client->server on the WebSocket route.
type ClientEvent struct {
	Type     string              `json:"type"`
	Messages []conversation.Turn `json:"messages,omitempty"`
}

const (
	EventTextDelta = "text_delta"
	EventDone      = "done"
	EventError     = "error"
	EventMessage   = "message"
)

var errNoMessages = errors.New("messages must be a non-empty array")

// decodeChatRequest parses and validates a chat request body.
func decodeChatRequest(r io.Reader) ([]conversation.Turn, error) {
	var req ChatRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if err := validateTurns(req.Messages); err != nil {
		return nil, err
	}
	return req.Messages, nil
}

func validateTurns(turns []conversation.Turn) error {
	if len(turns) == 0 {
		return errNoMessages
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return fmt.Errorf("message %d has invalid role %q", i, t.Role)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
