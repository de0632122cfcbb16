package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/samsaffron/streamchat/internal/llm"
)

// wsConn serializes writes on one WebSocket and tracks its in-flight stream.
type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (c *wsConn) write(ev WireEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(ev)
}

func (c *wsConn) writeError(message string) {
	_ = c.write(WireEvent{Type: EventError, Message: message})
}

// begin claims the connection for a new stream. It returns false while
// another stream is still running.
func (c *wsConn) begin(parent context.Context) (context.Context, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil, false
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return ctx, true
}

func (c *wsConn) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (h *Handler) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &wsConn{conn: conn, logger: loggerFrom(r.Context(), h.logger)}
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer func() {
		cancel()
		_ = conn.Close()
	}()

	for {
		var ev ClientEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Type {
		case EventMessage:
			if err := validateTurns(ev.Messages); err != nil {
				c.writeError(err.Error())
				continue
			}
			streamCtx, ok := c.begin(ctx)
			if !ok {
				c.writeError("stream already in progress")
				continue
			}
			go h.streamWS(streamCtx, c, ev)
		default:
			c.writeError("unknown event type: " + ev.Type)
		}
	}
}

func (h *Handler) streamWS(ctx context.Context, c *wsConn, ev ClientEvent) {
	defer c.end()

	stream, err := h.provider.Stream(ctx, h.buildRequest(ev.Messages))
	if err != nil {
		c.logger.Error("upstream request failed", "provider", h.provider.Name(), "error", err)
		c.writeError(genericError)
		return
	}
	defer stream.Close()

	for {
		text, err := llm.NextText(stream)
		if errors.Is(err, io.EOF) {
			_ = c.write(WireEvent{Type: EventDone})
			return
		}
		if err != nil {
			c.logger.Error("upstream stream failed", "provider", h.provider.Name(), "error", err)
			c.writeError(genericError)
			return
		}
		if err := c.write(WireEvent{Type: EventTextDelta, Text: text}); err != nil {
			return
		}
	}
}
