package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/relay"
)

// WSTransport sends each conversation over a fresh WebSocket connection to
// the relay's WebSocket route.
type WSTransport struct {
	url    string
	dialer *websocket.Dialer
}

func NewWSTransport(baseURL string) (*WSTransport, error) {
	wsURL, err := normalizeWSURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &WSTransport{url: wsURL, dialer: websocket.DefaultDialer}, nil
}

func (t *WSTransport) Open(ctx context.Context, turns []conversation.Turn) (conversation.ChunkReader, error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", t.url, err)
	}
	ev := relay.ClientEvent{Type: relay.EventMessage, Messages: turns}
	if err := conn.WriteJSON(ev); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send message: %w", err)
	}

	r := &wsReader{conn: conn, stop: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-r.stop:
		}
	}()
	return r, nil
}

type wsReader struct {
	conn *websocket.Conn
	stop chan struct{}
	done bool
}

func (r *wsReader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}
	for {
		var ev relay.WireEvent
		if err := r.conn.ReadJSON(&ev); err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		switch ev.Type {
		case relay.EventTextDelta:
			if ev.Text == "" {
				continue
			}
			return []byte(ev.Text), nil
		case relay.EventDone:
			r.done = true
			return nil, io.EOF
		case relay.EventError:
			return nil, errors.New(ev.Message)
		}
	}
}

func (r *wsReader) Close() error {
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
	return r.conn.Close()
}

func normalizeWSURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", errors.New("relay URL is required")
	}
	if !strings.HasPrefix(value, "ws://") && !strings.HasPrefix(value, "wss://") && !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "ws://" + value
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/") + relay.ChatWSPath
	return parsed.String(), nil
}
