package client

import (
	"fmt"

	"github.com/samsaffron/streamchat/internal/config"
	"github.com/samsaffron/streamchat/internal/conversation"
)

// New returns the relay transport named by cfg.Transport ("http" or "ws").
func New(cfg config.ClientConfig) (conversation.Transport, error) {
	switch cfg.Transport {
	case "", "http":
		return NewHTTPTransport(cfg.URL, nil), nil
	case "ws", "websocket":
		return NewWSTransport(cfg.URL)
	}
	return nil, fmt.Errorf("unknown transport %q (use http or ws)", cfg.Transport)
}
