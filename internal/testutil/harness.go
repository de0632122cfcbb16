package testutil

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/samsaffron/streamchat/internal/llm"
	"github.com/samsaffron/streamchat/internal/relay"
)

// QuietLogger returns a logger that drops everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewRelayServer serves the relay routes for p on an httptest server that
// is closed when the test ends. A nil opts.Logger is replaced with a quiet one.
func NewRelayServer(t testing.TB, p llm.Provider, opts relay.Options) *httptest.Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = QuietLogger()
	}
	h, err := relay.NewHandler(p, opts)
	if err != nil {
		t.Fatalf("relay.NewHandler: %v", err)
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

// ScriptedRelay starts a relay backed by a fresh MockProvider and returns
// both, so tests can queue turns and inspect recorded requests.
func ScriptedRelay(t testing.TB, opts relay.Options) (*httptest.Server, *llm.MockProvider) {
	t.Helper()
	p := llm.NewMockProvider("mock")
	return NewRelayServer(t, p, opts), p
}
