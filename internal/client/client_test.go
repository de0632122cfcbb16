package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/samsaffron/streamchat/internal/config"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/llm"
	"github.com/samsaffron/streamchat/internal/relay"
	"github.com/samsaffron/streamchat/internal/store"
	"github.com/samsaffron/streamchat/internal/testutil"
)

func newRelay(t *testing.T, p llm.Provider) *httptest.Server {
	t.Helper()
	return testutil.NewRelayServer(t, p, relay.Options{SystemPrompt: "be brief"})
}

func transports(t *testing.T, srv *httptest.Server) map[string]conversation.Transport {
	t.Helper()
	ws, err := NewWSTransport(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	return map[string]conversation.Transport{
		"http": NewHTTPTransport(srv.URL, nil),
		"ws":   ws,
	}
}

func TestTransportsCommitFullReply(t *testing.T) {
	for _, name := range []string{"http", "ws"} {
		t.Run(name, func(t *testing.T) {
			p := llm.NewMockProvider("mock").AddFragments("The answer ", "is ", "42.")
			srv := newRelay(t, p)
			st := store.NewMemoryStore()

			var streamed []string
			s := conversation.NewSession(transports(t, srv)[name], st, conversation.WithObserver(
				conversation.ObserverFunc(func(snap conversation.Snapshot) {
					if snap.State == conversation.Streaming {
						streamed = append(streamed, snap.Buffer)
					}
				})))

			if err := s.Send(context.Background(), "what is it?"); err != nil {
				t.Fatalf("Send: %v", err)
			}
			turns := s.Turns()
			if len(turns) != 2 || turns[1].Content != "The answer is 42." {
				t.Fatalf("turns=%+v", turns)
			}
			if len(streamed) == 0 || streamed[len(streamed)-1] != "The answer is 42." {
				t.Errorf("streamed=%q", streamed)
			}

			req, _ := p.LastRequest()
			if req.Messages[0].Role != llm.RoleSystem {
				t.Errorf("relay did not prepend the system turn: %+v", req.Messages)
			}
		})
	}
}

func TestTransportsReportUpstreamFailure(t *testing.T) {
	for _, name := range []string{"http", "ws"} {
		t.Run(name, func(t *testing.T) {
			p := llm.NewMockProvider("mock").AddError(errors.New("bad key"))
			srv := newRelay(t, p)
			s := conversation.NewSession(transports(t, srv)[name], nil)

			err := s.Send(context.Background(), "hi")
			if !errors.Is(err, conversation.ErrStreamFailed) {
				t.Fatalf("err=%v", err)
			}
			if !strings.Contains(err.Error(), "Internal Server Error") {
				t.Errorf("err=%v, want the relay's generic message", err)
			}
			if strings.Contains(err.Error(), "bad key") {
				t.Errorf("upstream detail leaked to client: %v", err)
			}
			if got := len(s.Turns()); got != 1 {
				t.Errorf("turns=%d, want 1", got)
			}
		})
	}
}

func TestTransportsInterruptedStreamCommitsNothing(t *testing.T) {
	for _, name := range []string{"http", "ws"} {
		t.Run(name, func(t *testing.T) {
			p := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{
				Fragments: []string{"Hel", "lo"},
				MidError:  errors.New("upstream went away"),
			})
			srv := newRelay(t, p)
			st := store.NewMemoryStore()
			s := conversation.NewSession(transports(t, srv)[name], st)

			if err := s.Send(context.Background(), "say hello"); !errors.Is(err, conversation.ErrStreamFailed) {
				t.Fatalf("err=%v, want ErrStreamFailed", err)
			}
			assertNoAssistantTurn(t, s)
			if raw, _, _ := st.Get(context.Background(), conversation.DefaultKey); strings.Contains(raw, "Hello") {
				t.Errorf("partial reply persisted: %s", raw)
			}
		})
	}
}

// The relay reports a mid-stream failure on the WebSocket route as an error
// event after the deltas already sent.
func TestWSTransportErrorEventAfterDeltas(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != relay.ChatWSPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var ev relay.ClientEvent
		if err := conn.ReadJSON(&ev); err != nil || ev.Type != relay.EventMessage {
			return
		}
		_ = conn.WriteJSON(relay.WireEvent{Type: relay.EventTextDelta, Text: "Hel"})
		_ = conn.WriteJSON(relay.WireEvent{Type: relay.EventTextDelta, Text: "lo"})
		_ = conn.WriteJSON(relay.WireEvent{Type: relay.EventError, Message: "Internal Server Error"})
	}))
	defer srv.Close()

	ws, err := NewWSTransport(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	var seen []string
	s := conversation.NewSession(ws, nil, conversation.WithObserver(
		conversation.ObserverFunc(func(snap conversation.Snapshot) {
			if snap.State == conversation.Streaming {
				seen = append(seen, snap.Buffer)
			}
		})))

	err = s.Send(context.Background(), "say hello")
	if !errors.Is(err, conversation.ErrStreamFailed) || !strings.Contains(err.Error(), "Internal Server Error") {
		t.Fatalf("err=%v, want ErrStreamFailed with the relay message", err)
	}
	if len(seen) == 0 || seen[len(seen)-1] != "Hello" {
		t.Errorf("buffer snapshots=%q, want both deltas before the failure", seen)
	}
	assertNoAssistantTurn(t, s)
}

func assertNoAssistantTurn(t *testing.T, s *conversation.Session) {
	t.Helper()
	for _, turn := range s.Turns() {
		if turn.Role == conversation.RoleAssistant {
			t.Fatalf("assistant turn committed: %+v", turn)
		}
	}
	if s.Buffer() != "" {
		t.Errorf("buffer=%q, want empty after failure", s.Buffer())
	}
}

func TestHTTPTransportAlternatingTurns(t *testing.T) {
	p := llm.NewMockProvider("mock").
		AddTextResponse("first reply").
		AddTextResponse("second reply")
	srv := newRelay(t, p)
	s := conversation.NewSession(NewHTTPTransport(srv.URL+"/", nil), nil)

	for _, q := range []string{"one", "two"} {
		if err := s.Send(context.Background(), q); err != nil {
			t.Fatal(err)
		}
	}
	turns := s.Turns()
	if len(turns) != 4 {
		t.Fatalf("turns=%d, want 4", len(turns))
	}
	if turns[3].Content != "second reply" {
		t.Errorf("last=%q", turns[3].Content)
	}
	req, _ := p.LastRequest()
	if len(req.Messages) != 4 {
		t.Errorf("second request carried %d messages, want system + 3 turns", len(req.Messages))
	}
}

func TestLocalTransport(t *testing.T) {
	p := llm.NewMockProvider("mock").AddFragments("lo", "cal")
	s := conversation.NewSession(NewLocalTransport(p, relay.Options{SystemPrompt: "sys", MaxTokens: 64}), nil)

	if err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if got := s.Turns()[1].Content; got != "local" {
		t.Errorf("reply=%q", got)
	}
	req, _ := p.LastRequest()
	if req.MaxOutputTokens != 64 || req.Messages[0].Content != "sys" {
		t.Errorf("request=%+v", req)
	}
}

func TestNormalizeWSURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://127.0.0.1:8080", "ws://127.0.0.1:8080/api/chat/ws"},
		{"https://chat.example.com/", "wss://chat.example.com/api/chat/ws"},
		{"localhost:8080", "ws://localhost:8080/api/chat/ws"},
		{"ws://host/base", "ws://host/base/api/chat/ws"},
	}
	for _, tc := range tests {
		got, err := normalizeWSURL(tc.in)
		if err != nil {
			t.Fatalf("normalizeWSURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("normalizeWSURL(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := normalizeWSURL("  "); err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.ClientConfig{URL: "http://x", Transport: "http"}); err != nil {
		t.Fatal(err)
	}
	if tr, err := New(config.ClientConfig{URL: "http://x", Transport: "ws"}); err != nil {
		t.Fatal(err)
	} else if _, ok := tr.(*WSTransport); !ok {
		t.Errorf("got %T", tr)
	}
	if _, err := New(config.ClientConfig{URL: "http://x", Transport: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown transport")
	}
}
