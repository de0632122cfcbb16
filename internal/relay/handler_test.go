package relay

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samsaffron/streamchat/internal/config"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/llm"
)

const chatBody = `{"messages":[{"role":"user","content":"hi"}]}`

func newTestHandler(t *testing.T, p llm.Provider) *Handler {
	t.Helper()
	h, err := NewHandler(p, Options{
		SystemPrompt:   "be brief",
		Model:          "llama-3.1-8b-instant",
		AllowedOrigins: []string{"http://localhost:*"},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	return h
}

// flushRecorder records the body as it stood at every flush.
type flushRecorder struct {
	*httptest.ResponseRecorder
	flushes []string
}

func (r *flushRecorder) Flush() {
	r.flushes = append(r.flushes, r.Body.String())
	r.ResponseRecorder.Flush()
}

func TestChatStreamsEveryFragment(t *testing.T) {
	p := llm.NewMockProvider("mock").AddFragments("The answer ", "", "is ", "42.")
	h := newTestHandler(t, p)

	rec := &flushRecorder{ResponseRecorder: httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodPost, ChatPath, strings.NewReader(chatBody))
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("content-type=%q", ct)
	}
	if rec.Body.String() != "The answer is 42." {
		t.Errorf("body=%q", rec.Body.String())
	}
	want := []string{"The answer ", "The answer is ", "The answer is 42."}
	if strings.Join(rec.flushes, "|") != strings.Join(want, "|") {
		t.Errorf("flushes=%q, want %q", rec.flushes, want)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

func TestChatBuildsUpstreamRequest(t *testing.T) {
	p := llm.NewMockProvider("mock").AddTextResponse("ok")
	h := newTestHandler(t, p)

	body := `{"messages":[{"role":"user","content":"a"},{"role":"assistant","content":"b"},{"role":"user","content":"c"}]}`
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, ChatPath, strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}

	got, ok := p.LastRequest()
	if !ok {
		t.Fatal("provider was not called")
	}
	if len(got.Messages) != 4 {
		t.Fatalf("messages=%d, want 4", len(got.Messages))
	}
	if got.Messages[0].Role != llm.RoleSystem || got.Messages[0].Content != "be brief" {
		t.Errorf("first message=%+v, want system turn", got.Messages[0])
	}
	if got.Messages[2].Role != llm.RoleAssistant || got.Messages[3].Content != "c" {
		t.Errorf("turn order changed: %+v", got.Messages)
	}
	if got.Temperature != DefaultTemperature || got.MaxOutputTokens != DefaultMaxTokens {
		t.Errorf("temperature=%v max=%d", got.Temperature, got.MaxOutputTokens)
	}
	if got.Model != "llama-3.1-8b-instant" {
		t.Errorf("model=%q", got.Model)
	}
}

func TestChatUpstreamFailureBeforeFirstFragment(t *testing.T) {
	tests := []struct {
		name string
		turn llm.MockTurn
	}{
		{"stream error", llm.MockTurn{Error: errors.New("401 invalid api key sk-secret")}},
		{"open error", llm.MockTurn{OpenError: errors.New("dial tcp: connection refused")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := llm.NewMockProvider("mock").AddTurn(tc.turn)
			h := newTestHandler(t, p)

			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, ChatPath, strings.NewReader(chatBody)))

			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status=%d, want 500", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type=%q", ct)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("body is not JSON: %q", rec.Body.String())
			}
			if resp.Error != "Internal Server Error" {
				t.Errorf("error=%q leaks detail", resp.Error)
			}
		})
	}
}

func TestChatRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"messages":`},
		{"missing messages", `{}`},
		{"empty messages", `{"messages":[]}`},
		{"bad role", `{"messages":[{"role":"system","content":"x"}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := llm.NewMockProvider("mock")
			h := newTestHandler(t, p)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, ChatPath, strings.NewReader(tc.body)))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, want 400", rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error == "" {
				t.Errorf("body=%q", rec.Body.String())
			}
			if len(p.Requests) != 0 {
				t.Error("provider must not be called for a bad request")
			}
		})
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t, llm.NewMockProvider("mock"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, ChatPath, nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow=%q", rec.Header().Get("Allow"))
	}
}

func TestChatAbortsMidStream(t *testing.T) {
	p := llm.NewMockProvider("mock").AddTurn(llm.MockTurn{
		Fragments: []string{"Hel", "lo"},
		MidError:  errors.New("upstream reset"),
	})
	srv := httptest.NewServer(newTestHandler(t, p).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+ChatPath, "application/json", strings.NewReader(chatBody))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err == nil {
		t.Fatalf("expected a broken body, read %q cleanly", body)
	}
	if string(body) != "Hel" && string(body) != "Hello" && string(body) != "" {
		t.Errorf("unexpected partial body %q", body)
	}
}

func TestChatCompletesCleanly(t *testing.T) {
	p := llm.NewMockProvider("mock").AddFragments("a", "b", "c")
	srv := httptest.NewServer(newTestHandler(t, p).Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+ChatPath, "application/json", strings.NewReader(chatBody))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "abc" {
		t.Errorf("body=%q", body)
	}
	if len(resp.TransferEncoding) == 0 || resp.TransferEncoding[0] != "chunked" {
		t.Errorf("transfer-encoding=%v, want chunked", resp.TransferEncoding)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, llm.NewMockProvider("mock"))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["provider"] != "mock" {
		t.Errorf("body=%v", body)
	}
}

func TestHealthReportsProviderType(t *testing.T) {
	h, err := NewHandler(llm.NewMockProvider("Groq (llama-3.1-8b-instant)"), Options{
		ProviderType: "groq",
		Model:        "llama-3.1-8b-instant",
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["provider"] != "groq" || body["model"] != "llama-3.1-8b-instant" {
		t.Errorf("body=%v", body)
	}
}

func TestCORS(t *testing.T) {
	h := newTestHandler(t, llm.NewMockProvider("mock"))

	req := httptest.NewRequest(http.MethodOptions, ChatPath, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status=%d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow-origin=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, HealthPath, nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin echoed: %q", got)
	}
}

func TestNewHandlerRejectsBadOriginPattern(t *testing.T) {
	if _, err := NewHandler(llm.NewMockProvider("mock"), Options{AllowedOrigins: []string{"http://[localhost"}}); err == nil {
		t.Fatal("expected error for invalid glob")
	}
}

func TestBuildRequestZeroOptions(t *testing.T) {
	tests := []struct {
		name   string
		system string
	}{
		{"unset", ""},
		{"blank", "   "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := BuildRequest(Options{SystemPrompt: tt.system}, []conversation.Turn{
				{Role: conversation.RoleUser, Content: "hi"},
			})
			if len(req.Messages) != 2 {
				t.Fatalf("messages=%+v, want system + 1 turn", req.Messages)
			}
			if req.Messages[0].Role != llm.RoleSystem || req.Messages[0].Content != config.DefaultSystemPrompt {
				t.Errorf("first message=%+v, want default system turn", req.Messages[0])
			}
			if req.Messages[1].Role != llm.RoleUser || req.Messages[1].Content != "hi" {
				t.Errorf("user turn=%+v", req.Messages[1])
			}
			if req.Temperature != DefaultTemperature || req.MaxOutputTokens != DefaultMaxTokens {
				t.Errorf("temperature=%v max=%d", req.Temperature, req.MaxOutputTokens)
			}
		})
	}
}
