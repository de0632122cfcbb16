package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samsaffron/streamchat/internal/config"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/exitcode"
	"github.com/samsaffron/streamchat/internal/relay"
	"github.com/samsaffron/streamchat/internal/testutil"
	"github.com/samsaffron/streamchat/internal/ui"
)

// writeConfig points the CLI at relayURL with file-backed history under a
// temp dir and returns the config path.
func writeConfig(t *testing.T, relayURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))

	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`client:
  url: %s
history:
  backend: file
  path: %s
log:
  level: error
`, relayURL, filepath.Join(dir, "history"))
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	askFlags = transportFlags{}
	askText = false
	historyJSON = false
	historyYes = false
	historyLimit = 10
	configPath = ""
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAskStreamsAndPersists(t *testing.T) {
	srv, provider := testutil.ScriptedRelay(t, relay.Options{})
	provider.AddFragments("Paris", " is the capital.")
	provider.AddFragments("About 2.1 million.")
	cfgPath := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfgPath, "ask", "capital of France?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	testutil.AssertContains(t, out, "Paris is the capital.")

	if _, err := execute(t, "--config", cfgPath, "ask", "population?"); err != nil {
		t.Fatalf("second ask: %v", err)
	}
	req, _ := provider.LastRequest()
	// system + 3 conversation turns
	if len(req.Messages) != 4 {
		t.Fatalf("second request carried %d messages, want 4", len(req.Messages))
	}

	out, err = execute(t, "--config", cfgPath, "history", "show", "--json")
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	conv, err := conversation.Decode(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if conv.Len() != 4 {
		t.Fatalf("history has %d turns, want 4", conv.Len())
	}
}

func TestAskUpstreamFailure(t *testing.T) {
	srv, provider := testutil.ScriptedRelay(t, relay.Options{})
	provider.AddError(errors.New("secret upstream detail"))
	cfgPath := writeConfig(t, srv.URL)

	out, err := execute(t, "--config", cfgPath, "ask", "hello")
	var exitErr exitcode.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitcode.StreamFailed {
		t.Fatalf("err=%v, want StreamFailed exit error", err)
	}
	testutil.AssertNotContains(t, err.Error(), "secret upstream detail")
	testutil.AssertContains(t, err.Error(), "Internal Server Error")
	if out != "" {
		t.Errorf("partial output written: %q", out)
	}

	out, _ = execute(t, "--config", cfgPath, "history", "show", "--json")
	conv, err := conversation.Decode(strings.TrimSpace(out))
	if err != nil {
		t.Fatal(err)
	}
	if conv.Len() != 1 {
		t.Errorf("history has %d turns, want only the user turn", conv.Len())
	}
}

func TestHistoryClearYes(t *testing.T) {
	srv, provider := testutil.ScriptedRelay(t, relay.Options{})
	provider.AddTextResponse("hi")
	cfgPath := writeConfig(t, srv.URL)

	if _, err := execute(t, "--config", cfgPath, "ask", "hello"); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "--config", cfgPath, "history", "clear", "--yes"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	out, err := execute(t, "--config", cfgPath, "history", "show", "--json")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("history after clear=%q, want []", out)
	}
}

func TestSearchTurns(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleUser, Content: "how do goroutines work?"},
		{Role: conversation.RoleAssistant, Content: "Goroutines are lightweight threads."},
		{Role: conversation.RoleUser, Content: "thanks"},
	}

	matches := searchTurns(turns, "gorout", 0)
	if len(matches) != 2 {
		t.Fatalf("matches=%d, want 2", len(matches))
	}
	for _, m := range matches {
		if m.Index == 2 {
			t.Errorf("unrelated turn matched: %q", turns[m.Index].Content)
		}
	}
	if got := searchTurns(turns, "gorout", 1); len(got) != 1 {
		t.Errorf("limit ignored: %d matches", len(got))
	}
}

func TestWriteTranscript(t *testing.T) {
	var buf bytes.Buffer
	styles := ui.NewStyles(os.Stderr)

	writeTranscript(&buf, nil, styles)
	testutil.AssertContainsPlain(t, buf.String(), "No saved conversation.")

	buf.Reset()
	writeTranscript(&buf, []conversation.Turn{
		{Role: conversation.RoleUser, Content: "hi"},
		{Role: conversation.RoleAssistant, Content: "hello\n"},
	}, styles)
	out := buf.String()
	testutil.AssertContainsPlain(t, out, "You")
	testutil.AssertContainsPlain(t, out, "Assistant")
	testutil.AssertMatchesString(t, testutil.StripANSI(out), `(?s)hi\n\n.*Assistant\nhello\n$`)
}

func TestRedactedMasksKeys(t *testing.T) {
	cfg := &config.Config{
		Provider: "groq",
		Providers: map[string]config.ProviderConfig{
			"groq":  {APIKey: "gsk-secret", Model: "llama"},
			"local": {BaseURL: "http://localhost:11434/v1"},
		},
	}
	out := redacted(cfg)
	if out.Providers["groq"].APIKey != "********" {
		t.Errorf("groq key=%q", out.Providers["groq"].APIKey)
	}
	if out.Providers["local"].APIKey != "" {
		t.Errorf("empty key should stay empty, got %q", out.Providers["local"].APIKey)
	}
	if cfg.Providers["groq"].APIKey != "gsk-secret" {
		t.Error("redacted modified the caller's config")
	}
}

func TestDeltaObserver(t *testing.T) {
	ctx := context.Background()
	output := make(chan string, 8)
	obs := deltaObserver(ctx, output)

	obs.OnChange(conversation.Snapshot{State: conversation.Sending})
	obs.OnChange(conversation.Snapshot{State: conversation.Streaming, Buffer: "The answer "})
	obs.OnChange(conversation.Snapshot{State: conversation.Streaming, Buffer: "The answer is "})
	obs.OnChange(conversation.Snapshot{State: conversation.Streaming, Buffer: "The answer is 42."})
	obs.OnChange(conversation.Snapshot{State: conversation.Idle})
	close(output)

	var got []string
	for d := range output {
		got = append(got, d)
	}
	want := []string{"The answer ", "is ", "42."}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("deltas=%q, want %q", got, want)
	}
}

func TestStreamPlainText(t *testing.T) {
	output := make(chan string, 3)
	output <- "Hel"
	output <- "lo"
	close(output)

	var buf bytes.Buffer
	if err := streamPlainText(&buf, output); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Hello\n" {
		t.Errorf("got %q", buf.String())
	}
}

func TestNewTransportSelection(t *testing.T) {
	cfg := &config.Config{Client: config.ClientConfig{URL: "http://127.0.0.1:8080", Transport: "http"}}

	_, label, err := newTransport(cfg, transportFlags{url: "http://relay:9000", ws: true})
	if err != nil {
		t.Fatalf("newTransport: %v", err)
	}
	if label != "http://relay:9000" {
		t.Errorf("label=%q", label)
	}
	if cfg.Client.URL != "http://127.0.0.1:8080" {
		t.Error("flags must not modify the loaded config")
	}

	cfg.Client.Transport = "carrier-pigeon"
	if _, _, err := newTransport(cfg, transportFlags{}); err == nil {
		t.Error("unknown transport accepted")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertContains(t, out, "streamchat version dev")
}

func TestResolvePort(t *testing.T) {
	if port, err := resolvePort([]string{"6060"}); err != nil || port != 6060 {
		t.Errorf("port=%d err=%v", port, err)
	}
	for _, arg := range []string{"abc", "0", "70000"} {
		if _, err := resolvePort([]string{arg}); err == nil {
			t.Errorf("resolvePort(%q) accepted", arg)
		}
	}
}

func TestPrintURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/debug/pprof/goroutine" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "goroutine profile: total 3")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	if err := printURL(&buf, srv.URL+"/debug/pprof/goroutine?debug=1"); err != nil {
		t.Fatal(err)
	}
	testutil.AssertContains(t, buf.String(), "total 3")

	if err := printURL(&buf, srv.URL+"/missing"); err == nil {
		t.Error("404 should be an error")
	}
	if got := profileURL(6060, "heap"); got != "http://127.0.0.1:6060/debug/pprof/heap" {
		t.Errorf("profileURL=%q", got)
	}
}
