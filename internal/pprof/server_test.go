package pprof

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func quietServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	return NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestServerStartStop(t *testing.T) {
	srv := quietServer(t)

	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if port == 0 {
		t.Fatal("Start() returned port 0")
	}
	if got := srv.Port(); got != port {
		t.Errorf("Port() = %d, want %d", got, port)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/debug/pprof/", port))
	if err != nil {
		t.Fatalf("GET /debug/pprof/ error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /debug/pprof/ status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := quietServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, 0) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, running := IsServerRunning(); running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("server never became reachable")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if _, err := ReadPortFile(); err == nil {
		t.Error("port file left behind after Run returned")
	}
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	PrintUsage(&buf, 12345)

	expected := []string{
		"http://127.0.0.1:12345",
		"streamchat pprof cpu",
		"streamchat pprof heap",
		"streamchat pprof goroutine",
	}
	for _, want := range expected {
		if !bytes.Contains(buf.Bytes(), []byte(want)) {
			t.Errorf("PrintUsage() output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestPortFileWriteRead(t *testing.T) {
	srv := quietServer(t)
	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	readPort, err := ReadPortFile()
	if err != nil {
		t.Fatalf("ReadPortFile() error: %v", err)
	}
	if readPort != port {
		t.Errorf("ReadPortFile() = %d, want %d", readPort, port)
	}

	runningPort, running := IsServerRunning()
	if !running || runningPort != port {
		t.Errorf("IsServerRunning() = %d, %v; want %d, true", runningPort, running, port)
	}

	srv.Stop(context.Background())

	if _, err := ReadPortFile(); err == nil {
		t.Error("ReadPortFile() should error after Stop()")
	}
}

func TestIsServerRunningStalePortFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", tmpDir)

	portPath := filepath.Join(tmpDir, "streamchat", "pprof.port")
	if err := os.MkdirAll(filepath.Dir(portPath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(portPath, []byte("65432\n"), 0600); err != nil {
		t.Fatal(err)
	}

	port, running := IsServerRunning()
	if running || port != 0 {
		t.Errorf("IsServerRunning() = %d, %v; want 0, false", port, running)
	}
}

func TestGetCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/custom/cache")
	dir, err := GetCacheDir()
	if err != nil {
		t.Fatalf("GetCacheDir() error: %v", err)
	}
	if dir != "/custom/cache/streamchat" {
		t.Errorf("GetCacheDir() = %q, want %q", dir, "/custom/cache/streamchat")
	}

	t.Setenv("XDG_CACHE_HOME", "")
	dir, err = GetCacheDir()
	if err != nil {
		t.Fatalf("GetCacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", "streamchat"); dir != want {
		t.Errorf("GetCacheDir() = %q, want %q", dir, want)
	}
}

func TestPprofEndpoints(t *testing.T) {
	srv := quietServer(t)
	port, err := srv.Start(0)
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer srv.Stop(context.Background())

	endpoints := []string{
		"/debug/pprof/",
		"/debug/pprof/heap",
		"/debug/pprof/goroutine",
		"/debug/pprof/allocs",
		"/debug/pprof/cmdline",
	}

	for _, ep := range endpoints {
		t.Run(ep, func(t *testing.T) {
			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s", port, ep))
			if err != nil {
				t.Fatalf("GET %s error: %v", ep, err)
			}
			defer resp.Body.Close()
			if _, err := io.ReadAll(resp.Body); err != nil {
				t.Fatalf("reading response error: %v", err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("GET %s status = %d, want 200", ep, resp.StatusCode)
			}
		})
	}
}
