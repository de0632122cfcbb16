// Package pprof runs a localhost-only net/http/pprof server next to the
// relay and records its port so `streamchat pprof` can find it.
package pprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const appName = "streamchat"

// Server wraps the net/http/pprof handlers on a dedicated listener.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	logger   *slog.Logger
}

// NewServer creates a pprof Server. A nil logger uses slog.Default.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger}
}

// Start binds to 127.0.0.1 on port (0 picks a free one) and serves in the
// background. It returns the bound port.
func (s *Server) Start(port int) (int, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("bind to %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	// dedicated mux; http.DefaultServeMux may carry other handlers
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("pprof server stopped", "error", err)
		}
	}()

	if err := writePortFile(s.port); err != nil {
		s.logger.Warn("could not write pprof port file", "error", err)
	}
	return s.port, nil
}

// Port returns the port the server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Stop removes the port file and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	removePortFile()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, port int) error {
	bound, err := s.Start(port)
	if err != nil {
		return err
	}
	s.logger.Info("pprof server listening", "addr", fmt.Sprintf("http://127.0.0.1:%d/debug/pprof/", bound))

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// PrintUsage prints helpful pprof commands to the given writer.
func PrintUsage(w io.Writer, port int) {
	fmt.Fprintf(w, "\npprof server: http://127.0.0.1:%d\n\n", port)
	fmt.Fprintf(w, "Quick commands (from another terminal):\n")
	fmt.Fprintf(w, "  %s pprof cpu       # 30 second CPU profile\n", appName)
	fmt.Fprintf(w, "  %s pprof heap      # memory allocation profile\n", appName)
	fmt.Fprintf(w, "  %s pprof goroutine # goroutine stack dump\n\n", appName)
}

// GetCacheDir returns $XDG_CACHE_HOME/streamchat, falling back to ~/.cache.
func GetCacheDir() (string, error) {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".cache", appName), nil
}

func portFilePath() (string, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "pprof.port"), nil
}

func writePortFile(port int) error {
	path, err := portFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(port)), 0600)
}

func removePortFile() {
	path, err := portFilePath()
	if err != nil {
		return
	}
	os.Remove(path)
}

// ReadPortFile returns the port recorded by a running server.
func ReadPortFile() (int, error) {
	path, err := portFilePath()
	if err != nil {
		return 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("no pprof server running (port file not found)")
	}

	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid port file: %w", err)
	}
	return port, nil
}

// IsServerRunning reports the recorded port if something is listening on it.
func IsServerRunning() (int, bool) {
	port, err := ReadPortFile()
	if err != nil {
		return 0, false
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return 0, false
	}
	conn.Close()
	return port, true
}
