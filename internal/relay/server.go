package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Server runs the relay routes on a TCP listener.
type Server struct {
	server   *http.Server
	listener net.Listener
}

// NewServer wraps handler in an http.Server. Only header reads are bounded
// in time; a reply may stream for as long as the provider keeps sending.
func NewServer(handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Listen binds addr. Use port 0 for a random available port.
func (s *Server) Listen(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bind to %s: %w", addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve blocks until ctx is cancelled, then shuts down gracefully, giving
// in-flight streams up to shutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	if s.listener == nil {
		return errors.New("relay server is not listening")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("shutdown relay: %w", err)
	}
	return nil
}
