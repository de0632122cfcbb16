package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samsaffron/streamchat/internal/llm"
	pprofserver "github.com/samsaffron/streamchat/internal/pprof"
	"github.com/samsaffron/streamchat/internal/relay"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr      string
	serveProvider  string
	servePprofPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat relay",
	Long: `Run the HTTP relay that forwards conversations to the configured provider
and streams replies back as a chunked text/plain body.

Routes:
  POST /api/chat      {"messages":[{"role":"user","content":"..."}]}
  GET  /api/chat/ws   WebSocket variant of the same stream
  GET  /healthz       provider and model in use

Examples:
  streamchat serve
  streamchat serve --addr 0.0.0.0:9000
  streamchat serve --provider anthropic:claude-sonnet-4-5
  streamchat serve --pprof-port 0`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "Override provider, optionally with model (e.g., openai:gpt-4o)")
	serveCmd.Flags().IntVar(&servePprofPort, "pprof-port", -1, "Serve pprof on 127.0.0.1 at this port (0 picks one)")
	registerProviderCompletion(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := setupLogging(cfg, os.Stderr); err != nil {
		return err
	}
	if err := applyProviderOverrides(cfg, serveProvider); err != nil {
		return err
	}

	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return err
	}
	handler, err := relay.NewHandler(provider, relayOptions(cfg))
	if err != nil {
		return err
	}

	addr := cfg.Relay.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	pprofPort := cfg.Relay.PprofPort
	if cmd.Flags().Changed("pprof-port") {
		pprofPort = servePprofPort
	} else if pprofPort == 0 {
		pprofPort = -1
	}

	server := relay.NewServer(handler.Routes())
	if err := server.Listen(addr); err != nil {
		return err
	}
	slog.Info("relay listening", "addr", server.Addr().String(), "provider", provider.Name())
	fmt.Fprintf(cmd.ErrOrStderr(), "Relay listening on http://%s\n", server.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, shutdownTimeout)
	})
	if pprofPort >= 0 {
		g.Go(func() error {
			return pprofserver.NewServer(slog.Default()).Run(ctx, pprofPort)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("relay stopped: %w", err)
	}
	slog.Info("relay stopped")
	return nil
}
