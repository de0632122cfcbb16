package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/samsaffron/streamchat/internal/client"
	"github.com/samsaffron/streamchat/internal/config"
	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/llm"
	"github.com/samsaffron/streamchat/internal/logging"
	"github.com/samsaffron/streamchat/internal/relay"
	"github.com/samsaffron/streamchat/internal/store"
)

var (
	configPath string
	logLevel   string
	logCloser  io.Closer
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setupLogging installs the configured logger. Without a log file, records
// go to fallback.
func setupLogging(cfg *config.Config, fallback io.Writer) error {
	closer, err := logging.Setup(cfg.Log, fallback)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logCloser = closer
	return nil
}

func closeLogging() {
	if logCloser != nil {
		logCloser.Close()
		logCloser = nil
	}
}

func applyProviderOverrides(cfg *config.Config, providerFlag string) error {
	if providerFlag == "" {
		return nil
	}
	provider, model, err := llm.ParseProviderModel(providerFlag, cfg)
	if err != nil {
		return err
	}
	cfg.ApplyOverrides(provider, model)
	return nil
}

func relayOptions(cfg *config.Config) relay.Options {
	_, pc := cfg.ActiveProvider()
	return relay.Options{
		SystemPrompt:   cfg.Relay.SystemPrompt,
		ProviderType:   string(pc.Type),
		Model:          pc.Model,
		Temperature:    cfg.Relay.Temperature,
		MaxTokens:      cfg.Relay.MaxTokens,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		Logger:         slog.Default(),
	}
}

// transportFlags selects how a client reaches the model.
type transportFlags struct {
	url      string
	ws       bool
	local    bool
	provider string
}

// newTransport returns the transport chosen by flags and a short label
// describing where replies come from.
func newTransport(cfg *config.Config, flags transportFlags) (conversation.Transport, string, error) {
	if flags.local {
		if err := applyProviderOverrides(cfg, flags.provider); err != nil {
			return nil, "", err
		}
		provider, err := llm.NewProvider(cfg)
		if err != nil {
			return nil, "", err
		}
		return client.NewLocalTransport(provider, relayOptions(cfg)), provider.Name(), nil
	}

	cc := cfg.Client
	if flags.url != "" {
		cc.URL = flags.url
	}
	if flags.ws {
		cc.Transport = "ws"
	}
	t, err := client.New(cc)
	if err != nil {
		return nil, "", err
	}
	return t, cc.URL, nil
}

// openSession opens the history store and loads the saved conversation.
// The caller closes the returned store.
func openSession(ctx context.Context, cfg *config.Config, t conversation.Transport, opts ...conversation.Option) (*conversation.Session, store.Store, error) {
	st, err := store.Open(cfg.History)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	opts = append([]conversation.Option{
		conversation.WithKey(cfg.History.Key),
		conversation.WithLogger(slog.Default()),
	}, opts...)
	session := conversation.NewSession(t, st, opts...)
	session.Load(ctx)
	return session, st, nil
}
