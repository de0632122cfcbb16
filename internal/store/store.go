// Package store provides the key-value collaborators used to persist chat
// history between runs.
package store

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/samsaffron/streamchat/internal/config"
)

// Store is a string key-value store. Get reports ok=false for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Open returns the backend selected by cfg.Backend. An empty Path places the
// data under the streamchat data directory.
func Open(cfg config.HistoryConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			dir, err := config.GetDataDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "history.db")
		}
		return NewSQLiteStore(path)
	case "file":
		dir := cfg.Path
		if dir == "" {
			dataDir, err := config.GetDataDir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(dataDir, "history")
		}
		return NewFileStore(dir)
	case "memory":
		return NewMemoryStore(), nil
	case "none":
		return &NoopStore{}, nil
	}
	return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
}
