package store

import "context"

// NoopStore is used when history persistence is disabled.
// It silently discards all writes and reports every key as absent.
type NoopStore struct{}

func (s *NoopStore) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, nil
}

func (s *NoopStore) Set(ctx context.Context, key, value string) error {
	return nil
}

func (s *NoopStore) Close() error {
	return nil
}
