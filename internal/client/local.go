package client

import (
	"context"

	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/llm"
	"github.com/samsaffron/streamchat/internal/relay"
)

// LocalTransport calls a provider directly, building the same upstream
// request the relay would.
type LocalTransport struct {
	provider llm.Provider
	opts     relay.Options
}

func NewLocalTransport(provider llm.Provider, opts relay.Options) *LocalTransport {
	return &LocalTransport{provider: provider, opts: opts}
}

func (t *LocalTransport) Open(ctx context.Context, turns []conversation.Turn) (conversation.ChunkReader, error) {
	stream, err := t.provider.Stream(ctx, relay.BuildRequest(t.opts, turns))
	if err != nil {
		return nil, err
	}
	return &streamReader{stream: stream}, nil
}

type streamReader struct {
	stream llm.Stream
}

func (r *streamReader) Next() ([]byte, error) {
	text, err := llm.NextText(r.stream)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (r *streamReader) Close() error {
	return r.stream.Close()
}
