// Package client implements the transports a conversation.Session sends
// through: the relay over plain HTTP, the relay over WebSocket, or a provider
// called in-process.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/samsaffron/streamchat/internal/conversation"
	"github.com/samsaffron/streamchat/internal/relay"
)

const readBufferSize = 32 * 1024

// HTTPTransport posts the conversation to the relay's chat route and reads
// the chunked reply body.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport targets the relay at baseURL, e.g. http://127.0.0.1:8080.
// A nil client uses a default one without a timeout.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"), client: client}
}

func (t *HTTPTransport) Open(ctx context.Context, turns []conversation.Turn) (conversation.ChunkReader, error) {
	payload, err := json.Marshal(relay.ChatRequest{Messages: turns})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+relay.ChatPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", relay.ChatPath, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	if resp.Body == nil {
		return nil, errors.New("no response body")
	}
	return &bodyReader{body: resp.Body, buf: make([]byte, readBufferSize)}, nil
}

// statusError turns a non-200 relay response into an error, using the
// {"error": ...} body when present.
func statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var body relay.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("relay returned %d", resp.StatusCode)
}

// bodyReader yields whatever each Read of the response body returns.
type bodyReader struct {
	body io.ReadCloser
	buf  []byte
	err  error
}

func (r *bodyReader) Next() ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	for {
		n, err := r.body.Read(r.buf)
		if err != nil {
			r.err = err
		}
		if n > 0 {
			return append([]byte(nil), r.buf[:n]...), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (r *bodyReader) Close() error {
	return r.body.Close()
}
