package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn represents a single response from the mock provider.
type MockTurn struct {
	Text      string        // Text to emit, chunked for realistic streaming
	Fragments []string      // Exact fragments to emit; takes precedence over Text
	Usage     Usage         // Token usage to report
	Delay     time.Duration // Optional delay before responding
	Error     error         // Fail before emitting anything
	MidError  error         // Fail after all fragments were emitted, instead of finishing
	OpenError error         // Returned by Stream itself
	Hold      chan struct{} // When set, wait for it to close before finishing
}

// MockProvider is a configurable provider for testing.
// It returns scripted responses and records all requests for verification.
type MockProvider struct {
	name      string
	turns     []MockTurn
	turnIndex int
	Requests  []Request // Recorded requests for verification
	mu        sync.Mutex
}

// NewMockProvider creates a new mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return m.name
}

// AddTurn adds a response turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse is a convenience method to add a simple text response.
func (m *MockProvider) AddTextResponse(text string) *MockProvider {
	return m.AddTurn(MockTurn{Text: text})
}

// AddFragments adds a response emitted as exactly the given fragments.
func (m *MockProvider) AddFragments(fragments ...string) *MockProvider {
	return m.AddTurn(MockTurn{Fragments: fragments})
}

// AddError adds a turn that fails before any fragment is emitted.
func (m *MockProvider) AddError(err error) *MockProvider {
	return m.AddTurn(MockTurn{Error: err})
}

// LastRequest returns the most recent recorded request.
func (m *MockProvider) LastRequest() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return Request{}, false
	}
	return m.Requests[len(m.Requests)-1], true
}

// CurrentTurn returns the current turn index (0-based).
func (m *MockProvider) CurrentTurn() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turnIndex
}

// Stream implements the Provider interface.
func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)

	if m.turnIndex >= len(m.turns) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}

	turn := m.turns[m.turnIndex]
	m.turnIndex++
	m.mu.Unlock()

	if turn.OpenError != nil {
		return nil, turn.OpenError
	}

	return newEventStream(ctx, func(ctx context.Context, ch chan<- Event) error {
		if turn.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(turn.Delay):
			}
		}

		if turn.Error != nil {
			return turn.Error
		}

		fragments := turn.Fragments
		if fragments == nil {
			fragments = chunkText(turn.Text, 10)
		}
		for _, fragment := range fragments {
			if err := send(ctx, ch, Event{Type: EventTextDelta, Text: fragment}); err != nil {
				return err
			}
		}

		if turn.Hold != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-turn.Hold:
			}
		}

		if turn.MidError != nil {
			return turn.MidError
		}

		use := turn.Usage
		if err := send(ctx, ch, Event{Type: EventUsage, Use: &use}); err != nil {
			return err
		}
		return send(ctx, ch, Event{Type: EventDone})
	}), nil
}

// chunkText splits text into chunks of approximately the given size.
// It tries to break at word boundaries when possible.
func chunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= chunkSize {
			chunks = append(chunks, text)
			break
		}

		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i] == ' ' {
				breakPoint = i + 1 // keep the space with the current chunk
				break
			}
		}

		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	return chunks
}
