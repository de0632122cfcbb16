package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/samsaffron/streamchat/internal/store"
)

// DefaultKey is the store key the conversation is persisted under.
const DefaultKey = "chat-history"

var (
	// ErrEmptyInput is returned by Send for blank or whitespace-only input.
	ErrEmptyInput = errors.New("empty input")
	// ErrBusy is returned by Send while another send is in flight.
	ErrBusy = errors.New("a reply is still streaming")
	// ErrStreamFailed wraps transport and read errors. Nothing is committed
	// when it is returned.
	ErrStreamFailed = errors.New("stream failed")
)

// State is the position of a Session in its send cycle.
type State int

const (
	Idle State = iota
	Sending
	Streaming
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Committing:
		return "committing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transport opens a streamed reply for the given turns.
type Transport interface {
	Open(ctx context.Context, turns []Turn) (ChunkReader, error)
}

// ChunkReader yields raw reply bytes as they arrive. Next returns io.EOF
// once the reply is complete.
type ChunkReader interface {
	Next() ([]byte, error)
	Close() error
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	State  State
	Turns  []Turn
	Buffer string
	Err    error // set only on the notification that reports a failed send
}

// Observer is notified after every change to a session.
type Observer interface {
	OnChange(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnChange(s Snapshot) { f(s) }

// Option configures a Session.
type Option func(*Session)

func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithKey overrides the store key.
func WithKey(key string) Option {
	return func(s *Session) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session owns a Conversation and drives one send at a time through a
// Transport, persisting the conversation after every mutation.
type Session struct {
	mu        sync.Mutex
	state     State
	conv      Conversation
	buffer    strings.Builder
	transport Transport
	store     store.Store
	key       string
	observer  Observer
	logger    *slog.Logger
}

// NewSession creates an idle session with an empty conversation. A nil
// store disables persistence.
func NewSession(t Transport, st store.Store, opts ...Option) *Session {
	if st == nil {
		st = &store.NoopStore{}
	}
	s := &Session{
		transport: t,
		store:     st,
		key:       DefaultKey,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the conversation with the persisted one. Missing, unreadable
// or malformed data leaves the conversation empty.
func (s *Session) Load(ctx context.Context) {
	s.mu.Lock()
	s.conv = Conversation{}
	raw, ok, err := s.store.Get(ctx, s.key)
	switch {
	case err != nil:
		s.logger.Warn("failed to read chat history", "key", s.key, "error", err)
	case ok:
		conv, err := Decode(raw)
		if err != nil {
			s.logger.Warn("ignoring malformed chat history", "key", s.key, "error", err)
		} else {
			s.conv = conv
		}
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Send appends input as a user turn and streams the assistant reply into
// the buffer, committing it as one assistant turn when the stream ends.
// It blocks until the reply is committed or the stream fails.
func (s *Session) Send(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrEmptyInput
	}

	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state = Sending
	s.conv.Append(Turn{Role: RoleUser, Content: input})
	s.buffer.Reset()
	s.persistLocked(ctx)
	turns := s.conv.Turns()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	reader, err := s.transport.Open(ctx, turns)
	if err != nil {
		return s.fail(err)
	}
	defer reader.Close()

	var dec Decoder
	for {
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return s.fail(err)
		}
		s.appendText(dec.Decode(chunk))
	}
	if tail := dec.Flush(); tail != "" {
		s.appendText(tail)
	}

	s.mu.Lock()
	s.state = Committing
	s.conv.Append(Turn{Role: RoleAssistant, Content: s.buffer.String()})
	s.buffer.Reset()
	s.persistLocked(ctx)
	s.state = Idle
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return nil
}

func (s *Session) appendText(text string) {
	s.mu.Lock()
	if text == "" && s.state == Streaming {
		s.mu.Unlock()
		return
	}
	s.state = Streaming
	s.buffer.WriteString(text)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) fail(cause error) error {
	err := fmt.Errorf("%w: %w", ErrStreamFailed, cause)
	s.logger.Warn("stream failed", "error", cause)

	s.mu.Lock()
	s.buffer.Reset()
	s.state = Idle
	snap := s.snapshotLocked()
	s.mu.Unlock()
	snap.Err = err
	s.notify(snap)
	return err
}

// Clear empties the conversation and persists the result. Clearing an
// empty conversation does nothing. A reply still streaming is committed to
// the cleared conversation.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	if s.conv.Len() == 0 {
		s.mu.Unlock()
		return nil
	}
	s.conv.Clear()
	err := s.persistLocked(ctx)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
	return err
}

func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Turns()
}

// Buffer returns the in-flight reply text, empty when idle.
func (s *Session) Buffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffer.String()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Conversation returns a copy of the current conversation.
func (s *Session) Conversation() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return New(s.conv.turns...)
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:  s.state,
		Turns:  s.conv.Turns(),
		Buffer: s.buffer.String(),
	}
}

// persistLocked writes the whole conversation. Failures are logged and
// returned but never roll back the in-memory state.
func (s *Session) persistLocked(ctx context.Context) error {
	data, err := s.conv.Encode()
	if err == nil {
		err = s.store.Set(context.WithoutCancel(ctx), s.key, data)
	}
	if err != nil {
		s.logger.Warn("failed to persist chat history", "key", s.key, "error", err)
	}
	return err
}

func (s *Session) notify(snap Snapshot) {
	if s.observer != nil {
		s.observer.OnChange(snap)
	}
}
