package llm

import (
	"context"
	"io"
)

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan Event
}

func newEventStream(ctx context.Context, run func(context.Context, chan<- Event) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		if err := run(streamCtx, ch); err != nil {
			_ = send(streamCtx, ch, Event{Type: EventError, Err: err})
		}
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, events: ch}
}

func (s *channelStream) Recv() (Event, error) {
	// Drain buffered events before checking ctx.Done() so a trailing
	// EventDone or EventError is never lost when both are ready.
	select {
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return Event{}, s.ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	}
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}

// send delivers an event unless the stream context is cancelled first.
func send(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case events <- ev:
		return nil
	}
}

// NextText reads the stream until the next text fragment. It returns io.EOF
// once the stream ends, and the provider error for EventError.
func NextText(s Stream) (string, error) {
	for {
		ev, err := s.Recv()
		if err != nil {
			return "", err
		}
		switch ev.Type {
		case EventTextDelta:
			if ev.Text == "" {
				continue
			}
			return ev.Text, nil
		case EventError:
			if ev.Err == nil {
				return "", errProviderFailed
			}
			return "", ev.Err
		case EventDone:
			return "", io.EOF
		}
	}
}
