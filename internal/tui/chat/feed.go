package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/samsaffron/streamchat/internal/conversation"
)

// snapshotMsg carries one session change into the program.
type snapshotMsg conversation.Snapshot

// Feed is a conversation.Observer that forwards every change to the
// bubbletea program in order.
type Feed struct {
	ch       chan conversation.Snapshot
	done     chan struct{}
	stopOnce sync.Once
}

func NewFeed() *Feed {
	return &Feed{
		ch:   make(chan conversation.Snapshot, 256),
		done: make(chan struct{}),
	}
}

// OnChange blocks until the program has room for the snapshot, or the feed
// is stopped.
func (f *Feed) OnChange(s conversation.Snapshot) {
	select {
	case f.ch <- s:
	case <-f.done:
	}
}

// Stop releases any sender blocked in OnChange.
func (f *Feed) Stop() {
	f.stopOnce.Do(func() { close(f.done) })
}

// listen waits for the next snapshot.
func (f *Feed) listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-f.ch:
			return snapshotMsg(s)
		case <-f.done:
			return nil
		}
	}
}
