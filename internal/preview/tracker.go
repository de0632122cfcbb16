package preview

import (
	"sync"

	"github.com/samsaffron/streamchat/internal/conversation"
)

// Tracker remembers which turn, if any, has its preview open. At most one
// preview is open across the whole conversation.
type Tracker struct {
	mu   sync.Mutex
	open int
}

// NewTracker returns a tracker with no preview open.
func NewTracker() *Tracker {
	return &Tracker{open: -1}
}

// Eligible reports whether turn i can show a preview: it must be a committed
// assistant turn containing previewable code.
func Eligible(turns []conversation.Turn, i int) bool {
	if i < 0 || i >= len(turns) || turns[i].Role != conversation.RoleAssistant {
		return false
	}
	_, ok := ExtractCode(turns[i].Content)
	return ok
}

// Toggle opens the preview of turn i, closing any other, or closes it when
// it is already open. It reports whether i is open afterwards. Ineligible
// turns are never opened.
func (t *Tracker) Toggle(turns []conversation.Turn, i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == i {
		t.open = -1
		return false
	}
	if !Eligible(turns, i) {
		return false
	}
	t.open = i
	return true
}

// Open returns the index of the open preview.
func (t *Tracker) Open() (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open, t.open >= 0
}

// IsOpen reports whether turn i has its preview open.
func (t *Tracker) IsOpen(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open == i
}

// Close closes any open preview.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = -1
}

// Sync closes the open preview if its turn no longer exists, e.g. after the
// conversation was cleared.
func (t *Tracker) Sync(turns []conversation.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open >= len(turns) {
		t.open = -1
	}
}

// LatestEligible returns the index of the most recent assistant turn with
// previewable code.
func LatestEligible(turns []conversation.Turn) (int, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if Eligible(turns, i) {
			return i, true
		}
	}
	return -1, false
}
