package timeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"teambond/internal/domain"
)

// DefaultDedupWindow is the duplicate-suppression window.
const DefaultDedupWindow = time.Second

// Observer is notified after every accepted append, outside the lock.
type Observer func(domain.ChatMessage)

// Timeline is safe for concurrent use.
type Timeline struct {
	window time.Duration

	mu       sync.Mutex
	msgs     []domain.ChatMessage
	observer Observer
}

// New returns an empty timeline using window for deduplication; a
// non-positive window selects DefaultDedupWindow.
func New(window time.Duration) *Timeline {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Timeline{window: window}
}

// SetObserver installs fn, replacing any previous observer.
func (t *Timeline) SetObserver(fn Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = fn
}

// Append adds m unless it duplicates an existing entry. It reports whether
// m was added.
func (t *Timeline) Append(m domain.ChatMessage) bool {
	t.mu.Lock()
	if t.duplicateLocked(m) {
		t.mu.Unlock()
		return false
	}
	if m.LocalID == "" {
		m.LocalID = uuid.NewString()
	}
	t.msgs = append(t.msgs, m)
	obs := t.observer
	t.mu.Unlock()

	if obs != nil {
		obs(m)
	}
	return true
}

// AppendPending inserts an optimistic entry for our own send and returns
// its local ID for Confirm or Remove. Pending entries skip deduplication.
func (t *Timeline) AppendPending(m domain.ChatMessage) string {
	m.LocalID = uuid.NewString()
	m.Pending = true

	t.mu.Lock()
	t.msgs = append(t.msgs, m)
	obs := t.observer
	t.mu.Unlock()

	if obs != nil {
		obs(m)
	}
	return m.LocalID
}

// Confirm clears the pending flag of the entry with localID.
func (t *Timeline) Confirm(localID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.msgs {
		if t.msgs[i].LocalID == localID {
			t.msgs[i].Pending = false
			return true
		}
	}
	return false
}

// Remove deletes exactly the entry with localID. It reports whether one was
// found.
func (t *Timeline) Remove(localID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.msgs {
		if t.msgs[i].LocalID == localID {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the whole list for msgs, typically a decrypted history
// batch. Entries are taken as-is.
func (t *Timeline) Replace(msgs []domain.ChatMessage) {
	out := make([]domain.ChatMessage, len(msgs))
	copy(out, msgs)
	for i := range out {
		if out[i].LocalID == "" {
			out[i].LocalID = uuid.NewString()
		}
	}
	t.mu.Lock()
	t.msgs = out
	t.mu.Unlock()
}

// Reset empties the timeline.
func (t *Timeline) Reset() {
	t.mu.Lock()
	t.msgs = nil
	t.mu.Unlock()
}

// Snapshot returns a copy of the current entries.
func (t *Timeline) Snapshot() []domain.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.ChatMessage, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.msgs)
}

func (t *Timeline) duplicateLocked(m domain.ChatMessage) bool {
	for _, e := range t.msgs {
		if e.Sender != m.Sender || e.Content != m.Content {
			continue
		}
		d := e.Timestamp.Sub(m.Timestamp)
		if d < 0 {
			d = -d
		}
		if d < t.window {
			return true
		}
	}
	return false
}
