package sigclient

import (
	"sync"
	"time"

	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
)

// typingExpiry is how long a typing indicator stays live without a
// refresh. The stopped-typing event is best effort, so receivers age
// indicators out on their own.
const typingExpiry = 3 * time.Second

// TypingTracker keeps the set of peers currently typing. Observe feeds it
// typing events; Typing answers whether a peer's indicator is still live.
type TypingTracker struct {
	mu      sync.Mutex
	expiry  time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		expiry:  typingExpiry,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// Observe records a typing event. A start refreshes the deadline, a stop
// clears the indicator immediately.
func (t *TypingTracker) Observe(ev protocol.TypingEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.IsTyping {
		t.entries[ev.ConnectionID] = t.now().Add(t.expiry)
	} else {
		delete(t.entries, ev.ConnectionID)
	}
}

// Typing reports whether connectionID has a live typing indicator.
func (t *TypingTracker) Typing(connectionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.entries[connectionID]
	if !ok {
		return false
	}
	if t.now().After(deadline) {
		delete(t.entries, connectionID)
		return false
	}
	return true
}

// Active returns the ids of all peers with a live indicator.
func (t *TypingTracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var ids []string
	for id, deadline := range t.entries {
		if now.After(deadline) {
			delete(t.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
