package sigclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
)

func typingStart(id string) protocol.TypingEvent {
	return protocol.TypingEvent{ConnectionID: id, IsTyping: true}
}

func typingStop(id string) protocol.TypingEvent {
	return protocol.TypingEvent{ConnectionID: id, IsTyping: false}
}

func newTrackerAt(start time.Time) (*TypingTracker, *time.Time) {
	clock := start
	tracker := NewTypingTracker()
	tracker.now = func() time.Time { return clock }
	return tracker, &clock
}

func TestTypingTracker_StartAndStop(t *testing.T) {
	tracker, _ := newTrackerAt(time.Unix(1000, 0))

	tracker.Observe(typingStart("conn-1"))
	assert.True(t, tracker.Typing("conn-1"))
	assert.False(t, tracker.Typing("conn-2"))

	tracker.Observe(typingStop("conn-1"))
	assert.False(t, tracker.Typing("conn-1"))
}

func TestTypingTracker_ExpiresWithoutStop(t *testing.T) {
	tracker, clock := newTrackerAt(time.Unix(1000, 0))

	tracker.Observe(typingStart("conn-1"))
	*clock = clock.Add(typingExpiry - time.Millisecond)
	assert.True(t, tracker.Typing("conn-1"))

	*clock = clock.Add(2 * time.Millisecond)
	assert.False(t, tracker.Typing("conn-1"), "indicator must age out without a stop event")
}

func TestTypingTracker_RefreshExtendsDeadline(t *testing.T) {
	tracker, clock := newTrackerAt(time.Unix(1000, 0))

	tracker.Observe(typingStart("conn-1"))
	*clock = clock.Add(2 * time.Second)
	tracker.Observe(typingStart("conn-1"))
	*clock = clock.Add(2 * time.Second)

	assert.True(t, tracker.Typing("conn-1"), "refresh must restart the expiry window")
}

func TestTypingTracker_ActiveDropsExpired(t *testing.T) {
	tracker, clock := newTrackerAt(time.Unix(1000, 0))

	tracker.Observe(typingStart("conn-1"))
	*clock = clock.Add(2 * time.Second)
	tracker.Observe(typingStart("conn-2"))
	*clock = clock.Add(2 * time.Second)

	active := tracker.Active()
	assert.Equal(t, []string{"conn-2"}, active)
}
