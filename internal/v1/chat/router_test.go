package chat

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibridge/telehealth/backend/go/internal/v1/presence"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
	"github.com/medibridge/telehealth/backend/go/internal/v1/types"
)

type delivery struct {
	target  types.ConnectionID
	exclude types.ConnectionID
	event   protocol.EventType
	payload any
}

// recordingSender captures deliveries instead of hitting real
// connections. Broadcasts are recorded with an empty target.
type recordingSender struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (s *recordingSender) SendTo(target types.ConnectionID, event protocol.EventType, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, delivery{target: target, event: event, payload: payload})
	return true
}

func (s *recordingSender) Broadcast(event protocol.EventType, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, delivery{event: event, payload: payload})
}

func (s *recordingSender) BroadcastExcept(exclude types.ConnectionID, event protocol.EventType, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, delivery{exclude: exclude, event: event, payload: payload})
}

func (s *recordingSender) all() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]delivery, len(s.deliveries))
	copy(out, s.deliveries)
	return out
}

func newTestRouter(t *testing.T) (*Router, *presence.Registry, *recordingSender) {
	t.Helper()
	reg := presence.NewRegistry()
	sender := &recordingSender{}
	return NewRouter(reg, sender), reg, sender
}

func TestSend_DirectedDeliversToBothParties(t *testing.T) {
	router, reg, sender := newTestRouter(t)
	reg.Join("alice", protocol.JoinRequest{DisplayName: "Alice"})
	reg.Join("bob", protocol.JoinRequest{DisplayName: "Bob"})

	router.Send("alice", protocol.ChatSendRequest{Content: "hi", RecipientID: "bob"})

	got := sender.all()
	require.Len(t, got, 2)
	assert.Equal(t, types.ConnectionID("bob"), got[0].target)
	assert.Equal(t, types.ConnectionID("alice"), got[1].target)

	// Both parties receive the identical stamped message.
	first := got[0].payload.(protocol.ChatMessage)
	second := got[1].payload.(protocol.ChatMessage)
	assert.Equal(t, first, second)
	assert.Equal(t, "hi", first.Content)
	assert.Equal(t, "bob", first.RecipientID)
	require.NotNil(t, first.Sender)
	assert.Equal(t, "Alice", first.Sender.DisplayName)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.SentAt.IsZero())
}

func TestSend_BroadcastWhenNoRecipient(t *testing.T) {
	router, reg, sender := newTestRouter(t)
	reg.Join("alice", protocol.JoinRequest{DisplayName: "Alice"})

	router.Send("alice", protocol.ChatSendRequest{Content: "hello all"})

	got := sender.all()
	require.Len(t, got, 1)
	assert.Equal(t, types.ConnectionID(""), got[0].target, "expected a broadcast")
	assert.Equal(t, protocol.EventChatDeliver, got[0].event)
}

func TestSend_UnknownSenderStillRouted(t *testing.T) {
	router, _, sender := newTestRouter(t)

	router.Send("ghost", protocol.ChatSendRequest{Content: "boo", RecipientID: "bob"})

	got := sender.all()
	require.Len(t, got, 2)
	msg := got[0].payload.(protocol.ChatMessage)
	assert.Nil(t, msg.Sender)
	assert.Equal(t, "boo", msg.Content)
}

func TestSend_MessageIDsUnique(t *testing.T) {
	router, _, sender := newTestRouter(t)

	for i := 0; i < 100; i++ {
		router.Send("alice", protocol.ChatSendRequest{Content: "x"})
	}

	seen := make(map[string]bool)
	for _, d := range sender.all() {
		id := d.payload.(protocol.ChatMessage).ID
		assert.False(t, seen[id], "duplicate message id %s", id)
		seen[id] = true
	}
}

func TestTyping_DirectedNeverEchoedToSender(t *testing.T) {
	router, reg, sender := newTestRouter(t)
	reg.Join("alice", protocol.JoinRequest{DisplayName: "Alice"})
	reg.Join("bob", protocol.JoinRequest{DisplayName: "Bob"})

	router.Typing("alice", protocol.TypingRequest{IsTyping: true, RecipientID: "bob"})

	got := sender.all()
	require.Len(t, got, 1)
	assert.Equal(t, types.ConnectionID("bob"), got[0].target)
	evt := got[0].payload.(protocol.TypingEvent)
	assert.Equal(t, "alice", evt.ConnectionID)
	assert.Equal(t, "Alice", evt.DisplayName)
	assert.True(t, evt.IsTyping)
}

func TestTyping_SelfDirectedDropped(t *testing.T) {
	router, reg, sender := newTestRouter(t)
	reg.Join("alice", protocol.JoinRequest{DisplayName: "Alice"})

	router.Typing("alice", protocol.TypingRequest{IsTyping: true, RecipientID: "alice"})

	assert.Empty(t, sender.all())
}

func TestTyping_UndirectedBroadcastsToAllButSender(t *testing.T) {
	router, reg, sender := newTestRouter(t)
	reg.Join("alice", protocol.JoinRequest{DisplayName: "Alice"})
	reg.Join("bob", protocol.JoinRequest{DisplayName: "Bob"})

	router.Typing("alice", protocol.TypingRequest{IsTyping: true})

	// One fan-out over the whole connection set, not a per-roster-entry
	// delivery: connections that never joined still get the indicator.
	got := sender.all()
	require.Len(t, got, 1)
	assert.Equal(t, types.ConnectionID(""), got[0].target)
	assert.Equal(t, types.ConnectionID("alice"), got[0].exclude)
	assert.Equal(t, protocol.EventChatTyping, got[0].event)

	evt := got[0].payload.(protocol.TypingEvent)
	assert.Equal(t, "alice", evt.ConnectionID)
	assert.True(t, evt.IsTyping)
}
