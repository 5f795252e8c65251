// Package chat routes text messages and typing indicators between
// connected participants. Directed messages are delivered to both the
// recipient and the sender so every party renders from the same event;
// broadcast messages go to everyone including the sender.
package chat

import (
	"fmt"
	"sync"
	"time"

	"github.com/medibridge/telehealth/backend/go/internal/v1/presence"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
	"github.com/medibridge/telehealth/backend/go/internal/v1/types"
)

// Router stamps, enriches, and delivers chat traffic. It performs no
// validation of conversational state; whether a message "makes sense"
// is the client's concern.
type Router struct {
	registry *presence.Registry
	sender   types.Sender

	mu        sync.Mutex
	lastStamp int64
}

func NewRouter(registry *presence.Registry, sender types.Sender) *Router {
	return &Router{
		registry: registry,
		sender:   sender,
	}
}

// Send builds the canonical chat:deliver event for a chat:send request
// and routes it. The sender snapshot is resolved from the presence
// registry at delivery time; an unregistered sender still gets routed,
// just without profile enrichment.
func (r *Router) Send(senderID types.ConnectionID, req protocol.ChatSendRequest) {
	msg := protocol.ChatMessage{
		ID:          r.nextID(senderID),
		Content:     req.Content,
		RecipientID: req.RecipientID,
		SentAt:      time.Now().UTC(),
	}
	if p, ok := r.registry.Get(senderID); ok {
		msg.Sender = &p
	}

	if req.RecipientID != "" {
		// Deliver to the recipient and echo to the sender so both
		// transcripts carry the identical stamped event.
		r.sender.SendTo(types.ConnectionID(req.RecipientID), protocol.EventChatDeliver, msg)
		r.sender.SendTo(senderID, protocol.EventChatDeliver, msg)
		return
	}
	r.sender.Broadcast(protocol.EventChatDeliver, msg)
}

// Typing forwards a typing indicator. Indicators are never echoed back
// to their author: directed indicators reach only the recipient, and
// undirected ones reach everyone else.
func (r *Router) Typing(senderID types.ConnectionID, req protocol.TypingRequest) {
	evt := protocol.TypingEvent{
		ConnectionID: string(senderID),
		IsTyping:     req.IsTyping,
	}
	if p, ok := r.registry.Get(senderID); ok {
		evt.DisplayName = p.DisplayName
	}

	if req.RecipientID != "" {
		if types.ConnectionID(req.RecipientID) == senderID {
			return
		}
		r.sender.SendTo(types.ConnectionID(req.RecipientID), protocol.EventChatTyping, evt)
		return
	}
	// Every connection gets the indicator, joined or not, same as the
	// broadcast chat path.
	r.sender.BroadcastExcept(senderID, protocol.EventChatTyping, evt)
}

// nextID produces a message id unique per sender. Wall-clock nanos are
// monotonic enough in practice, but two sends inside the same tick must
// not collide, so the last stamp is bumped when the clock hasn't moved.
func (r *Router) nextID(senderID types.ConnectionID) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	stamp := time.Now().UnixNano()
	if stamp <= r.lastStamp {
		stamp = r.lastStamp + 1
	}
	r.lastStamp = stamp
	return fmt.Sprintf("%s-%d", senderID, stamp)
}
