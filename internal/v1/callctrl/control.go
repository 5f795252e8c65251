// Package callctrl relays call lifecycle events between participants. The
// relay holds no call state: it does not ring-track, does not validate that
// an accept matches a pending initiate, and delivers events verbatim to the
// addressed peer. Call legality lives entirely in the clients.
package callctrl

import (
	"github.com/medibridge/telehealth/backend/go/internal/v1/presence"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
	"github.com/medibridge/telehealth/backend/go/internal/v1/types"
)

// Control translates call requests into their delivered counterparts.
type Control struct {
	registry *presence.Registry
	sender   types.Sender
}

func NewControl(registry *presence.Registry, sender types.Sender) *Control {
	return &Control{
		registry: registry,
		sender:   sender,
	}
}

// Initiate rings the recipient. Caller profile fields are resolved from the
// presence registry so the callee can render the ring screen without a
// roster lookup; an unjoined caller rings with an empty name.
func (c *Control) Initiate(callerID types.ConnectionID, req protocol.CallInitiateRequest) {
	incoming := protocol.IncomingCall{
		CallerID: string(callerID),
		Kind:     req.Kind,
	}
	if p, ok := c.registry.Get(callerID); ok {
		incoming.CallerName = p.DisplayName
		incoming.CallerAvatar = p.AvatarRef
	}
	c.sender.SendTo(types.ConnectionID(req.RecipientID), protocol.EventCallIncoming, incoming)
}

// Accept tells the caller the callee picked up.
func (c *Control) Accept(calleeID types.ConnectionID, req protocol.CallAnswerRequest) {
	c.answer(calleeID, req, protocol.EventCallAccepted)
}

// Reject tells the caller the callee declined.
func (c *Control) Reject(calleeID types.ConnectionID, req protocol.CallAnswerRequest) {
	c.answer(calleeID, req, protocol.EventCallRejected)
}

func (c *Control) answer(calleeID types.ConnectionID, req protocol.CallAnswerRequest, event protocol.EventType) {
	c.sender.SendTo(types.ConnectionID(req.CallerID), event, protocol.CallAnswered{
		RecipientID: string(calleeID),
	})
}

// End notifies the named peer that the call is over. A request without a
// recipient is dropped; there is no broadcast hang-up.
func (c *Control) End(enderID types.ConnectionID, req protocol.CallEndRequest) {
	if req.RecipientID == "" {
		return
	}
	c.sender.SendTo(types.ConnectionID(req.RecipientID), protocol.EventCallEnded, protocol.CallEnded{
		UserID: string(enderID),
	})
}
