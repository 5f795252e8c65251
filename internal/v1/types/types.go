// Package types holds the shared identifiers and interfaces that decouple the
// relay's business packages (presence, chat, callctrl, negotiate) from the
// WebSocket transport.
package types

import (
	"context"

	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
)

// ConnectionID uniquely identifies one WebSocket connection. Assigned by the
// relay at upgrade time; a reconnect gets a fresh id.
type ConnectionID string

// Sender delivers already-typed events to connections. The relay hub is the
// production implementation; tests substitute recorders.
type Sender interface {
	// SendTo delivers one event to a single connection. Returns false when the
	// connection is unknown to this instance (it may still be delivered via
	// the bus by the implementation).
	SendTo(id ConnectionID, event protocol.EventType, payload any) bool

	// Broadcast delivers one event to every connected participant, including
	// the origin connection.
	Broadcast(event protocol.EventType, payload any)

	// BroadcastExcept delivers one event to every connected participant
	// except the named connection. Reaches connections that have not
	// joined the roster.
	BroadcastExcept(exclude ConnectionID, event protocol.EventType, payload any)
}

// ClientInterface is the behavior the relay needs from a connected client.
type ClientInterface interface {
	GetID() ConnectionID
	Send(env protocol.Envelope)
	Disconnect()
}

// BusService is the optional cross-instance fan-out used when the relay runs
// as more than one replica. Envelope payloads pass through opaque.
type BusService interface {
	// PublishDirect forwards an envelope to whichever instance holds the
	// target connection.
	PublishDirect(ctx context.Context, target string, env protocol.Envelope, originInstance string) error

	// PublishLobby forwards a broadcast envelope to all other instances.
	PublishLobby(ctx context.Context, env protocol.Envelope, originInstance string) error

	// SubscribeDirect listens for envelopes addressed to one connection.
	SubscribeDirect(ctx context.Context, target string, handler func(protocol.Envelope))

	// SubscribeLobby listens for broadcast envelopes from other instances.
	SubscribeLobby(ctx context.Context, originInstance string, handler func(protocol.Envelope))

	Ping(ctx context.Context) error
	Close() error
}
