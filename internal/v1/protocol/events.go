// Package protocol defines the JSON wire surface shared by the relay and its
// clients. Every message travelling over the WebSocket is an Envelope whose
// Payload is decoded lazily based on the Event name.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a relay event. The constants below are the complete surface;
// anything else is dropped by the router.
type EventType string

// Client → relay events.
const (
	EventJoin               EventType = "join"
	EventChatSend           EventType = "chat:send"
	EventChatTyping         EventType = "chat:typing"
	EventCallInitiate       EventType = "call:initiate"
	EventCallAccept         EventType = "call:accept"
	EventCallReject         EventType = "call:reject"
	EventCallEnd            EventType = "call:end"
	EventNegotiateOffer     EventType = "negotiate:offer"
	EventNegotiateAnswer    EventType = "negotiate:answer"
	EventNegotiateCandidate EventType = "negotiate:candidate"
	EventMediaToggleVideo   EventType = "media:toggle-video"
	EventMediaToggleAudio   EventType = "media:toggle-audio"
	EventScreenStart        EventType = "screen:start"
	EventScreenStop         EventType = "screen:stop"
)

// Relay → client events. Offer/answer/candidate keep their inbound names; the
// relay rewrites the payload shape and stamps senderId.
const (
	EventRosterUpdate    EventType = "roster:update"
	EventParticipantLeft EventType = "participant:left"
	EventChatDeliver     EventType = "chat:deliver"
	EventCallIncoming    EventType = "call:incoming"
	EventCallAccepted    EventType = "call:accepted"
	EventCallRejected    EventType = "call:rejected"
	EventCallEnded       EventType = "call:ended"
	EventPeerVideoToggle EventType = "media:peer-video-toggle"
	EventPeerAudioToggle EventType = "media:peer-audio-toggle"
	EventPeerScreenStart EventType = "screen:peer-start"
	EventPeerScreenStop  EventType = "screen:peer-stop"
)

// Envelope is the outer frame of every WebSocket message.
type Envelope struct {
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into a ready-to-send Envelope.
func NewEnvelope(event EventType, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Payload: raw}, nil
}

// DecodePayload unmarshals an envelope payload into the expected request type.
func DecodePayload[T any](env Envelope) (T, error) {
	var out T
	if len(env.Payload) == 0 {
		return out, fmt.Errorf("event %s: empty payload", env.Event)
	}
	if err := json.Unmarshal(env.Payload, &out); err != nil {
		return out, fmt.Errorf("event %s: %w", env.Event, err)
	}
	return out, nil
}

// CallKind distinguishes audio-only calls from video calls.
type CallKind string

const (
	CallKindVideo CallKind = "video"
	CallKindAudio CallKind = "audio"
)

// Participant is the roster entry for one connection. ConnectionID is assigned
// by the relay at upgrade time and is not stable across reconnects.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	AvatarRef    string `json:"avatarRef,omitempty"`
	Online       bool   `json:"online"`
}

// JoinRequest announces a connection's profile to the presence registry.
type JoinRequest struct {
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef,omitempty"`
}

// ParticipantLeft is broadcast when a connection drops. DisplayName is
// best-effort: empty if the connection never joined.
type ParticipantLeft struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName,omitempty"`
}

// ChatSendRequest carries one outgoing chat message. An absent RecipientID
// means broadcast to everyone.
type ChatSendRequest struct {
	Content     string `json:"content"`
	RecipientID string `json:"recipientId,omitempty"`
}

// ChatMessage is the delivered form of a chat message. Sender is a snapshot of
// the presence entry at send time, nil when the sender never joined.
type ChatMessage struct {
	ID          string       `json:"id"`
	Content     string       `json:"content"`
	Sender      *Participant `json:"sender,omitempty"`
	RecipientID string       `json:"recipientId,omitempty"`
	SentAt      time.Time    `json:"sentAt"`
}

// TypingRequest toggles the sender's typing indicator.
type TypingRequest struct {
	IsTyping    bool   `json:"isTyping"`
	RecipientID string `json:"recipientId,omitempty"`
}

// TypingEvent is the delivered typing indicator. Receivers expire it locally;
// a matching stopped-typing event is not guaranteed to arrive.
type TypingEvent struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
	IsTyping     bool   `json:"isTyping"`
}

// CallInitiateRequest asks the relay to ring another connection.
type CallInitiateRequest struct {
	RecipientID string   `json:"recipientId"`
	Kind        CallKind `json:"kind"`
}

// IncomingCall is delivered to the callee only.
type IncomingCall struct {
	CallerID     string   `json:"callerId"`
	CallerName   string   `json:"callerName"`
	CallerAvatar string   `json:"callerAvatar,omitempty"`
	Kind         CallKind `json:"kind"`
}

// CallAnswerRequest accepts or rejects a ringing call.
type CallAnswerRequest struct {
	CallerID string `json:"callerId"`
}

// CallAnswered is delivered back to the caller for both accept and reject.
type CallAnswered struct {
	RecipientID string `json:"recipientId"`
}

// CallEndRequest hangs up on the named peer. An absent RecipientID is a no-op;
// there is no broadcast hang-up.
type CallEndRequest struct {
	RecipientID string `json:"recipientId,omitempty"`
}

// CallEnded tells the peer the call is over.
type CallEnded struct {
	UserID string `json:"userId"`
}

// NegotiationRequest carries an opaque session description to one recipient.
// The relay never inspects Payload.
type NegotiationRequest struct {
	RecipientID string          `json:"recipientId"`
	Payload     json.RawMessage `json:"payload"`
}

// NegotiationEvent is the delivered form. SenderID is stamped by the relay
// from the authenticated connection, never taken from the client payload.
type NegotiationEvent struct {
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"`
}

// CandidateRequest carries one opaque connectivity candidate.
type CandidateRequest struct {
	RecipientID string          `json:"recipientId"`
	Candidate   json.RawMessage `json:"candidate"`
}

// CandidateEvent is the delivered candidate, senderId stamped by the relay.
type CandidateEvent struct {
	Candidate json.RawMessage `json:"candidate"`
	SenderID  string          `json:"senderId"`
}

// MediaToggleRequest advises the peer that local video/audio was enabled or
// disabled. Advisory only; no renegotiation happens.
type MediaToggleRequest struct {
	RecipientID string `json:"recipientId"`
	Enabled     bool   `json:"enabled"`
}

// PeerMediaToggle is the delivered advisory toggle.
type PeerMediaToggle struct {
	UserID  string `json:"userId"`
	Enabled bool   `json:"enabled"`
}

// ScreenShareRequest advises the peer that screen sharing started or stopped.
type ScreenShareRequest struct {
	RecipientID string `json:"recipientId"`
}

// PeerScreenShare is the delivered advisory screen-share notice.
type PeerScreenShare struct {
	UserID string `json:"userId"`
}
