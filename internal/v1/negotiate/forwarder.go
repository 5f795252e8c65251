// Package negotiate forwards WebRTC session descriptions, connectivity
// candidates, and media advisory events between peers. Payloads are opaque
// to the relay; the only transformation is rewrapping the request with a
// relay-stamped sender id so clients cannot spoof origin.
package negotiate

import (
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
	"github.com/medibridge/telehealth/backend/go/internal/v1/types"
)

// Forwarder relays negotiation traffic point to point.
type Forwarder struct {
	sender types.Sender
}

func NewForwarder(sender types.Sender) *Forwarder {
	return &Forwarder{sender: sender}
}

// Offer forwards a session description offer to the recipient.
func (f *Forwarder) Offer(senderID types.ConnectionID, req protocol.NegotiationRequest) {
	f.forward(senderID, protocol.EventNegotiateOffer, req)
}

// Answer forwards a session description answer to the recipient.
func (f *Forwarder) Answer(senderID types.ConnectionID, req protocol.NegotiationRequest) {
	f.forward(senderID, protocol.EventNegotiateAnswer, req)
}

func (f *Forwarder) forward(senderID types.ConnectionID, event protocol.EventType, req protocol.NegotiationRequest) {
	f.sender.SendTo(types.ConnectionID(req.RecipientID), event, protocol.NegotiationEvent{
		Payload:  req.Payload,
		SenderID: string(senderID),
	})
}

// Candidate forwards one connectivity candidate to the recipient.
func (f *Forwarder) Candidate(senderID types.ConnectionID, req protocol.CandidateRequest) {
	f.sender.SendTo(types.ConnectionID(req.RecipientID), protocol.EventNegotiateCandidate, protocol.CandidateEvent{
		Candidate: req.Candidate,
		SenderID:  string(senderID),
	})
}

// ToggleVideo mirrors a local video enable/disable to the peer.
func (f *Forwarder) ToggleVideo(senderID types.ConnectionID, req protocol.MediaToggleRequest) {
	f.toggle(senderID, protocol.EventPeerVideoToggle, req)
}

// ToggleAudio mirrors a local audio enable/disable to the peer.
func (f *Forwarder) ToggleAudio(senderID types.ConnectionID, req protocol.MediaToggleRequest) {
	f.toggle(senderID, protocol.EventPeerAudioToggle, req)
}

func (f *Forwarder) toggle(senderID types.ConnectionID, event protocol.EventType, req protocol.MediaToggleRequest) {
	f.sender.SendTo(types.ConnectionID(req.RecipientID), event, protocol.PeerMediaToggle{
		UserID:  string(senderID),
		Enabled: req.Enabled,
	})
}

// ScreenStart tells the peer the sender began sharing a screen.
func (f *Forwarder) ScreenStart(senderID types.ConnectionID, req protocol.ScreenShareRequest) {
	f.screen(senderID, protocol.EventPeerScreenStart, req)
}

// ScreenStop tells the peer the sender stopped sharing.
func (f *Forwarder) ScreenStop(senderID types.ConnectionID, req protocol.ScreenShareRequest) {
	f.screen(senderID, protocol.EventPeerScreenStop, req)
}

func (f *Forwarder) screen(senderID types.ConnectionID, event protocol.EventType, req protocol.ScreenShareRequest) {
	f.sender.SendTo(types.ConnectionID(req.RecipientID), event, protocol.PeerScreenShare{
		UserID: string(senderID),
	})
}
