package peer

import (
	"github.com/pion/webrtc/v4"
)

// Signaler is the only surface the peer package needs from the signaling
// transport. The sigclient WebSocket client is the production
// implementation; the single interface keeps this package free of any
// transport dependency.
type Signaler interface {
	SendOffer(recipientID string, sdp webrtc.SessionDescription) error
	SendAnswer(recipientID string, sdp webrtc.SessionDescription) error
	SendCandidate(recipientID string, candidate webrtc.ICECandidateInit) error

	// Advisory media-state notifications. Best effort: failures are logged
	// by the implementation, never surfaced to the call.
	SendVideoToggle(recipientID string, enabled bool)
	SendAudioToggle(recipientID string, enabled bool)
	SendScreenShareStart(recipientID string)
	SendScreenShareStop(recipientID string)
}
