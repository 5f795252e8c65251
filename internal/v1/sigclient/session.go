package sigclient

import (
	"context"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
	"github.com/medibridge/telehealth/backend/go/internal/v1/peer"
)

var _ peer.Signaler = (*Client)(nil)

// AttachSession routes inbound negotiation traffic into a peer session.
// The client itself is the session's Signaler for the outbound direction.
// Must be called before Connect; it overwrites the negotiation handlers.
func (c *Client) AttachSession(s *peer.Session) {
	c.handlers.OnOffer = func(from string, sdp webrtc.SessionDescription) {
		s.HandleRemoteOffer(from, sdp)
	}
	c.handlers.OnAnswer = func(from string, sdp webrtc.SessionDescription) {
		if err := s.HandleRemoteAnswer(sdp); err != nil {
			logging.Warn(context.Background(), "Failed to apply remote answer",
				zap.String("sender", from), zap.Error(err))
		}
	}
	c.handlers.OnCandidate = func(from string, candidate webrtc.ICECandidateInit) {
		s.HandleRemoteCandidate(candidate)
	}
}
