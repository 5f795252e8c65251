// Package peer manages one WebRTC call session on the client side: local
// media acquisition, offer/answer negotiation against the relay's event
// surface, and in-call media controls. It is deliberately standalone,
// coupled to the transport only through the Signaler interface.
package peer

import (
	"github.com/pion/webrtc/v4"
)

// Conn is the slice of *webrtc.PeerConnection behavior a Session uses.
// Tests substitute scripted fakes; production wraps Pion.
type Conn interface {
	AddTrack(track webrtc.TrackLocal) (Sender, error)
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(fn func(*webrtc.ICECandidate))
	OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	Close() error
}

// Sender is an outbound track binding. Screen sharing swaps the camera
// track for the capture track through ReplaceTrack without renegotiating.
type Sender interface {
	ReplaceTrack(track webrtc.TrackLocal) error
	Track() webrtc.TrackLocal
}

// ConnFactory builds a Conn from a configuration. The default factory
// wraps Pion; tests inject their own.
type ConnFactory func(config webrtc.Configuration) (Conn, error)

// NewPionFactory returns a ConnFactory backed by a Pion API instance.
func NewPionFactory() ConnFactory {
	return func(config webrtc.Configuration) (Conn, error) {
		pc, err := webrtc.NewPeerConnection(config)
		if err != nil {
			return nil, err
		}
		return &pionConn{pc: pc}, nil
	}
}

type pionConn struct {
	pc *webrtc.PeerConnection
}

func (c *pionConn) AddTrack(track webrtc.TrackLocal) (Sender, error) {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return nil, err
	}
	return &pionSender{sender: sender}, nil
}

func (c *pionConn) CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(options)
}

func (c *pionConn) CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(options)
}

func (c *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(desc)
}

func (c *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(desc)
}

func (c *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(candidate)
}

func (c *pionConn) OnICECandidate(fn func(*webrtc.ICECandidate)) {
	c.pc.OnICECandidate(fn)
}

func (c *pionConn) OnTrack(fn func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	c.pc.OnTrack(fn)
}

func (c *pionConn) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	c.pc.OnConnectionStateChange(fn)
}

func (c *pionConn) Close() error {
	return c.pc.Close()
}

type pionSender struct {
	sender *webrtc.RTPSender
}

func (s *pionSender) ReplaceTrack(track webrtc.TrackLocal) error {
	return s.sender.ReplaceTrack(track)
}

func (s *pionSender) Track() webrtc.TrackLocal {
	return s.sender.Track()
}
