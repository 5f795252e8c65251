package peer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
)

// State is the call session lifecycle.
type State int

const (
	StateIdle State = iota
	StateLocalMediaReady
	StateNegotiating
	StateConnected
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocalMediaReady:
		return "local_media_ready"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	}
	return "unknown"
}

// Role records which side of the negotiation this session took.
type Role int

const (
	RoleNone Role = iota
	RoleInitiator
	RoleResponder
)

// Session manages one call with one remote peer: local media, the peer
// connection, queued negotiation state, and in-call controls.
//
// Offers that arrive before the user accepts are parked in a single slot
// where the newest wins; remote candidates that arrive before the remote
// description are queued FIFO and drained after it is applied. Toggling
// audio or video only flips track enablement and advises the peer; it
// never renegotiates.
type Session struct {
	factory ConnFactory
	media   MediaSource
	sig     Signaler
	config  webrtc.Configuration

	mu       sync.Mutex
	state    State
	role     Role
	remoteID string

	local  Stream
	screen Stream
	conn   Conn

	videoSender Sender
	audioSender Sender

	pendingOffer      offerSlot
	pendingCandidates candidateQueue
	remoteDescSet     bool

	remoteTracks chan RemoteTrack
}

// NewSession builds a session around a connection factory, a media source,
// and a signaler. Nothing is acquired or connected until the call flow
// starts.
func NewSession(factory ConnFactory, media MediaSource, sig Signaler, config webrtc.Configuration) *Session {
	return &Session{
		factory:      factory,
		media:        media,
		sig:          sig,
		config:       config,
		state:        StateIdle,
		remoteTracks: make(chan RemoteTrack, 8),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) RemoteID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteID
}

// RemoteTracks exposes inbound media. Single consumer; the channel is
// buffered and drops when nobody is draining it.
func (s *Session) RemoteTracks() <-chan RemoteTrack {
	return s.remoteTracks
}

// LocalStream returns the user media stream, nil before acquisition.
func (s *Session) LocalStream() Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

// AcquireLocalMedia captures camera and microphone. Both kinds are always
// acquired; wantVideo/wantAudio only choose the initial enabled flags, so
// an audio call can turn video on later without renegotiating. Idempotent
// while a stream is live.
func (s *Session) AcquireLocalMedia(ctx context.Context, wantVideo, wantAudio bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.local == nil {
		stream, err := s.media.UserMedia(ctx)
		if err != nil {
			return fmt.Errorf("acquire user media: %w", err)
		}
		s.local = stream
	}

	if t := trackOfKind(s.local, KindVideo); t != nil {
		t.SetEnabled(wantVideo)
	}
	if t := trackOfKind(s.local, KindAudio); t != nil {
		t.SetEnabled(wantAudio)
	}

	if s.state == StateIdle {
		s.state = StateLocalMediaReady
	}
	return nil
}

// CreateOffer starts negotiation as the initiator: builds the connection,
// attaches the local tracks, and sends the offer to the recipient.
func (s *Session) CreateOffer(ctx context.Context, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.local == nil {
		return fmt.Errorf("local media not acquired")
	}

	if err := s.ensureConnLocked(); err != nil {
		return err
	}
	s.remoteID = recipientID

	offer, err := s.conn.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := s.conn.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	s.role = RoleInitiator
	s.state = StateNegotiating

	if err := s.sig.SendOffer(recipientID, offer); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}
	return nil
}

// HandleRemoteOffer parks an inbound offer until the user answers the
// call. A newer offer replaces an older queued one.
func (s *Session) HandleRemoteOffer(from string, sdp webrtc.SessionDescription) {
	s.pendingOffer.Put(from, sdp)
}

// ProcessPendingOffer answers the queued offer, if any: builds the
// connection, applies the remote description, drains queued candidates,
// and returns the answer to the offerer. Called once when the user accepts.
func (s *Session) ProcessPendingOffer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Prerequisites first: a premature call must leave the offer parked
	// for the retry, not consume it.
	if s.local == nil {
		return fmt.Errorf("local media not acquired")
	}

	from, sdp, ok := s.pendingOffer.Take()
	if !ok {
		return nil
	}

	if err := s.ensureConnLocked(); err != nil {
		return err
	}
	s.remoteID = from

	if err := s.conn.SetRemoteDescription(sdp); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.remoteDescSet = true
	s.drainCandidatesLocked()

	answer, err := s.conn.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := s.conn.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	s.role = RoleResponder
	s.state = StateNegotiating

	if err := s.sig.SendAnswer(from, answer); err != nil {
		return fmt.Errorf("send answer: %w", err)
	}
	return nil
}

// HandleRemoteAnswer completes the initiator's negotiation.
func (s *Session) HandleRemoteAnswer(sdp webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return fmt.Errorf("no connection for answer")
	}
	if err := s.conn.SetRemoteDescription(sdp); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	s.remoteDescSet = true
	s.drainCandidatesLocked()
	return nil
}

// HandleRemoteCandidate applies a candidate, queueing it while the remote
// description is not yet in place.
func (s *Session) HandleRemoteCandidate(candidate webrtc.ICECandidateInit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || !s.remoteDescSet {
		s.pendingCandidates.Push(candidate)
		return
	}
	if err := s.conn.AddICECandidate(candidate); err != nil {
		logging.Warn(context.Background(), "Failed to add remote candidate", zap.Error(err))
	}
}

func (s *Session) drainCandidatesLocked() {
	for _, c := range s.pendingCandidates.Drain() {
		if err := s.conn.AddICECandidate(c); err != nil {
			logging.Warn(context.Background(), "Failed to add queued candidate", zap.Error(err))
		}
	}
}

// ToggleVideo flips the local camera track and advises the peer. Returns
// the new enabled state.
func (s *Session) ToggleVideo() (bool, error) {
	return s.toggle(KindVideo)
}

// ToggleAudio flips the local microphone track and advises the peer.
func (s *Session) ToggleAudio() (bool, error) {
	return s.toggle(KindAudio)
}

func (s *Session) toggle(kind TrackKind) (bool, error) {
	s.mu.Lock()
	track := trackOfKind(s.local, kind)
	remoteID := s.remoteID
	if track == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("no %s track", kind)
	}
	enabled := !track.Enabled()
	track.SetEnabled(enabled)
	s.mu.Unlock()

	if remoteID != "" {
		switch kind {
		case KindVideo:
			s.sig.SendVideoToggle(remoteID, enabled)
		case KindAudio:
			s.sig.SendAudioToggle(remoteID, enabled)
		}
	}
	return enabled, nil
}

// StartScreenShare captures the display and swaps it onto the video
// sender. The camera track stays alive for restoration. When the capture
// ends on its own the share stops and the camera comes back.
func (s *Session) StartScreenShare(ctx context.Context) error {
	s.mu.Lock()
	if s.screen != nil {
		s.mu.Unlock()
		return fmt.Errorf("screen share already active")
	}
	if s.videoSender == nil {
		s.mu.Unlock()
		return fmt.Errorf("no active video sender")
	}
	s.mu.Unlock()

	stream, err := s.media.DisplayMedia(ctx)
	if err != nil {
		return fmt.Errorf("acquire display media: %w", err)
	}
	screenTrack := trackOfKind(stream, KindVideo)
	if screenTrack == nil {
		return fmt.Errorf("display media has no video track")
	}

	s.mu.Lock()
	if err := s.videoSender.ReplaceTrack(screenTrack.Local()); err != nil {
		s.mu.Unlock()
		screenTrack.Stop()
		return fmt.Errorf("replace track: %w", err)
	}
	s.screen = stream
	remoteID := s.remoteID
	s.mu.Unlock()

	screenTrack.OnEnded(func() {
		// User ended the capture from the OS; restore the camera.
		if err := s.StopScreenShare(); err != nil {
			logging.Warn(context.Background(), "Failed to stop screen share after capture ended", zap.Error(err))
		}
	})

	if remoteID != "" {
		s.sig.SendScreenShareStart(remoteID)
	}
	return nil
}

// StopScreenShare restores the camera track and releases the capture.
// No-op when no share is active.
func (s *Session) StopScreenShare() error {
	s.mu.Lock()
	if s.screen == nil {
		s.mu.Unlock()
		return nil
	}
	screen := s.screen
	s.screen = nil

	camera := trackOfKind(s.local, KindVideo)
	if camera != nil && s.videoSender != nil {
		if err := s.videoSender.ReplaceTrack(camera.Local()); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("restore camera track: %w", err)
		}
	}
	remoteID := s.remoteID
	s.mu.Unlock()

	for _, t := range screen.Tracks() {
		t.Stop()
	}

	if remoteID != "" {
		s.sig.SendScreenShareStop(remoteID)
	}
	return nil
}

// EndCall tears everything down: capture tracks stopped, connection
// closed, queues cleared. Only an explicit end does this; negotiation
// failures and glare leave media alive so the next attempt is instant.
// The session returns to idle and can host a fresh call.
func (s *Session) EndCall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.screen != nil {
		for _, t := range s.screen.Tracks() {
			t.Stop()
		}
		s.screen = nil
	}
	if s.local != nil {
		for _, t := range s.local.Tracks() {
			t.Stop()
		}
		s.local = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logging.Warn(context.Background(), "Error closing peer connection", zap.Error(err))
		}
		s.conn = nil
	}

	s.videoSender = nil
	s.audioSender = nil
	s.pendingOffer.Clear()
	s.pendingCandidates.Clear()
	s.remoteDescSet = false
	s.remoteID = ""
	s.role = RoleNone
	s.state = StateIdle
}

// ensureConnLocked lazily builds the peer connection, attaches local
// tracks, and installs callbacks. Caller holds s.mu.
func (s *Session) ensureConnLocked() error {
	if s.conn != nil {
		return nil
	}

	conn, err := s.factory(s.config)
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	for _, t := range s.local.Tracks() {
		sender, err := conn.AddTrack(t.Local())
		if err != nil {
			conn.Close()
			return fmt.Errorf("add %s track: %w", t.Kind(), err)
		}
		switch t.Kind() {
		case KindVideo:
			s.videoSender = sender
		case KindAudio:
			s.audioSender = sender
		}
	}

	conn.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			// Gathering finished.
			return
		}
		s.mu.Lock()
		remoteID := s.remoteID
		s.mu.Unlock()
		if remoteID == "" {
			return
		}
		if err := s.sig.SendCandidate(remoteID, c.ToJSON()); err != nil {
			logging.Warn(context.Background(), "Failed to send candidate", zap.Error(err))
		}
	})

	conn.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		select {
		case s.remoteTracks <- RemoteTrack{Track: track, Receiver: receiver}:
		default:
			logging.Warn(context.Background(), "Remote track dropped, consumer not draining")
		}
	})

	conn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch state {
		case webrtc.PeerConnectionStateConnected:
			if s.state == StateNegotiating {
				s.state = StateConnected
			}
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			if s.state == StateConnected || s.state == StateNegotiating {
				s.state = StateEnded
			}
		}
	})

	s.conn = conn
	return nil
}
