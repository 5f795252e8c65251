// Package sigclient is the client half of the relay protocol: a persistent
// WebSocket connection that announces presence, exchanges chat and call
// control events, and carries negotiation payloads for a peer session.
// Connection drops are retried a bounded number of times; a successful
// reconnect re-announces with a fresh join, so the roster entry comes back
// under a new connection id rather than resuming the old one.
package sigclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
)

const (
	reconnectAttempts = 5
	reconnectInterval = time.Second
	writeWait         = 10 * time.Second
)

// Handlers holds the per-event callbacks the UI layer registers. Nil
// handlers are skipped. Callbacks run on the read loop goroutine, so they
// must not block.
type Handlers struct {
	OnRoster          func(participants []protocol.Participant)
	OnParticipantLeft func(left protocol.ParticipantLeft)
	OnChatMessage     func(msg protocol.ChatMessage)
	OnTyping          func(ev protocol.TypingEvent)
	OnIncomingCall    func(call protocol.IncomingCall)
	OnCallAccepted    func(ans protocol.CallAnswered)
	OnCallRejected    func(ans protocol.CallAnswered)
	OnCallEnded       func(ended protocol.CallEnded)
	OnOffer           func(from string, sdp webrtc.SessionDescription)
	OnAnswer          func(from string, sdp webrtc.SessionDescription)
	OnCandidate       func(from string, candidate webrtc.ICECandidateInit)
	OnPeerVideoToggle func(ev protocol.PeerMediaToggle)
	OnPeerAudioToggle func(ev protocol.PeerMediaToggle)
	OnPeerScreenStart func(ev protocol.PeerScreenShare)
	OnPeerScreenStop  func(ev protocol.PeerScreenShare)

	// OnDisconnect fires once, when the connection is lost and every
	// reconnect attempt has failed. Not fired on explicit Close.
	OnDisconnect func(err error)
}

// Client is a signaling connection to the relay.
type Client struct {
	url         string
	displayName string
	avatarRef   string
	handlers    Handlers
	dialer      *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
	done      chan struct{}
}

// NewClient prepares a client for url (ws:// or wss://). Connect must be
// called before any send.
func NewClient(url, displayName, avatarRef string, handlers Handlers) *Client {
	return &Client{
		url:         url,
		displayName: displayName,
		avatarRef:   avatarRef,
		handlers:    handlers,
		dialer:      websocket.DefaultDialer,
		closed:      make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Connect dials the relay, announces presence, and starts the read loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.join(); err != nil {
		conn.Close()
		return err
	}

	go c.readLoop()
	return nil
}

// Close shuts the connection down without triggering reconnection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
}

// Done is closed when the read loop has exited for good, either after
// Close or after reconnection gave up.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) join() error {
	return c.send(protocol.EventJoin, protocol.JoinRequest{
		DisplayName: c.displayName,
		AvatarRef:   c.avatarRef,
	})
}

// SendChat sends a chat message. An empty recipientID broadcasts to the
// whole lobby; the relay echoes directed messages back to us.
func (c *Client) SendChat(content, recipientID string) error {
	return c.send(protocol.EventChatSend, protocol.ChatSendRequest{
		Content:     content,
		RecipientID: recipientID,
	})
}

// SendTyping publishes a typing indicator. Receivers expire it locally,
// so a stopped-typing update is best effort.
func (c *Client) SendTyping(isTyping bool, recipientID string) error {
	return c.send(protocol.EventChatTyping, protocol.TypingRequest{
		IsTyping:    isTyping,
		RecipientID: recipientID,
	})
}

// InitiateCall rings the recipient.
func (c *Client) InitiateCall(recipientID string, kind protocol.CallKind) error {
	return c.send(protocol.EventCallInitiate, protocol.CallInitiateRequest{
		RecipientID: recipientID,
		Kind:        kind,
	})
}

// AcceptCall answers an incoming call from callerID.
func (c *Client) AcceptCall(callerID string) error {
	return c.send(protocol.EventCallAccept, protocol.CallAnswerRequest{CallerID: callerID})
}

// RejectCall declines an incoming call from callerID.
func (c *Client) RejectCall(callerID string) error {
	return c.send(protocol.EventCallReject, protocol.CallAnswerRequest{CallerID: callerID})
}

// EndCall tells the peer the call is over. An empty recipientID is a
// local-only hangup and sends nothing.
func (c *Client) EndCall(recipientID string) error {
	return c.send(protocol.EventCallEnd, protocol.CallEndRequest{RecipientID: recipientID})
}

// SendOffer forwards a session description offer to the recipient.
func (c *Client) SendOffer(recipientID string, sdp webrtc.SessionDescription) error {
	return c.sendNegotiation(protocol.EventNegotiateOffer, recipientID, sdp)
}

// SendAnswer forwards a session description answer to the recipient.
func (c *Client) SendAnswer(recipientID string, sdp webrtc.SessionDescription) error {
	return c.sendNegotiation(protocol.EventNegotiateAnswer, recipientID, sdp)
}

// SendCandidate forwards one ICE candidate to the recipient.
func (c *Client) SendCandidate(recipientID string, candidate webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	return c.send(protocol.EventNegotiateCandidate, protocol.CandidateRequest{
		RecipientID: recipientID,
		Candidate:   raw,
	})
}

// SendVideoToggle advises the peer the local camera was toggled.
func (c *Client) SendVideoToggle(recipientID string, enabled bool) {
	c.sendAdvisory(protocol.EventMediaToggleVideo, protocol.MediaToggleRequest{
		RecipientID: recipientID,
		Enabled:     enabled,
	})
}

// SendAudioToggle advises the peer the local microphone was toggled.
func (c *Client) SendAudioToggle(recipientID string, enabled bool) {
	c.sendAdvisory(protocol.EventMediaToggleAudio, protocol.MediaToggleRequest{
		RecipientID: recipientID,
		Enabled:     enabled,
	})
}

// SendScreenShareStart advises the peer a screen share started.
func (c *Client) SendScreenShareStart(recipientID string) {
	c.sendAdvisory(protocol.EventScreenStart, protocol.ScreenShareRequest{RecipientID: recipientID})
}

// SendScreenShareStop advises the peer the screen share ended.
func (c *Client) SendScreenShareStop(recipientID string) {
	c.sendAdvisory(protocol.EventScreenStop, protocol.ScreenShareRequest{RecipientID: recipientID})
}

func (c *Client) sendNegotiation(event protocol.EventType, recipientID string, sdp webrtc.SessionDescription) error {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return fmt.Errorf("marshal session description: %w", err)
	}
	return c.send(event, protocol.NegotiationRequest{
		RecipientID: recipientID,
		Payload:     raw,
	})
}

// sendAdvisory is for toggles and screen-share notices. Losing one leaves
// the peer's UI briefly stale, not the call broken, so failures only log.
func (c *Client) sendAdvisory(event protocol.EventType, payload any) {
	if err := c.send(event, payload); err != nil {
		logging.Warn(context.Background(), "Failed to send advisory event",
			zap.String("event", string(event)), zap.Error(err))
	}
}

func (c *Client) send(event protocol.EventType, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			if rerr := c.reconnect(); rerr != nil {
				if c.handlers.OnDisconnect != nil {
					c.handlers.OnDisconnect(rerr)
				}
				return
			}
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "Skipping malformed relay frame", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

// reconnect retries the dial a fixed number of times. A successful dial
// sends a fresh join; roster state is rebuilt, never resumed.
func (c *Client) reconnect() error {
	var lastErr error
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		select {
		case <-c.closed:
			return fmt.Errorf("closed during reconnect")
		case <-time.After(reconnectInterval):
		}

		conn, _, err := c.dialer.Dial(c.url, nil)
		if err != nil {
			lastErr = err
			logging.Warn(context.Background(), "Reconnect attempt failed",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		if err := c.join(); err != nil {
			lastErr = err
			conn.Close()
			continue
		}
		logging.Info(context.Background(), "Reconnected to relay", zap.Int("attempt", attempt))
		return nil
	}
	return fmt.Errorf("reconnect failed after %d attempts: %w", reconnectAttempts, lastErr)
}

func (c *Client) dispatch(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventRosterUpdate:
		dispatchTo(env, c.handlers.OnRoster)
	case protocol.EventParticipantLeft:
		dispatchTo(env, c.handlers.OnParticipantLeft)
	case protocol.EventChatDeliver:
		dispatchTo(env, c.handlers.OnChatMessage)
	case protocol.EventChatTyping:
		dispatchTo(env, c.handlers.OnTyping)
	case protocol.EventCallIncoming:
		dispatchTo(env, c.handlers.OnIncomingCall)
	case protocol.EventCallAccepted:
		dispatchTo(env, c.handlers.OnCallAccepted)
	case protocol.EventCallRejected:
		dispatchTo(env, c.handlers.OnCallRejected)
	case protocol.EventCallEnded:
		dispatchTo(env, c.handlers.OnCallEnded)
	case protocol.EventNegotiateOffer:
		c.dispatchDescription(env, c.handlers.OnOffer)
	case protocol.EventNegotiateAnswer:
		c.dispatchDescription(env, c.handlers.OnAnswer)
	case protocol.EventNegotiateCandidate:
		c.dispatchCandidate(env)
	case protocol.EventPeerVideoToggle:
		dispatchTo(env, c.handlers.OnPeerVideoToggle)
	case protocol.EventPeerAudioToggle:
		dispatchTo(env, c.handlers.OnPeerAudioToggle)
	case protocol.EventPeerScreenStart:
		dispatchTo(env, c.handlers.OnPeerScreenStart)
	case protocol.EventPeerScreenStop:
		dispatchTo(env, c.handlers.OnPeerScreenStop)
	default:
		logging.Warn(context.Background(), "Unknown relay event",
			zap.String("event", string(env.Event)))
	}
}

func dispatchTo[T any](env protocol.Envelope, handler func(T)) {
	if handler == nil {
		return
	}
	payload, err := protocol.DecodePayload[T](env)
	if err != nil {
		logging.Warn(context.Background(), "Dropping undecodable payload",
			zap.String("event", string(env.Event)), zap.Error(err))
		return
	}
	handler(payload)
}

func (c *Client) dispatchDescription(env protocol.Envelope, handler func(string, webrtc.SessionDescription)) {
	if handler == nil {
		return
	}
	ev, err := protocol.DecodePayload[protocol.NegotiationEvent](env)
	if err != nil {
		logging.Warn(context.Background(), "Dropping undecodable negotiation event", zap.Error(err))
		return
	}
	var sdp webrtc.SessionDescription
	if err := json.Unmarshal(ev.Payload, &sdp); err != nil {
		logging.Warn(context.Background(), "Dropping malformed session description",
			zap.String("sender", ev.SenderID), zap.Error(err))
		return
	}
	handler(ev.SenderID, sdp)
}

func (c *Client) dispatchCandidate(env protocol.Envelope) {
	if c.handlers.OnCandidate == nil {
		return
	}
	ev, err := protocol.DecodePayload[protocol.CandidateEvent](env)
	if err != nil {
		logging.Warn(context.Background(), "Dropping undecodable candidate event", zap.Error(err))
		return
	}
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(ev.Candidate, &candidate); err != nil {
		logging.Warn(context.Background(), "Dropping malformed candidate",
			zap.String("sender", ev.SenderID), zap.Error(err))
		return
	}
	c.handlers.OnCandidate(ev.SenderID, candidate)
}
