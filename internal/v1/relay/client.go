// Package relay implements the WebSocket signaling relay. The relay is a
// deliberately thin forwarder: it tracks presence, stamps sender identity,
// and routes envelopes between connections, but holds no call state and
// never inspects negotiation payloads.
package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
	"github.com/medibridge/telehealth/backend/go/internal/v1/metrics"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
	"github.com/medibridge/telehealth/backend/go/internal/v1/types"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
	// Call and negotiation events ride a separate channel so a backlog of
	// chat traffic cannot delay an offer or a hang-up.
	priorityBufferSize = 64
)

// wsConnection abstracts the gorilla connection so tests can substitute
// mock connections that simulate errors and disconnects.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// hubber is the slice of Hub behavior a Client needs.
type hubber interface {
	route(ctx context.Context, c *Client, env protocol.Envelope)
	handleDisconnect(c *Client)
}

// Client is one WebSocket connection. Two goroutines per client: readPump
// decodes inbound envelopes and hands them to the hub router, writePump
// drains the outbound channels.
type Client struct {
	conn         wsConnection
	hub          hubber
	id           types.ConnectionID
	send         chan []byte
	prioritySend chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(conn wsConnection, hub hubber, id types.ConnectionID) *Client {
	return &Client{
		conn:         conn,
		hub:          hub,
		id:           id,
		send:         make(chan []byte, sendBufferSize),
		prioritySend: make(chan []byte, priorityBufferSize),
		closed:       make(chan struct{}),
	}
}

func (c *Client) GetID() types.ConnectionID {
	return c.id
}

// Send queues one envelope for delivery. Queues never block: when a buffer
// is full the envelope is dropped and counted, because one slow consumer
// must not stall the hub.
func (c *Client) Send(env protocol.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logging.Error(context.Background(), "Failed to marshal envelope",
			zap.String("event", string(env.Event)), zap.Error(err))
		return
	}

	ch := c.send
	if isPriorityEvent(env.Event) {
		ch = c.prioritySend
	}

	select {
	case ch <- data:
	case <-c.closed:
	default:
		metrics.DroppedDeliveries.WithLabelValues(string(env.Event)).Inc()
		logging.Warn(context.Background(), "Client send buffer full, dropping envelope",
			zap.String("connection_id", string(c.id)),
			zap.String("event", string(env.Event)))
	}
}

// Disconnect closes the connection; the readPump unwinds from the read
// error and runs the usual cleanup path.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.handleDisconnect(c)
		c.Disconnect()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "Failed to unmarshal envelope",
				zap.String("connection_id", string(c.id)), zap.Error(err))
			metrics.RelayEvents.WithLabelValues("invalid", "decode_error").Inc()
			continue
		}

		ctx := context.WithValue(context.Background(), logging.ConnectionIDKey, string(c.id))
		c.hub.route(ctx, c, env)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for {
		// Priority traffic first, then regular, then shutdown.
		select {
		case data, ok := <-c.prioritySend:
			if !ok {
				return
			}
			if !c.write(data) {
				return
			}
		default:
			select {
			case data, ok := <-c.prioritySend:
				if !ok {
					return
				}
				if !c.write(data) {
					return
				}
			case data, ok := <-c.send:
				if !ok {
					return
				}
				if !c.write(data) {
					return
				}
			case <-c.closed:
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
		}
	}
}

func (c *Client) write(data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logging.Error(context.Background(), "Error writing message",
			zap.String("connection_id", string(c.id)), zap.Error(err))
		return false
	}
	return true
}

// isPriorityEvent reports whether an event should jump the regular queue.
func isPriorityEvent(event protocol.EventType) bool {
	switch event {
	case protocol.EventCallIncoming, protocol.EventCallAccepted, protocol.EventCallRejected, protocol.EventCallEnded,
		protocol.EventNegotiateOffer, protocol.EventNegotiateAnswer, protocol.EventNegotiateCandidate:
		return true
	}
	return false
}
