package relay

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/medibridge/telehealth/backend/go/internal/v1/callctrl"
	"github.com/medibridge/telehealth/backend/go/internal/v1/chat"
	"github.com/medibridge/telehealth/backend/go/internal/v1/logging"
	"github.com/medibridge/telehealth/backend/go/internal/v1/metrics"
	"github.com/medibridge/telehealth/backend/go/internal/v1/negotiate"
	"github.com/medibridge/telehealth/backend/go/internal/v1/presence"
	"github.com/medibridge/telehealth/backend/go/internal/v1/protocol"
	"github.com/medibridge/telehealth/backend/go/internal/v1/ratelimit"
	"github.com/medibridge/telehealth/backend/go/internal/v1/types"
)

// ConnectionLimiter gates WebSocket upgrades. Implemented by
// ratelimit.RateLimiter; nil disables the check.
type ConnectionLimiter interface {
	CheckWebSocket(c *gin.Context) bool
}

// Hub owns every connection on this instance and is the single Sender for
// the business packages. With a bus configured, envelopes addressed to
// connections on other instances are forwarded over Redis; without one the
// relay runs in single-instance mode.
type Hub struct {
	mu         sync.RWMutex
	clients    map[types.ConnectionID]*Client
	joined     map[types.ConnectionID]bool
	subCancels map[types.ConnectionID]context.CancelFunc

	registry  *presence.Registry
	chat      *chat.Router
	calls     *callctrl.Control
	negotiate *negotiate.Forwarder

	bus        types.BusService
	instanceID string
	limiter    ConnectionLimiter

	allowedOrigins []string
}

// NewHub wires the business packages around a fresh hub. bus and limiter
// may be nil.
func NewHub(bus types.BusService, limiter *ratelimit.RateLimiter, allowedOrigins []string) *Hub {
	h := &Hub{
		clients:        make(map[types.ConnectionID]*Client),
		joined:         make(map[types.ConnectionID]bool),
		subCancels:     make(map[types.ConnectionID]context.CancelFunc),
		registry:       presence.NewRegistry(),
		bus:            bus,
		instanceID:     uuid.New().String(),
		allowedOrigins: allowedOrigins,
	}
	if limiter != nil {
		h.limiter = limiter
	}
	h.chat = chat.NewRouter(h.registry, h)
	h.calls = callctrl.NewControl(h.registry, h)
	h.negotiate = negotiate.NewForwarder(h)
	return h
}

// Start subscribes the hub to cross-instance broadcasts. No-op without a bus.
func (h *Hub) Start(ctx context.Context) {
	if h.bus == nil {
		return
	}
	h.bus.SubscribeLobby(ctx, h.instanceID, func(env protocol.Envelope) {
		h.deliverLocalBroadcast(env)
	})
}

// Registry exposes the presence registry for HTTP surfaces.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// --- types.Sender ---

// SendTo delivers to a local client, falling back to the bus for
// connections held by another instance.
func (h *Hub) SendTo(id types.ConnectionID, event protocol.EventType, payload any) bool {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to build envelope",
			zap.String("event", string(event)), zap.Error(err))
		return false
	}

	h.mu.RLock()
	client, ok := h.clients[id]
	h.mu.RUnlock()

	if ok {
		client.Send(env)
		return true
	}

	if h.bus != nil {
		if err := h.bus.PublishDirect(context.Background(), string(id), env, h.instanceID); err != nil {
			logging.Warn(context.Background(), "Bus direct publish failed",
				zap.String("target", string(id)), zap.Error(err))
			return false
		}
		return true
	}
	return false
}

// Broadcast delivers to every local client, including the origin, and
// fans out to other instances when a bus is configured.
func (h *Hub) Broadcast(event protocol.EventType, payload any) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to build envelope",
			zap.String("event", string(event)), zap.Error(err))
		return
	}

	h.deliverLocalBroadcast(env)

	if h.bus != nil {
		if err := h.bus.PublishLobby(context.Background(), env, h.instanceID); err != nil {
			logging.Warn(context.Background(), "Bus lobby publish failed", zap.Error(err))
		}
	}
}

// BroadcastExcept delivers to every client but the excluded one. The
// excluded connection lives on this instance, so other instances get a
// plain lobby fan-out.
func (h *Hub) BroadcastExcept(exclude types.ConnectionID, event protocol.EventType, payload any) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to build envelope",
			zap.String("event", string(event)), zap.Error(err))
		return
	}

	h.mu.RLock()
	for id, client := range h.clients {
		if id == exclude {
			continue
		}
		client.Send(env)
	}
	h.mu.RUnlock()

	if h.bus != nil {
		if err := h.bus.PublishLobby(context.Background(), env, h.instanceID); err != nil {
			logging.Warn(context.Background(), "Bus lobby publish failed", zap.Error(err))
		}
	}
}

func (h *Hub) deliverLocalBroadcast(env protocol.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.Send(env)
	}
}

// --- connection lifecycle ---

// ServeWs upgrades an HTTP request to a WebSocket connection, assigns a
// fresh connection id, and starts the client's pumps. The connection is
// anonymous until the client announces itself with a join event.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return
	}

	id := types.ConnectionID(uuid.New().String())
	client := newClient(conn, h, id)

	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()

	metrics.IncConnection()

	// Route cross-instance traffic addressed to this connection.
	if h.bus != nil {
		subCtx, cancel := context.WithCancel(context.Background())
		h.mu.Lock()
		h.subCancels[id] = cancel
		h.mu.Unlock()
		h.bus.SubscribeDirect(subCtx, string(id), func(env protocol.Envelope) {
			client.Send(env)
		})
	}

	logging.Info(c.Request.Context(), "Connection established",
		zap.String("connection_id", string(id)),
		zap.String("remote_addr", c.ClientIP()))

	go client.writePump()
	go client.readPump()
}

// checkOrigin validates the Origin header against the configured allow
// list. Requests without an Origin (non-browser clients) are allowed.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	allowed := h.allowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:3000"}
	}
	for _, a := range allowed {
		allowedURL, err := url.Parse(strings.TrimSpace(a))
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

// handleJoin registers the announced profile and pushes a fresh roster to
// everyone. Re-announcing overwrites the existing entry in place.
func (h *Hub) handleJoin(c *Client, req protocol.JoinRequest) {
	h.registry.Join(c.id, req)

	h.mu.Lock()
	h.joined[c.id] = true
	h.mu.Unlock()

	h.Broadcast(protocol.EventRosterUpdate, h.registry.Roster())
}

// handleDisconnect removes the client and announces the departure. The
// participant:left event always goes out, best effort, with an empty name
// when the connection never joined; the roster broadcast is skipped in
// that case because the roster did not change.
func (h *Hub) handleDisconnect(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	wasJoined := h.joined[c.id]
	delete(h.joined, c.id)
	if cancel, ok := h.subCancels[c.id]; ok {
		cancel()
		delete(h.subCancels, c.id)
	}
	h.mu.Unlock()

	snapshot, _ := h.registry.Leave(c.id)

	logging.Info(context.Background(), "Connection closed",
		zap.String("connection_id", string(c.id)))

	if wasJoined {
		h.Broadcast(protocol.EventRosterUpdate, h.registry.Roster())
	}
	h.Broadcast(protocol.EventParticipantLeft, protocol.ParticipantLeft{
		ConnectionID: string(c.id),
		DisplayName:  snapshot.DisplayName,
	})
}

// Shutdown disconnects every client. Waits are handled by the HTTP server
// shutdown; the pumps unwind on their own once connections close.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Disconnect()
	}

	logging.Info(ctx, "Hub shut down", zap.Int("connections_closed", len(clients)))
}
