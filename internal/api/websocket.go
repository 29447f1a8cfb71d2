package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-fieldio/internal/events"
	"github.com/nerrad567/gray-logic-fieldio/internal/field"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/logging"
)

// Message types on the event stream.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// WSMessage is the envelope of every message on the event stream.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels of a subscribe or unsubscribe
// request. A channel is either a plain channel such as "field.trigger" or
// its per-driver form from ScopedChannel.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// ScopedChannel names the per-driver form of a channel.
func ScopedChannel(channel, moniker string) string {
	return channel + ":" + moniker
}

// Hub fans broadcast events out to subscribed WebSocket clients. It is the
// events.Broadcaster for fired field triggers. A client whose buffer is
// full misses the event; the miss is counted.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	dropped atomic.Uint64
}

var _ events.Broadcaster = (*Hub)(nil)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// NewHub creates a hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", c.subject, "clients", n)
}

// Unregister removes a client. Only the call that removes it closes its
// send buffer, so repeated calls are safe.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.shutdown()
		h.logger.Debug("websocket client disconnected", "subject", c.subject, "clients", n)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many event deliveries were skipped for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Broadcast delivers payload to clients subscribed to channel. Field trigger
// events also reach clients subscribed to the event's scoped channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	targets := []string{channel}
	if ev, ok := payload.(field.TriggerEvent); ok {
		targets = append(targets, ScopedChannel(channel, ev.Moniker))
	}

	h.mu.RLock()
	recipients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		if c.subscribedAny(targets) {
			recipients = append(recipients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		if !c.enqueue(data) {
			h.dropped.Add(1)
		}
	}
	if len(recipients) > 0 {
		h.logger.Debug("websocket event sent", "channel", channel, "recipients", len(recipients))
	}
}

// handleWebSocket upgrades an authenticated request to the event stream.
// The ticket comes from POST /auth/ws-ticket and is good for one upgrade.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	subject, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newWSClient(s.hub, conn, subject)
	s.hub.Register(c)
	timing := newWSTiming(s.wsCfg)
	go c.writeLoop(timing)
	go c.readLoop(timing)
}
