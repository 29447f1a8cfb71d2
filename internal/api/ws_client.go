package api

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-fieldio/internal/infrastructure/config"
)

// wsTiming holds the keepalive settings of one connection.
type wsTiming struct {
	readLimit int64
	ping      time.Duration
	writeWait time.Duration
	readWait  time.Duration
}

func newWSTiming(cfg config.WebSocketConfig) wsTiming {
	ping := time.Duration(cfg.PingInterval) * time.Second
	pong := time.Duration(cfg.PongTimeout) * time.Second
	return wsTiming{
		readLimit: int64(cfg.MaxMessageSize),
		ping:      ping,
		writeWait: pong,
		readWait:  ping + pong,
	}
}

// WSClient is one event stream connection.
type WSClient struct {
	hub     *Hub
	conn    *websocket.Conn
	subject string

	// send is closed once, under sendMu, by shutdown.
	sendMu sync.Mutex
	send   chan []byte
	closed bool

	subMu         sync.RWMutex
	subscriptions map[string]struct{}
}

// wsRequest is an inbound client message.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newWSClient(hub *Hub, conn *websocket.Conn, subject string) *WSClient {
	return &WSClient{
		hub:           hub,
		conn:          conn,
		subject:       subject,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
}

// enqueue buffers data for the write loop. It reports false when the
// client is gone or its buffer is full.
func (c *WSClient) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send buffer, which makes the write loop send a close
// frame and drop the connection.
func (c *WSClient) shutdown() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WSClient) subscribedAny(channels []string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, ch := range channels {
		if _, ok := c.subscriptions[ch]; ok {
			return true
		}
	}
	return false
}

func (c *WSClient) readLoop(t wsTiming) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close() //nolint:errcheck // closing a dead connection
	}()

	c.conn.SetReadLimit(t.readLimit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.readWait)) }
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		// Browsers do not always answer protocol pings; any message counts.
		_ = extend()
		c.dispatch(data)
	}
}

func (c *WSClient) writeLoop(t wsTiming) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // reader sees the error and unregisters
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch handles one inbound message.
func (c *WSClient) dispatch(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Type {
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(req.Payload, &sub); err != nil || len(sub.Channels) == 0 {
			c.reply(req.ID, WSTypeError, map[string]string{"message": "payload.channels is required"})
			return
		}
		key := "subscribed"
		c.subMu.Lock()
		for _, ch := range sub.Channels {
			if req.Type == WSTypeSubscribe {
				c.subscriptions[ch] = struct{}{}
			} else {
				delete(c.subscriptions, ch)
				key = "unsubscribed"
			}
		}
		c.subMu.Unlock()
		c.hub.logger.Debug("websocket "+key, "subject", c.subject, "channels", sub.Channels)
		c.reply(req.ID, WSTypeResponse, map[string]any{key: sub.Channels})
	default:
		c.reply(req.ID, WSTypeError, map[string]string{"message": "unknown message type: " + req.Type})
	}
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err == nil {
		c.enqueue(data)
	}
}
