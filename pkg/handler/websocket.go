package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type          string          `json:"type"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// MessageType constants
const (
	MessageTypeTargetReport = "target.report"
	MessageTypeAlarm        = "alarm"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
	MessageTypeSubscribe    = "subscribe"
	MessageTypeUnsubscribe  = "unsubscribe"
)

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	id         string
	conn       *websocket.Conn
	send       chan WebSocketMessage
	hub        *WebSocketHub
	// nil until the client first subscribes or unsubscribes
	subscribed map[string]bool
	mu         sync.RWMutex
}

// WebSocketHub manages WebSocket connections and message broadcasting
type WebSocketHub struct {
	clients    map[string]*WebSocketClient
	broadcast  chan WebSocketMessage
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	done       chan struct{}
	mu         sync.RWMutex
	logger     zerolog.Logger
	nc         *nats.Conn
	subjects   map[string]string
	subs       []*nats.Subscription
}

// NewWebSocketHub creates a new WebSocket hub. When nc is non-nil the hub
// relays messages published on subjects (subject -> message type) to clients.
func NewWebSocketHub(nc *nats.Conn, subjects map[string]string, logger zerolog.Logger) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[string]*WebSocketClient),
		broadcast:  make(chan WebSocketMessage, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "websocket_hub").Logger(),
		nc:         nc,
		subjects:   subjects,
	}
}

// Run starts the WebSocket hub
func (h *WebSocketHub) Run(ctx context.Context) {
	if h.nc != nil {
		h.subscribeToNATS()
	}

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().Str("client_id", client.id).Int("total_clients", total).Msg("Client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().Str("client_id", client.id).Int("total_clients", total).Msg("Client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				if !client.isSubscribed(message.Type) {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client send buffer full, skip this message
					h.logger.Warn().Str("client_id", client.id).Str("message_type", message.Type).Msg("Client send buffer full, dropping message")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// subscribeToNATS subscribes to the configured subjects
func (h *WebSocketHub) subscribeToNATS() {
	for subject, msgType := range h.subjects {
		messageType := msgType
		sub, err := h.nc.Subscribe(subject, func(msg *nats.Msg) {
			wsMsg := WebSocketMessage{
				Type:      messageType,
				Payload:   msg.Data,
				Timestamp: time.Now().UTC(),
			}

			var envelope struct {
				Envelope struct {
					CorrelationID string `json:"correlation_id"`
				} `json:"envelope"`
			}
			if err := json.Unmarshal(msg.Data, &envelope); err == nil {
				wsMsg.CorrelationID = envelope.Envelope.CorrelationID
			}

			h.Broadcast(wsMsg)
		})
		if err != nil {
			h.logger.Error().Err(err).Str("subject", subject).Msg("Failed to subscribe to NATS subject")
			continue
		}

		h.subs = append(h.subs, sub)
		h.logger.Info().Str("subject", subject).Str("message_type", messageType).Msg("Subscribed to NATS subject")
	}
}

// shutdown cleanly shuts down the hub
func (h *WebSocketHub) shutdown() {
	for _, sub := range h.subs {
		sub.Unsubscribe()
	}

	h.mu.Lock()
	close(h.done)
	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*WebSocketClient)
	h.mu.Unlock()

	h.logger.Info().Msg("WebSocket hub shutdown complete")
}

// Broadcast sends a message to all subscribed clients
func (h *WebSocketHub) Broadcast(msg WebSocketMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn().Str("message_type", msg.Type).Msg("Broadcast buffer full")
	}
}

// BroadcastJSON marshals payload and broadcasts it as msgType
func (h *WebSocketHub) BroadcastJSON(msgType string, payload interface{}, correlationID string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	h.Broadcast(WebSocketMessage{
		Type:          msgType,
		Payload:       data,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
	})
	return nil
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *WebSocketHub
	originPatterns []string
	logger         zerolog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *WebSocketHub, originPatterns []string, logger zerolog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		originPatterns: originPatterns,
		logger:         logger.With().Str("handler", "websocket").Logger(),
	}
}

// ServeHTTP handles the WebSocket upgrade and connection
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to accept WebSocket connection")
		return
	}

	client := &WebSocketClient{
		id:         uuid.New().String(),
		conn:       conn,
		send: make(chan WebSocketMessage, 64),
		hub:  h.hub,
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go client.writePump(ctx)
	client.readPump(ctx)
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *WebSocketClient) writePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "connection closed")
				return
			}
			if err := c.write(ctx, message); err != nil {
				c.hub.logger.Error().Err(err).Str("client_id", c.id).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			ping := WebSocketMessage{Type: MessageTypePing, Timestamp: time.Now().UTC()}
			if err := c.write(ctx, ping); err != nil {
				c.hub.logger.Error().Err(err).Str("client_id", c.id).Msg("Failed to send ping")
				return
			}
		}
	}
}

func (c *WebSocketClient) write(ctx context.Context, msg WebSocketMessage) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(ctx, c.conn, msg)
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *WebSocketClient) readPump(ctx context.Context) {
	defer func() {
		// The hub stops draining unregister once it has shut down
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var msg WebSocketMessage
		err := wsjson.Read(ctx, c.conn, &msg)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return
			}
			c.hub.logger.Debug().Err(err).Str("client_id", c.id).Msg("Read error")
			return
		}

		switch msg.Type {
		case MessageTypePong:
			continue

		case MessageTypeSubscribe, MessageTypeUnsubscribe:
			var req struct {
				Topics []string `json:"topics"`
			}
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				continue
			}
			c.updateTopics(msg.Type == MessageTypeSubscribe, req.Topics)

		default:
			c.hub.logger.Debug().Str("client_id", c.id).Str("type", msg.Type).Msg("Unknown message type")
		}
	}
}

// updateTopics adds or removes topics. After the first call the client only
// receives what it is subscribed to, so unsubscribing every topic silences it.
func (c *WebSocketClient) updateTopics(subscribe bool, topics []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subscribed == nil {
		c.subscribed = make(map[string]bool)
	}
	for _, topic := range topics {
		if subscribe {
			c.subscribed[topic] = true
		} else {
			delete(c.subscribed, topic)
		}
	}
}

// isSubscribed reports whether the client wants msgType. A topic matches its
// own type and any dotted subtype ("alarm" matches "alarm.danger").
func (c *WebSocketClient) isSubscribed(msgType string) bool {
	if msgType == MessageTypePing {
		return true
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	// Never filtered means everything
	if c.subscribed == nil {
		return true
	}
	for topic := range c.subscribed {
		if msgType == topic || strings.HasPrefix(msgType, topic+".") {
			return true
		}
	}
	return false
}
