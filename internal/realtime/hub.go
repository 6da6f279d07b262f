// Package realtime is the push gateway: an injectable live directory of
// authenticated WebSocket connections keyed by user id, plus the per
// connection read/write pumps. Delivery is best effort; a user without a
// live connection simply misses the push and recovers state over REST.
package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Message is the wire format in both directions.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub owns the live directory. One entry per user id; a later connection for
// the same user replaces the earlier one. Only Register/Unregister mutate
// the directory, and every push goes through the Send* operations.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds the client to the directory, closing any superseded
// connection for the same user.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	previous := h.clients[client.userID]
	h.clients[client.userID] = client
	total := len(h.clients)
	h.mu.Unlock()

	if previous != nil {
		previous.closeSend()
	}
	h.logger.Info("websocket client connected",
		zap.String("user_id", client.userID), zap.Int("total_clients", total))
}

// Unregister removes the client if the directory still points at it. A stale
// connection replaced by a newer one must not evict its successor.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.userID]
	if ok && current == client {
		delete(h.clients, client.userID)
	}
	total := len(h.clients)
	h.mu.Unlock()

	client.closeSend()
	h.logger.Info("websocket client disconnected",
		zap.String("user_id", client.userID), zap.Int("total_clients", total))
}

// SendToUser delivers one event to the user's live connection, if any.
// Returns false when the user is not connected or the event was dropped.
func (h *Hub) SendToUser(userID, event string, data interface{}) bool {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return client.enqueue(Message{Type: event, Data: data})
}

// Broadcast delivers one event to every live connection.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg := Message{Type: event, Data: data}
	for _, client := range h.snapshot() {
		if !client.enqueue(msg) {
			h.logger.Warn("dropped broadcast message",
				zap.String("user_id", client.userID), zap.String("event", event))
		}
	}
}

// SendToRole delivers one event to every live connection whose user holds
// the role.
func (h *Hub) SendToRole(role, event string, data interface{}) {
	msg := Message{Type: event, Data: data}
	for _, client := range h.snapshot() {
		if client.role != role {
			continue
		}
		if !client.enqueue(msg) {
			h.logger.Warn("dropped role message",
				zap.String("user_id", client.userID), zap.String("event", event))
		}
	}
}

// ConnectedUserIDs returns the ids of all currently connected users.
func (h *Hub) ConnectedUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// IsConnected reports whether the user has a live connection.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll drops every connection. Called on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.closeSend()
	}
	if len(clients) > 0 {
		h.logger.Info("closed all websocket clients", zap.Int("count", len(clients)))
	}
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}
