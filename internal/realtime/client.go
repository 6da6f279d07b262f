package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client-initiated message types.
const (
	msgGetUnreadCount = "get_unread_count"
	msgMarkAsRead     = "mark_as_read"
)

// NotificationAPI is the slice of the notification service the gateway
// needs for client-initiated events. *notification.Service implements it.
type NotificationAPI interface {
	GetUnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, notificationID, userID primitive.ObjectID) error
}

// Client is one authenticated connection: the middleman between the socket
// and the hub. The send channel is owned by the hub side and closed exactly
// once, either on unregister or when a newer connection supersedes this one.
type Client struct {
	userID string
	role   string
	hub    *Hub
	conn   *websocket.Conn
	api    NotificationAPI
	logger *zap.Logger

	send      chan Message
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, role string, api NotificationAPI, logger *zap.Logger) *Client {
	return &Client{
		userID: userID,
		role:   role,
		hub:    hub,
		conn:   conn,
		api:    api,
		logger: logger,
		send:   make(chan Message, 64),
	}
}

// UserID returns the connection's authenticated user id.
func (c *Client) UserID() string { return c.userID }

// Role returns the connection's authenticated role.
func (c *Client) Role() string { return c.role }

// Start launches the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// enqueue offers a message to the write pump without blocking; a full or
// closed channel drops the message.
func (c *Client) enqueue(msg Message) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("unexpected websocket close",
					zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Type {
	case msgGetUnreadCount:
		c.pushUnreadCount(ctx)

	case msgMarkAsRead:
		notificationID, ok := extractNotificationID(msg.Data)
		if !ok {
			c.logger.Warn("mark_as_read without a valid notificationId",
				zap.String("user_id", c.userID))
			return
		}
		userID, err := primitive.ObjectIDFromHex(c.userID)
		if err != nil {
			return
		}
		if err := c.api.MarkRead(ctx, notificationID, userID); err != nil {
			c.logger.Error("realtime mark_as_read failed",
				zap.String("user_id", c.userID),
				zap.String("notification_id", notificationID.Hex()),
				zap.Error(err))
			return
		}
		c.pushUnreadCount(ctx)

	default:
		c.logger.Debug("ignoring unknown client message",
			zap.String("type", msg.Type), zap.String("user_id", c.userID))
	}
}

func (c *Client) pushUnreadCount(ctx context.Context) {
	userID, err := primitive.ObjectIDFromHex(c.userID)
	if err != nil {
		return
	}
	count, err := c.api.GetUnreadCount(ctx, userID)
	if err != nil {
		c.logger.Error("failed to compute unread count",
			zap.String("user_id", c.userID), zap.Error(err))
		return
	}
	c.enqueue(Message{
		Type: "unread_count_update",
		Data: map[string]int64{"count": count},
	})
}

func extractNotificationID(data interface{}) (primitive.ObjectID, bool) {
	payload, ok := data.(map[string]interface{})
	if !ok {
		return primitive.NilObjectID, false
	}
	raw, ok := payload["notificationId"].(string)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.logger.Warn("failed to write websocket message",
					zap.String("user_id", c.userID), zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
