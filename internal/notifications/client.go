package notifications

import (
	"log/slog"
	"time"

	"aurafeed/internal/middleware"
	"aurafeed/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// Client is one subscriber connection. Subscribers only listen; anything
// they send besides control frames is discarded.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	hub *Hub
	// posts limits delivery to these post ids; empty means every post.
	posts map[string]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, postIDs []string) *Client {
	c := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
		hub:  hub,
	}
	for _, id := range postIDs {
		if id == "" {
			continue
		}
		if c.posts == nil {
			c.posts = make(map[string]struct{})
		}
		c.posts[id] = struct{}{}
	}
	return c
}

// Wants reports whether events for postID should reach this client.
func (c *Client) Wants(postID string) bool {
	if len(c.posts) == 0 || postID == "" {
		return true
	}
	_, ok := c.posts[postID]
	return ok
}

// ReadPump drains the connection until it closes, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { return c.Conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("Tip stream read failed",
					slog.String("client_id", c.ID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// WritePump forwards queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking. When the buffer is full the
// message is dropped and the client is told so it can re-fetch.
func (c *Client) TrySend(message []byte) {
	select {
	case c.Send <- message:
	default:
		observability.WebSocketDrops.Inc()
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}
