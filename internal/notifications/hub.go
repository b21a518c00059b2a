package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"aurafeed/internal/middleware"
	"aurafeed/internal/observability"
	"aurafeed/internal/tipping"

	"github.com/gofiber/websocket/v2"
)

const maxConns = 1000

// ErrTooManyConnections is returned by Register when the hub is full.
var ErrTooManyConnections = errors.New("tip stream connection limit reached")

// Message is the envelope written to subscribers. PostID lets a relaying
// instance route the event without decoding the payload.
type Message struct {
	Type    string          `json:"type"`
	PostID  string          `json:"post_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Hub keeps the connected tip-stream subscribers.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	notifier *Notifier
	closed   bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Register adds a connection following postIDs, or every post when none are
// given. conn may be nil for in-process subscribers.
func (h *Hub) Register(conn *websocket.Conn, postIDs ...string) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("tip stream is shutting down")
	}
	if len(h.clients) >= maxConns {
		return nil, ErrTooManyConnections
	}
	c := newClient(h, conn, postIDs)
	h.clients[c] = struct{}{}
	observability.WebSocketConnections.Inc()
	return c, nil
}

// UnregisterClient removes c and closes its send queue. Safe to call twice.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.Send)
	observability.WebSocketConnections.Dec()
}

// Count returns the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll queues message for every subscriber.
func (h *Hub) BroadcastAll(message []byte) {
	h.Broadcast("", message)
}

// Broadcast queues message for subscribers following postID. An empty
// postID reaches everyone.
func (h *Hub) Broadcast(postID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.Wants(postID) {
			c.TrySend(message)
		}
	}
}

// relay broadcasts a message received from Redis to the subscribers of its post.
func (h *Hub) relay(payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		middleware.Logger.Warn("Dropping malformed tip stream message", slog.String("error", err.Error()))
		return
	}
	h.Broadcast(msg.PostID, []byte(payload))
}

// StartWiring routes events through n: local events are published to Redis
// and every instance, this one included, broadcasts what it receives.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.StartTipSubscriber(ctx, h.relay); err != nil {
		return err
	}
	h.mu.Lock()
	h.notifier = n
	h.mu.Unlock()
	return nil
}

// Dispatch delivers a tip event to subscribers, through Redis when wired.
func (h *Hub) Dispatch(ctx context.Context, ev tipping.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "Failed to encode tip event", slog.String("error", err.Error()))
		return
	}
	msg, _ := json.Marshal(Message{Type: "tip_event", PostID: ev.PostID, Payload: payload})

	h.mu.RLock()
	n := h.notifier
	h.mu.RUnlock()

	if n.Enabled() {
		err := n.PublishTip(ctx, msg)
		if err == nil {
			return
		}
		middleware.Logger.WarnContext(ctx, "Failed to publish tip event, delivering locally",
			slog.String("post_id", ev.PostID),
			slog.String("error", err.Error()),
		)
	}
	h.Broadcast(ev.PostID, msg)
}

// Listener adapts Dispatch to the tipping event hook.
func (h *Hub) Listener(ctx context.Context) tipping.Listener {
	return func(ev tipping.Event) {
		h.Dispatch(ctx, ev)
	}
}

// Shutdown closes every send queue; each WritePump then sends a close frame
// and drops its connection.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.Send)
		observability.WebSocketConnections.Dec()
	}
	return nil
}
