// Package notifications fans tip events out to WebSocket subscribers,
// across instances when Redis is available.
package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"aurafeed/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// TipsChannel carries tip events between instances.
const TipsChannel = "aurafeed:tips"

// Notifier publishes tip events to Redis. A nil client makes every call a no-op.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events travel through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishTip sends payload to every subscribed instance.
func (n *Notifier) PublishTip(ctx context.Context, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	return n.rdb.Publish(ctx, TipsChannel, payload).Err()
}

// StartTipSubscriber calls onMessage for every payload on TipsChannel until
// ctx is done. The subscription is confirmed before it returns.
func (n *Notifier) StartTipSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, TipsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", TipsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("Panic in tip subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()
	return nil
}
