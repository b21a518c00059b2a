// Package cache provides Redis client setup and JSON caching helpers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aurafeed/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// client is shared by the feed snapshot cache, the redis ledger backend and
// the tip event fan-out.
var client *redis.Client

const (
	dialTimeout = 3 * time.Second
	pingTimeout = 5 * time.Second
)

// errorHook counts failed commands. redis.Nil is a cache miss, not an error.
type errorHook struct{}

func (errorHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countError(cmd.Name(), err)
		return err
	}
}

func (errorHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countError("pipeline", err)
		return err
	}
}

func countError(command string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(command).Inc()
	}
}

// NewClient builds a client for REDIS_URL, which may be host:port or a
// redis:// URL carrying credentials and a database number.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL %q: %w", addr, err)
		}
		opts = parsed
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = dialTimeout
	}

	c := redis.NewClient(opts)
	c.AddHook(errorHook{})
	return c, nil
}

// InitRedis connects and pings the shared client. Redis is optional: on
// failure it logs, leaves the shared client nil and returns nil.
func InitRedis(addr string) *redis.Client {
	c, err := connect(addr)
	if err != nil {
		middleware.Logger.Warn("Redis unavailable; running without feed cache or tip fan-out",
			slog.String("addr", addr),
			slog.String("error", err.Error()),
		)
		client = nil
		return nil
	}
	middleware.Logger.Info("Redis connected", slog.String("addr", c.Options().Addr))
	client = c
	return client
}

func connect(addr string) (*redis.Client, error) {
	c, err := NewClient(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// GetClient returns the shared Redis client, or nil when Redis is unavailable.
func GetClient() *redis.Client {
	return client
}
