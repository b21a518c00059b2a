package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"aurafeed/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// FeedSnapshotKey is the cache key for the fetched post list of a source.
func FeedSnapshotKey(source string) string {
	return "aurafeed:feed:" + source
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found or rdb is nil.
func GetJSON(ctx context.Context, rdb redis.Cmdable, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	s, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(s, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, rdb redis.Cmdable, key string, v any, ttl time.Duration) error {
	if rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, b, ttl).Err()
}

// Invalidate removes key from the cache.
func Invalidate(ctx context.Context, rdb redis.Cmdable, key string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, key).Err()
}

// Aside tries Redis first; on a miss or a read error it calls fetch (which must
// populate dest) and stores the result with ttl. Cache writes are best-effort.
func Aside(ctx context.Context, rdb redis.Cmdable, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, rdb, key, dest)
	switch {
	case err != nil:
		middleware.CacheLookups.WithLabelValues("error").Inc()
	case found:
		middleware.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	default:
		middleware.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, rdb, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "Failed to write cache entry", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}
