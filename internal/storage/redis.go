package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps values under "aurafeed:storage:<namespace>:<key>".
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// NewRedisStore scopes rdb to origin.
func NewRedisStore(rdb redis.Cmdable, origin string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "aurafeed:storage:" + Namespace(origin) + ":"}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, s.prefix+key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
