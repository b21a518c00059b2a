package feed

import (
	"context"
	"time"

	"aurafeed/internal/cache"
	"aurafeed/internal/models"

	"github.com/redis/go-redis/v9"
)

// CachedSource keeps the last fetched post list in Redis for a short TTL.
// A nil client or a non-positive TTL passes every fetch through.
type CachedSource struct {
	inner Source
	rdb   redis.Cmdable
	ttl   time.Duration
}

func NewCachedSource(inner Source, rdb redis.Cmdable, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, rdb: rdb, ttl: ttl}
}

func (s *CachedSource) Name() string { return s.inner.Name() }

func (s *CachedSource) FetchPosts(ctx context.Context) ([]models.Post, error) {
	if s.rdb == nil || s.ttl <= 0 {
		return s.inner.FetchPosts(ctx)
	}
	var posts []models.Post
	err := cache.Aside(ctx, s.rdb, cache.FeedSnapshotKey(s.inner.Name()), &posts, s.ttl, func() error {
		fetched, err := s.inner.FetchPosts(ctx)
		if err != nil {
			return err
		}
		posts = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Invalidate drops the cached snapshot so the next fetch reaches the source.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return cache.Invalidate(ctx, s.rdb, cache.FeedSnapshotKey(s.inner.Name()))
}
