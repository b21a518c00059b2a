package seed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"aurafeed/internal/feed"
	"aurafeed/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestFactoryIsDeterministic(t *testing.T) {
	opts := Options{Count: 10, Seed: 42, Now: fixedNow, TBAEvery: 3}
	a := NewFactory(opts).Posts()
	b := NewFactory(opts).Posts()
	assert.Equal(t, a, b)

	c := NewFactory(Options{Count: 10, Seed: 7, Now: fixedNow}).Posts()
	assert.NotEqual(t, a, c)
}

func TestFactoryPosts(t *testing.T) {
	posts := NewFactory(Options{Count: 12, Seed: 1, Now: fixedNow, MaxDays: 30, Creators: 2, TBAEvery: 4}).Posts()
	require.Len(t, posts, 12)

	creators := map[string]struct{}{}
	var withTBA int
	for i, p := range posts {
		assert.Equal(t, models.FlavorMock, p.Flavor)
		assert.NotEmpty(t, p.Title)
		assert.NotEmpty(t, p.Tags)
		assert.True(t, common.IsHexAddress(p.CreatorAddress))
		assert.False(t, p.CreatedAt.After(fixedNow))
		assert.False(t, p.CreatedAt.Before(fixedNow.Add(-30*24*time.Hour)))
		if i > 0 {
			assert.False(t, p.CreatedAt.After(posts[i-1].CreatedAt))
		}
		if p.HasTBA() {
			withTBA++
		}
		creators[p.CreatorAddress] = struct{}{}
	}
	assert.Equal(t, 3, withTBA)
	assert.LessOrEqual(t, len(creators), 2)
}

func TestBuildPostOverrides(t *testing.T) {
	p := NewFactory(Options{Seed: 3, Now: fixedNow}).BuildPost(9, func(p *models.Post) {
		p.Title = "Pinned"
		p.Tips = 0
	})
	assert.Equal(t, "9", p.ID)
	assert.Equal(t, "Pinned", p.Title)
	assert.Zero(t, p.Tips)
}

func TestWriteDatasetLoadsAsMockSource(t *testing.T) {
	posts := NewFactory(Options{Count: 5, Seed: 9, Now: fixedNow}).Posts()

	for _, name := range []string{"out/posts.json", "out/posts.yaml"} {
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, WriteDataset(path, posts))

		loaded, err := feed.NewMockSource(path).FetchPosts(context.Background())
		require.NoError(t, err)
		require.Len(t, loaded, 5)
		for i := range posts {
			assert.Equal(t, posts[i].ID, loaded[i].ID, name)
			assert.Equal(t, posts[i].Title, loaded[i].Title, name)
			assert.True(t, posts[i].CreatedAt.Equal(loaded[i].CreatedAt), name)
		}
	}
}
