package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"aurafeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSourceEmbeddedDataset(t *testing.T) {
	src := NewMockSource("")
	assert.Equal(t, "mock", src.Name())

	posts, err := src.FetchPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 6)

	for i, p := range posts {
		assert.Equal(t, models.FlavorMock, p.Flavor)
		assert.NotEmpty(t, p.Title)
		assert.False(t, p.CreatedAt.IsZero())
		if i > 0 {
			assert.False(t, p.CreatedAt.After(posts[i-1].CreatedAt), "newest first")
		}
	}
	assert.Equal(t, "6", posts[0].ID)

	var withTBA int
	for _, p := range posts {
		if p.HasTBA() {
			withTBA++
		}
	}
	assert.Equal(t, 1, withTBA)
}

func TestMockSourceYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- id: a
  title: Older
  creatorAddress: "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
  createdAt: 2024-01-01T00:00:00Z
  tips: 2
- id: b
  title: Newer
  creatorAddress: "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
  createdAt: 2024-06-01T00:00:00Z
  tags: [x]
`), 0o644))

	posts, err := NewMockSource(path).FetchPosts(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "b", posts[0].ID)
	assert.Equal(t, "a", posts[1].ID)
	assert.Equal(t, 2, posts[1].Tips)
	assert.Equal(t, []string{}, posts[1].Tags)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), posts[0].CreatedAt)
}

func TestMockSourceMissingFile(t *testing.T) {
	_, err := NewMockSource(filepath.Join(t.TempDir(), "nope.json")).FetchPosts(context.Background())
	assert.ErrorContains(t, err, "read mock dataset")
}

func TestEncodeDatasetReadsBack(t *testing.T) {
	posts, err := NewMockSource("").FetchPosts(context.Background())
	require.NoError(t, err)

	raw, err := EncodeDataset(posts, "json")
	require.NoError(t, err)
	again, err := DecodeDataset(raw, "json")
	require.NoError(t, err)
	assert.Equal(t, posts, again)
}
