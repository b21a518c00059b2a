package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var auraLabels = labels["aura"]

func TestResolveGateway(t *testing.T) {
	f := NewMetadataFetcher("https://gw.example/ipfs", nil, nil)
	assert.Equal(t, "https://gw.example/ipfs/bafy123/meta.json", f.Resolve("ipfs://bafy123/meta.json"))
	assert.Equal(t, "https://gw.example/ipfs/bafy123", f.Resolve("ipfs://ipfs/bafy123"))
	assert.Equal(t, "https://host/x.json", f.Resolve("https://host/x.json"))

	def := NewMetadataFetcher("", nil, nil)
	assert.Equal(t, DefaultGateway+"cid", def.Resolve("ipfs://cid"))
}

func TestApplyMetadataDefaults(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got := applyMetadata(nil, auraLabels, "7", now)

	assert.Equal(t, "Aura Post #7", got.Title)
	assert.Equal(t, "Published via AuraPost.", got.Summary)
	assert.Equal(t, "No body content provided.", got.Body)
	assert.Equal(t, now, got.CreatedAt)
	assert.Empty(t, got.Tags)
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Cover)
}

func TestApplyMetadataPrefersContent(t *testing.T) {
	md := &Metadata{
		Name:        "Name",
		Description: "Description",
		CreatedAt:   []byte(`"2024-01-01T00:00:00Z"`),
		Tags:        []string{"outer"},
		Content: &Content{
			Title:     "Title",
			Summary:   "Summary",
			Body:      "Body",
			CreatedAt: []byte(`"2024-02-02T10:00:00Z"`),
			Tags:      []string{"inner"},
		},
		Media:         []Media{{URI: "ipfs://cover"}},
		CoverImageURL: "https://fallback/cover.png",
	}
	got := applyMetadata(md, labels["valeu"], "1", time.Now())

	assert.Equal(t, "Title", got.Title)
	assert.Equal(t, "Summary", got.Summary)
	assert.Equal(t, "Body", got.Body)
	assert.Equal(t, time.Date(2024, 2, 2, 10, 0, 0, 0, time.UTC), got.CreatedAt)
	assert.Equal(t, []string{"inner"}, got.Tags)
	assert.Equal(t, "ipfs://cover", got.Cover)
}

func TestApplyMetadataFallsBackToDescription(t *testing.T) {
	md := &Metadata{
		Name:          "Name",
		Description:   "Description",
		CreatedAt:     []byte(`1706745600`),
		CoverImageURL: "https://fallback/cover.png",
		Attributes: []Attribute{
			{TraitType: "tags", Value: "art"},
			{TraitType: "mood", Value: "calm"},
			{TraitType: "tags", Value: 3.0},
		},
	}
	got := applyMetadata(md, auraLabels, "2", time.Now())

	assert.Equal(t, "Name", got.Title)
	assert.Equal(t, "Description", got.Summary)
	assert.Equal(t, "Description", got.Body)
	assert.Equal(t, time.Unix(1706745600, 0).UTC(), got.CreatedAt)
	assert.Equal(t, []string{"art"}, got.Tags)
	assert.Equal(t, "https://fallback/cover.png", got.Cover)
}

func TestParseCreatedAt(t *testing.T) {
	fallback := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), parseCreatedAt("2024-03-01", fallback))
	assert.Equal(t, time.UnixMilli(1709251200000).UTC(), parseCreatedAt("1709251200000", fallback))
	assert.Equal(t, fallback, parseCreatedAt("yesterday", fallback))
	assert.Equal(t, fallback, parseCreatedAt("", fallback))
}

func TestFetchCachesSuccessfulResponses(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/ipfs/cid1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Hello","content":{"body":"World"}}`))
	}))
	defer srv.Close()

	f := NewMetadataFetcher(srv.URL+"/ipfs/", srv.Client(), nil)
	for i := 0; i < 3; i++ {
		md, err := f.Fetch(context.Background(), "ipfs://cid1")
		require.NoError(t, err)
		assert.Equal(t, "Hello", md.Name)
		assert.Equal(t, "World", md.Content.Body)
	}
	assert.EqualValues(t, 1, hits.Load())
}

func TestFetchErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer srv.Close()

	f := NewMetadataFetcher("", srv.Client(), nil)
	ctx := context.Background()

	_, err := f.Fetch(ctx, "")
	assert.Error(t, err)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.ErrorContains(t, err, "unexpected status 404")

	_, err = f.Fetch(ctx, srv.URL+"/garbage")
	assert.ErrorContains(t, err, "decode metadata")

	// failures are not cached
	_, err = f.Fetch(ctx, srv.URL+"/missing")
	assert.Error(t, err)
	assert.EqualValues(t, 3, hits.Load())
}
