package feed

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"aurafeed/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed data/db.json
var defaultDataset []byte

// MockSource serves a static dataset, either the embedded default or a
// JSON/YAML file.
type MockSource struct {
	path string
}

// NewMockSource reads path on every fetch; an empty path uses the embedded dataset.
func NewMockSource(path string) *MockSource {
	return &MockSource{path: path}
}

func (s *MockSource) Name() string { return string(models.FlavorMock) }

func (s *MockSource) FetchPosts(_ context.Context) ([]models.Post, error) {
	raw, format := defaultDataset, "json"
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("read mock dataset: %w", err)
		}
		raw = b
		switch strings.ToLower(filepath.Ext(s.path)) {
		case ".yml", ".yaml":
			format = "yaml"
		}
	}
	return DecodeDataset(raw, format)
}

// DecodeDataset parses a dataset in "json" or "yaml" and returns its posts newest first.
func DecodeDataset(raw []byte, format string) ([]models.Post, error) {
	var posts []models.Post
	var err error
	if format == "yaml" {
		err = yaml.Unmarshal(raw, &posts)
	} else {
		var items []mockPost
		if err = json.Unmarshal(raw, &items); err == nil {
			posts = make([]models.Post, 0, len(items))
			for _, it := range items {
				posts = append(posts, it.toPost())
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("decode mock dataset: %w", err)
	}

	for i := range posts {
		posts[i].Flavor = models.FlavorMock
		posts[i].CreatedAt = posts[i].CreatedAt.UTC()
		if posts[i].Tags == nil {
			posts[i].Tags = []string{}
		}
	}
	sortNewestFirst(posts)
	return posts, nil
}

// EncodeDataset writes posts in the dataset format DecodeDataset reads.
func EncodeDataset(posts []models.Post, format string) ([]byte, error) {
	if format == "yaml" {
		return yaml.Marshal(posts)
	}
	items := make([]mockPost, 0, len(posts))
	for _, p := range posts {
		items = append(items, fromPost(p))
	}
	return json.MarshalIndent(items, "", "  ")
}

// mockPost is the camelCase on-disk shape of a dataset entry.
type mockPost struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Body           string   `json:"body"`
	CreatorAddress string   `json:"creatorAddress"`
	Tags           []string `json:"tags"`
	CoverImageURL  string   `json:"coverImageUrl,omitempty"`
	CreatedAt      string   `json:"createdAt"`
	Tips           int      `json:"tips"`
	TBAAddress     string   `json:"tbaAddress,omitempty"`
}

func (m mockPost) toPost() models.Post {
	return models.Post{
		ID:             m.ID,
		Title:          m.Title,
		Summary:        m.Summary,
		Body:           m.Body,
		CreatorAddress: m.CreatorAddress,
		Tags:           m.Tags,
		CoverImageURL:  m.CoverImageURL,
		CreatedAt:      parseCreatedAt(m.CreatedAt, zeroTime),
		Tips:           m.Tips,
		TBAAddress:     m.TBAAddress,
	}
}

func fromPost(p models.Post) mockPost {
	return mockPost{
		ID:             p.ID,
		Title:          p.Title,
		Summary:        p.Summary,
		Body:           p.Body,
		CreatorAddress: p.CreatorAddress,
		Tags:           p.Tags,
		CoverImageURL:  p.CoverImageURL,
		CreatedAt:      p.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Tips:           p.Tips,
		TBAAddress:     p.TBAAddress,
	}
}
