// Package seed generates demo post datasets for the mock feed source.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"aurafeed/internal/feed"
	"aurafeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/ethereum/go-ethereum/common"
)

var topics = []string{"ledger", "tipping", "erc6551", "sepolia", "ipfs", "design", "ux", "digest", "integrity", "testing"}

// Options tune a generated dataset.
type Options struct {
	Count   int
	Seed    int64
	MaxDays int
	// Creators is the number of distinct creator addresses to spread posts over.
	Creators int
	// TBAEvery gives every Nth post a token-bound account. Zero disables it.
	TBAEvery int
	Now      time.Time
}

// Factory builds posts from a seeded faker, so equal options give equal output.
type Factory struct {
	faker    *gofakeit.Faker
	opts     Options
	creators []common.Address
}

func NewFactory(opts Options) *Factory {
	if opts.Count <= 0 {
		opts.Count = 6
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 90
	}
	if opts.Creators <= 0 {
		opts.Creators = 3
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	f := &Factory{faker: gofakeit.New(opts.Seed), opts: opts}
	for i := 0; i < opts.Creators; i++ {
		f.creators = append(f.creators, f.address())
	}
	return f
}

func (f *Factory) address() common.Address {
	var b [common.AddressLength]byte
	for i := range b {
		b[i] = f.faker.Uint8()
	}
	return common.BytesToAddress(b[:])
}

// BuildPost constructs post number id. Overrides run last.
func (f *Factory) BuildPost(id int, overrides ...func(*models.Post)) models.Post {
	fk := f.faker
	title := strings.TrimSuffix(fk.Sentence(fk.Number(4, 8)), ".")

	minsBack := fk.Number(0, f.opts.MaxDays*24*60)
	post := models.Post{
		ID:             strconv.Itoa(id),
		Flavor:         models.FlavorMock,
		Title:          title,
		Summary:        fk.Sentence(10),
		Body:           fk.Paragraph(2, 3, 12, "\n\n"),
		CreatorAddress: f.creators[fk.Number(0, len(f.creators)-1)].Hex(),
		Tags:           f.tags(),
		CreatedAt:      f.opts.Now.Add(-time.Duration(minsBack) * time.Minute).Truncate(time.Millisecond),
		Tips:           fk.Number(0, 12),
	}
	if fk.Bool() {
		post.CoverImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/450", fk.UUID())
	}
	if f.opts.TBAEvery > 0 && id%f.opts.TBAEvery == 0 {
		post.TBAAddress = f.address().Hex()
	}

	for _, override := range overrides {
		override(&post)
	}
	return post
}

func (f *Factory) tags() []string {
	n := f.faker.Number(1, 3)
	out := make([]string, 0, n)
	for len(out) < n {
		t := topics[f.faker.Number(0, len(topics)-1)]
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Posts builds Count posts with ids 1..Count, newest first.
func (f *Factory) Posts() []models.Post {
	posts := make([]models.Post, 0, f.opts.Count)
	for i := 1; i <= f.opts.Count; i++ {
		posts = append(posts, f.BuildPost(i))
	}
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return posts
}

// WriteDataset writes posts to path as YAML for .yml/.yaml and JSON otherwise.
func WriteDataset(path string, posts []models.Post) error {
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		format = "yaml"
	}
	raw, err := feed.EncodeDataset(posts, format)
	if err != nil {
		return fmt.Errorf("encode dataset: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dataset directory: %w", err)
		}
	}
	return os.WriteFile(path, raw, 0o644)
}
