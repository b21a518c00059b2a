package ranking

import (
	"math/rand"
	"testing"
	"time"

	"aurafeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ids(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Personalized")
	require.NoError(t, err)
	assert.Equal(t, Personalized, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Chronological, m)

	_, err = ParseMode("hot")
	assert.Error(t, err)
	assert.Equal(t, "personalized", Personalized.String())
}

func TestRankChronological(t *testing.T) {
	posts := []models.Post{
		{ID: "a", CreatedAt: day("2024-01-01")},
		{ID: "b", CreatedAt: day("2024-02-01")},
	}
	got := Rank(posts, map[string]struct{}{}, Chronological)
	assert.Equal(t, []string{"b", "a"}, ids(got))
	assert.Equal(t, []string{"a", "b"}, ids(posts), "input untouched")
}

func TestRankChronologicalIsStable(t *testing.T) {
	same := day("2024-01-01")
	posts := []models.Post{
		{ID: "x", CreatedAt: same},
		{ID: "y", CreatedAt: day("2024-03-01")},
		{ID: "z", CreatedAt: same},
		{ID: "w", CreatedAt: same},
	}
	assert.Equal(t, []string{"y", "x", "z", "w"}, ids(Rank(posts, nil, Chronological)))
}

func TestRankPersonalized(t *testing.T) {
	posts := []models.Post{
		{ID: "popular", Tips: 40, CreatedAt: day("2024-01-01")},
		{ID: "tipped-old", Tips: 1, CreatedAt: day("2023-01-01")},
		{ID: "fresh", Tips: 0, CreatedAt: day("2024-05-01")},
		{ID: "tipped-new", Tips: 1, CreatedAt: day("2024-04-01")},
		{ID: "tipped-many", Tips: 9, CreatedAt: day("2022-01-01")},
	}
	tipped := map[string]struct{}{"tipped-old": {}, "tipped-new": {}, "tipped-many": {}}

	got := Rank(posts, tipped, Personalized)
	assert.Equal(t, []string{"tipped-many", "tipped-new", "tipped-old", "popular", "fresh"}, ids(got))
}

func TestRankPersonalizedProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := day("2024-01-01")

	for iter := 0; iter < 200; iter++ {
		n := rng.Intn(12)
		posts := make([]models.Post, n)
		tipped := map[string]struct{}{}
		for i := range posts {
			posts[i] = models.Post{
				ID:        string(rune('a' + i)),
				Tips:      rng.Intn(3),
				CreatedAt: base.Add(time.Duration(rng.Intn(3)) * 24 * time.Hour),
			}
			if rng.Intn(2) == 0 {
				tipped[posts[i].ID] = struct{}{}
			}
		}

		got := Rank(posts, tipped, Personalized)
		require.ElementsMatch(t, ids(posts), ids(got))

		seenUntipped := false
		for _, p := range got {
			_, isTipped := tipped[p.ID]
			if !isTipped {
				seenUntipped = true
			} else {
				require.False(t, seenUntipped, "tipped post %s after untipped", p.ID)
			}
		}

		// Equal keys keep input order.
		index := map[string]int{}
		for i, p := range posts {
			index[p.ID] = i
		}
		for i := 1; i < len(got); i++ {
			a, b := got[i-1], got[i]
			_, at := tipped[a.ID]
			_, bt := tipped[b.ID]
			if at == bt && a.Tips == b.Tips && a.CreatedAt.Equal(b.CreatedAt) {
				require.Less(t, index[a.ID], index[b.ID])
			}
		}

		assert.Equal(t, ids(got), ids(Rank(posts, tipped, Personalized)), "deterministic")
	}
}
