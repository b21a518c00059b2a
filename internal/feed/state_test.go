package feed

import (
	"context"
	"errors"
	"testing"

	"aurafeed/internal/ledger"
	"aurafeed/internal/models"
	"aurafeed/internal/ranking"
	"aurafeed/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, src Source) (*State, *ledger.Store) {
	t.Helper()
	store := ledger.Open(context.Background(), storage.NewMemoryStore())
	st := NewState(src, store, nil)
	require.NoError(t, st.Refresh(context.Background()))
	return st, store
}

func ids(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestStateDefaultsToChronological(t *testing.T) {
	st, _ := newTestState(t, &countingSource{posts: samplePosts()})

	assert.False(t, st.Personalized())
	assert.Equal(t, ranking.Chronological, st.Mode())
	assert.Equal(t, []string{"2", "1"}, ids(st.Posts(st.Mode())))
}

func TestStateApplyTipMergesLedger(t *testing.T) {
	ctx := context.Background()
	st, store := newTestState(t, &countingSource{posts: samplePosts()})

	require.NoError(t, st.ApplyTip(ctx, models.TipInput{PostID: "1", AmountUSD: decimal.RequireFromString("0.46"), Note: "nice"}))

	post, ok := st.Post("1")
	require.True(t, ok)
	assert.Equal(t, 1, post.Tips)
	require.NotNil(t, post.LastTipUSD)
	assert.Equal(t, "0.46", post.LastTipUSD.String())
	assert.Equal(t, "nice", post.LastTipNote)
	assert.True(t, st.HasTipped("1"))
	assert.True(t, store.HasTipped("1"))

	require.NoError(t, st.ApplyTip(ctx, models.TipInput{PostID: "1", AmountUSD: decimal.RequireFromString("0.10")}))
	post, _ = st.Post("1")
	assert.Equal(t, 2, post.Tips)
	assert.Equal(t, "0.1", post.LastTipUSD.String())
}

func TestStateAddsLedgerCountToBaseTips(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestState(t, &countingSource{posts: samplePosts()})

	require.NoError(t, st.ApplyTip(ctx, models.TipInput{PostID: "2", AmountUSD: decimal.RequireFromString("1")}))
	post, _ := st.Post("2")
	assert.Equal(t, 4, post.Tips)

	// refreshing the base does not reconcile against the ledger
	require.NoError(t, st.Refresh(ctx))
	post, _ = st.Post("2")
	assert.Equal(t, 4, post.Tips)
}

func TestStatePersonalizedOrdering(t *testing.T) {
	ctx := context.Background()
	st, _ := newTestState(t, &countingSource{posts: samplePosts()})

	st.SetPersonalized(true)
	assert.Equal(t, []string{"2", "1"}, ids(st.Posts(st.Mode())), "tip count wins without ledger history")

	require.NoError(t, st.ApplyTip(ctx, models.TipInput{PostID: "1", AmountUSD: decimal.RequireFromString("0.01")}))
	assert.Equal(t, []string{"1", "2"}, ids(st.Posts(st.Mode())), "tipped posts lead")
	assert.Equal(t, []string{"2", "1"}, ids(st.Posts(ranking.Chronological)))

	assert.False(t, st.TogglePersonalized())
	assert.Equal(t, ranking.Chronological, st.Mode())
}

func TestStateApplyTipRequiresPostID(t *testing.T) {
	st, _ := newTestState(t, &countingSource{posts: samplePosts()})

	err := st.ApplyTip(context.Background(), models.TipInput{})
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestStateRefreshFailureKeepsPosts(t *testing.T) {
	src := &countingSource{posts: samplePosts()}
	st, _ := newTestState(t, src)

	src.err = errors.New("rpc down")
	err := st.Refresh(context.Background())
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "UNAVAILABLE", appErr.Code)
	assert.Len(t, st.Posts(ranking.Chronological), 2)
	assert.Equal(t, "counting", st.SourceName())

	_, ok := st.Post("missing")
	assert.False(t, ok)
}

func TestStatePostsAreCopies(t *testing.T) {
	st, _ := newTestState(t, &countingSource{posts: samplePosts()})

	posts := st.Posts(ranking.Chronological)
	posts[0].Tags[0] = "mutated"
	posts[0].Tips = 99

	again, _ := st.Post("2")
	assert.Equal(t, []string{"x"}, again.Tags)
	assert.Equal(t, 3, again.Tips)
}
