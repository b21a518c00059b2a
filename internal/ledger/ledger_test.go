package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"aurafeed/internal/models"
	"aurafeed/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() func() time.Time { return func() time.Time { return fixedNow } }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type failingStore struct {
	*storage.MemoryStore
	failSet bool
	failGet bool
}

func (f *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if f.failSet {
		return errors.New("quota exceeded")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.failGet {
		return nil, errors.New("backend down")
	}
	return f.MemoryStore.Get(ctx, key)
}

func TestOpenEmpty(t *testing.T) {
	s := Open(context.Background(), storage.NewMemoryStore(), WithClock(clock()))

	state := s.State()
	assert.Empty(t, state.Records)
	assert.True(t, state.LastUpdatedAt.Equal(time.Unix(0, 0)))
	assert.Equal(t, SourceEmpty, s.Source())
}

func TestRegisterTipAccumulates(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemoryStore(), WithClock(clock()))

	s.RegisterTip(ctx, "a", d("5.00"), "")
	state := s.RegisterTip(ctx, "a", d("2.50"), "thanks")

	rec, ok := s.GetTip("a")
	require.True(t, ok)
	assert.Equal(t, 2, rec.TotalTips)
	assert.True(t, rec.LastAmountUSD.Equal(d("2.50")))
	assert.Equal(t, "thanks", rec.LastNote)
	assert.Equal(t, fixedNow, rec.LastUpdatedAt)
	assert.Equal(t, fixedNow, state.LastUpdatedAt)

	assert.True(t, s.HasTipped("a"))
	assert.False(t, s.HasTipped("b"))
	_, ok = s.GetTip("b")
	assert.False(t, ok)
}

func TestRegisterTipPersists(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	s := Open(ctx, st, WithClock(clock()))
	s.RegisterTip(ctx, "a", d("1.25"), "")

	raw, err := st.Get(ctx, CurrentKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": 3,
		"records": {"a": {"postId":"a","totalTips":1,"lastAmountUsd":"1.25","lastUpdatedAt":"2024-03-01T12:00:00Z"}},
		"lastUpdatedAt": "2024-03-01T12:00:00Z"
	}`, string(raw))

	reopened := Open(ctx, st)
	assert.Equal(t, s.State(), reopened.State())
	assert.Equal(t, SourceCurrent, reopened.Source())
}

func TestRegisterTipIsMonotonicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemoryStore())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.RegisterTip(ctx, "hot", d("0.10"), "")
		}()
		go func(i int) {
			defer wg.Done()
			s.RegisterTip(ctx, fmt.Sprintf("other-%d", i%5), d("0.20"), "")
		}(i)
	}
	wg.Wait()

	rec, ok := s.GetTip("hot")
	require.True(t, ok)
	assert.Equal(t, n, rec.TotalTips)
	assert.Len(t, s.TippedIDs(), 6)
}

func TestRegisterTipSurvivesPersistFailure(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{MemoryStore: storage.NewMemoryStore(), failSet: true}
	s := Open(ctx, st)

	state := s.RegisterTip(ctx, "a", d("1"), "")
	assert.Equal(t, 1, state.Records["a"].TotalTips)
	assert.True(t, s.HasTipped("a"))

	_, err := st.MemoryStore.Get(ctx, CurrentKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRegisterTipIgnoresEmptyID(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, storage.NewMemoryStore())
	state := s.RegisterTip(ctx, "", d("1"), "")
	assert.Empty(t, state.Records)
}

func TestMigrateIDList(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(ctx, LegacyIDListKey,
		[]byte(`{"tippedPostIds":["p1","p2",7,null,"p1"],"lastUpdated":"2024-01-05T10:00:00.000Z"}`)))

	s := Open(ctx, st, WithClock(clock()))
	assert.Equal(t, SourceIDList, s.Source())

	want := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	records := s.State().Records
	require.Len(t, records, 2)
	for _, id := range []string{"p1", "p2"} {
		rec := records[id]
		assert.Equal(t, id, rec.PostID)
		assert.Equal(t, 1, rec.TotalTips)
		assert.True(t, rec.LastAmountUSD.Equal(d("0.01")))
		assert.True(t, rec.LastUpdatedAt.Equal(want))
	}

	_, err := st.Get(ctx, LegacyIDListKey)
	assert.ErrorIs(t, err, storage.ErrNotFound, "legacy key removed")
	_, err = st.Get(ctx, CurrentKey)
	assert.NoError(t, err)
}

func TestMigrateRecordsCopiesVerbatim(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(ctx, LegacyRecordsKey, []byte(`{
		"tips": [
			{"postId":"a","totalTips":4,"lastAmountUsd":3.25,"lastNote":"gm","lastUpdated":"2024-02-02T08:30:00Z"},
			{"postId":"b","totalTips":1,"lastAmountUsd":0.5,"lastUpdated":"2024-02-03T08:30:00Z"}
		],
		"lastUpdated": "2024-02-03T08:30:00Z"
	}`)))
	// An older ID list must not win over the newer legacy shape.
	require.NoError(t, st.Set(ctx, LegacyIDListKey, []byte(`{"tippedPostIds":["zzz"]}`)))

	s := Open(ctx, st, WithClock(clock()))
	assert.Equal(t, SourceRecords, s.Source())

	a, ok := s.GetTip("a")
	require.True(t, ok)
	assert.Equal(t, "a", a.PostID)
	assert.Equal(t, 4, a.TotalTips)
	assert.True(t, a.LastAmountUSD.Equal(d("3.25")))
	assert.Equal(t, "gm", a.LastNote)
	assert.True(t, a.LastUpdatedAt.Equal(time.Date(2024, 2, 2, 8, 30, 0, 0, time.UTC)))

	b, ok := s.GetTip("b")
	require.True(t, ok)
	assert.Equal(t, 1, b.TotalTips)
	assert.True(t, b.LastAmountUSD.Equal(d("0.5")))
	assert.False(t, s.HasTipped("zzz"))

	_, err := st.Get(ctx, LegacyRecordsKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMigrationRemovesOlderLegacyKeys(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(ctx, LegacyRecordsKey, []byte(`{"tips":[{"postId":"a","totalTips":2,"lastAmountUsd":1}]}`)))
	require.NoError(t, st.Set(ctx, LegacyIDListKey, []byte(`{"tippedPostIds":["p1","p2"]}`)))

	s := Open(ctx, st, WithClock(clock()))
	require.Equal(t, SourceRecords, s.Source())
	assert.Len(t, s.State().Records, 1)
	assert.Equal(t, []string{CurrentKey}, st.Keys())

	// A later corrupt current key must not bring the stale ID list back.
	require.NoError(t, st.Set(ctx, CurrentKey, []byte(`{broken`)))
	assert.Empty(t, s.Reload(ctx).Records)
	assert.Equal(t, SourceEmpty, s.Source())
	assert.False(t, s.HasTipped("p1"))
}

func TestMigrationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	require.NoError(t, st.Set(ctx, LegacyIDListKey, []byte(`{"tippedPostIds":["p1"],"lastUpdated":"2024-01-05T10:00:00Z"}`)))

	first := Open(ctx, st, WithClock(clock()))
	rawBefore, err := st.Get(ctx, CurrentKey)
	require.NoError(t, err)

	second := Open(ctx, st, WithClock(func() time.Time { return fixedNow.Add(time.Hour) }))
	rawAfter, err := st.Get(ctx, CurrentKey)
	require.NoError(t, err)

	assert.Equal(t, first.State(), second.State())
	assert.Equal(t, string(rawBefore), string(rawAfter))
	assert.Equal(t, SourceCurrent, second.Source())
}

func TestMalformedDataFallsThrough(t *testing.T) {
	ctx := context.Background()

	t.Run("corrupt current falls back to legacy", func(t *testing.T) {
		st := storage.NewMemoryStore()
		require.NoError(t, st.Set(ctx, CurrentKey, []byte(`{not json`)))
		require.NoError(t, st.Set(ctx, LegacyIDListKey, []byte(`{"tippedPostIds":["p9"]}`)))
		s := Open(ctx, st, WithClock(clock()))
		assert.True(t, s.HasTipped("p9"))
		rec, _ := s.GetTip("p9")
		assert.Equal(t, fixedNow, rec.LastUpdatedAt, "missing timestamp defaults to now")
	})

	t.Run("wrong version is ignored", func(t *testing.T) {
		st := storage.NewMemoryStore()
		require.NoError(t, st.Set(ctx, CurrentKey, []byte(`{"version":2,"records":{"a":{"totalTips":1}}}`)))
		s := Open(ctx, st)
		assert.Empty(t, s.State().Records)
	})

	t.Run("every key corrupt yields empty state", func(t *testing.T) {
		st := storage.NewMemoryStore()
		require.NoError(t, st.Set(ctx, CurrentKey, []byte(`[]`)))
		require.NoError(t, st.Set(ctx, LegacyRecordsKey, []byte(`{"tips":"nope"}`)))
		require.NoError(t, st.Set(ctx, LegacyIDListKey, []byte(`{"tippedPostIds":{}}`)))
		s := Open(ctx, st)
		assert.Equal(t, models.EmptyLedgerState(), s.State())
		assert.Equal(t, SourceEmpty, s.Source())
	})

	t.Run("read errors are treated as absent", func(t *testing.T) {
		st := &failingStore{MemoryStore: storage.NewMemoryStore(), failGet: true}
		s := Open(ctx, st)
		assert.Equal(t, SourceEmpty, s.Source())
	})
}

func TestMigrationKeepsLegacyKeyWhenPersistFails(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{MemoryStore: storage.NewMemoryStore()}
	require.NoError(t, st.MemoryStore.Set(ctx, LegacyIDListKey, []byte(`{"tippedPostIds":["p1"]}`)))
	st.failSet = true

	s := Open(ctx, st)
	assert.True(t, s.HasTipped("p1"))
	_, err := st.MemoryStore.Get(ctx, LegacyIDListKey)
	assert.NoError(t, err)
}

func TestRecordsOrderAndReload(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStore()
	now := fixedNow
	s := Open(ctx, st, WithClock(func() time.Time { return now }))

	s.RegisterTip(ctx, "old", d("1"), "")
	now = now.Add(time.Minute)
	s.RegisterTip(ctx, "new", d("2"), "")

	records := s.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "new", records[0].PostID)
	assert.Equal(t, "old", records[1].PostID)

	other := Open(ctx, st)
	other.RegisterTip(ctx, "third", d("3"), "")

	assert.False(t, s.HasTipped("third"))
	state := s.Reload(ctx)
	assert.Len(t, state.Records, 3)
	assert.True(t, s.HasTipped("third"))
}
