// Package ledger persists the local tip ledger: one TipRecord per post the
// user has tipped, stored per origin under a versioned key.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"aurafeed/internal/middleware"
	"aurafeed/internal/models"
	"aurafeed/internal/observability"
	"aurafeed/internal/storage"
	"aurafeed/internal/tipamount"

	"github.com/shopspring/decimal"
)

// Source describes where Load found the ledger.
type Source string

const (
	SourceCurrent Source = "current"
	SourceRecords Source = "v2"
	SourceIDList  Source = "v1"
	SourceEmpty   Source = "empty"
)

// Store owns the in-memory LedgerState and writes every change through to
// storage. In-memory state stays authoritative when a write fails.
type Store struct {
	mu      sync.Mutex
	storage storage.Store
	state   models.LedgerState
	source  Source
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for storage failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open loads the ledger from st, migrating a legacy key if one is found.
func Open(ctx context.Context, st storage.Store, opts ...Option) *Store {
	s := &Store{
		storage: st,
		logger:  middleware.Logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state, s.source = s.load(ctx)
	return s
}

// Reload re-reads storage, replacing the in-memory state.
func (s *Store) Reload(ctx context.Context) models.LedgerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state, s.source = s.load(ctx)
	return s.state.Clone()
}

// Source reports where the most recent load found its data.
func (s *Store) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Store) load(ctx context.Context) (models.LedgerState, Source) {
	if raw, ok := s.read(ctx, CurrentKey); ok {
		state, err := decodeCurrent(raw)
		if err == nil {
			return state, SourceCurrent
		}
		s.logger.WarnContext(ctx, "Ignoring malformed ledger", slog.String("key", CurrentKey), slog.String("error", err.Error()))
	}

	now := s.now().UTC()
	legacy := []struct {
		key     string
		source  Source
		migrate func([]byte) (models.LedgerState, error)
	}{
		{LegacyRecordsKey, SourceRecords, func(raw []byte) (models.LedgerState, error) {
			return migrateRecords(raw, now)
		}},
		{LegacyIDListKey, SourceIDList, func(raw []byte) (models.LedgerState, error) {
			return migrateIDList(raw, tipamount.MinUSD, now)
		}},
	}

	for i, l := range legacy {
		raw, ok := s.read(ctx, l.key)
		if !ok {
			continue
		}
		state, err := l.migrate(raw)
		if err != nil {
			s.logger.WarnContext(ctx, "Ignoring malformed legacy ledger", slog.String("key", l.key), slog.String("error", err.Error()))
			continue
		}

		observability.LedgerMigrations.WithLabelValues(string(l.source)).Inc()
		s.logger.InfoContext(ctx, "Migrated legacy ledger",
			slog.String("from", l.key),
			slog.Int("records", len(state.Records)),
		)
		// Older keys go too; they would otherwise resurface if the current
		// key is later found corrupt.
		if s.persist(ctx, state) {
			for _, old := range legacy[i:] {
				if err := s.storage.Delete(ctx, old.key); err != nil {
					s.logger.WarnContext(ctx, "Failed to remove legacy ledger key", slog.String("key", old.key), slog.String("error", err.Error()))
				}
			}
		}
		return state, l.source
	}

	return models.EmptyLedgerState(), SourceEmpty
}

func (s *Store) read(ctx context.Context, key string) ([]byte, bool) {
	raw, err := s.storage.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to read ledger", slog.String("key", key), slog.String("error", err.Error()))
		return nil, false
	}
	if len(raw) == 0 {
		return nil, false
	}
	return raw, true
}

// persist writes state under the current key. Failures are logged and counted.
func (s *Store) persist(ctx context.Context, state models.LedgerState) bool {
	raw, err := encodeCurrent(state)
	if err == nil {
		err = s.storage.Set(ctx, CurrentKey, raw)
	}
	if err != nil {
		observability.LedgerPersistErrors.Inc()
		s.logger.WarnContext(ctx, "Failed to persist ledger", slog.String("error", err.Error()))
		return false
	}
	return true
}

// RegisterTip records one confirmed tip for postID and persists the ledger
// before returning the updated state.
func (s *Store) RegisterTip(ctx context.Context, postID string, amountUSD decimal.Decimal, note string) models.LedgerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if postID == "" {
		return s.state.Clone()
	}
	if amountUSD.IsNegative() {
		amountUSD = decimal.Zero
	}

	now := s.now().UTC()
	rec, ok := s.state.Records[postID]
	if ok {
		rec.TotalTips++
	} else {
		rec = models.TipRecord{PostID: postID, TotalTips: 1}
	}
	rec.LastAmountUSD = amountUSD
	rec.LastNote = note
	rec.LastUpdatedAt = now

	if s.state.Records == nil {
		s.state.Records = map[string]models.TipRecord{}
	}
	s.state.Records[postID] = rec
	s.state.LastUpdatedAt = now

	s.persist(ctx, s.state)
	return s.state.Clone()
}

// HasTipped reports whether the ledger holds a record for postID.
func (s *Store) HasTipped(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.state.Records[postID]
	return ok
}

// GetTip returns the record for postID.
func (s *Store) GetTip(postID string) (models.TipRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.state.Records[postID]
	return rec, ok
}

// State returns a deep copy of the current ledger.
func (s *Store) State() models.LedgerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// TippedIDs returns the set of tipped post ids.
func (s *Store) TippedIDs() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make(map[string]struct{}, len(s.state.Records))
	for id := range s.state.Records {
		ids[id] = struct{}{}
	}
	return ids
}

// Records returns all records, most recently updated first.
func (s *Store) Records() []models.TipRecord {
	s.mu.Lock()
	out := make([]models.TipRecord, 0, len(s.state.Records))
	for _, rec := range s.state.Records {
		out = append(out, rec)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUpdatedAt.Equal(out[j].LastUpdatedAt) {
			return out[i].LastUpdatedAt.After(out[j].LastUpdatedAt)
		}
		return out[i].PostID < out[j].PostID
	})
	return out
}
