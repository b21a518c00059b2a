package feed

import (
	"context"
	"log/slog"
	"sync"

	"aurafeed/internal/ledger"
	"aurafeed/internal/middleware"
	"aurafeed/internal/models"
	"aurafeed/internal/observability"
	"aurafeed/internal/ranking"

	"go.opentelemetry.io/otel/attribute"
)

// State is the live feed: the base posts from a source merged with the local
// tip ledger, ranked on read.
type State struct {
	source Source
	ledger *ledger.Store
	logger *slog.Logger

	mu           sync.RWMutex
	base         []models.Post
	personalized bool
}

// NewState builds a chronological feed over source and ledger. Posts are
// empty until the first Refresh.
func NewState(source Source, store *ledger.Store, logger *slog.Logger) *State {
	if logger == nil {
		logger = middleware.Logger
	}
	return &State{source: source, ledger: store, logger: logger}
}

// SourceName names the configured post source.
func (s *State) SourceName() string { return s.source.Name() }

// Refresh replaces the base posts with a fresh fetch. On error the previous
// posts are kept.
func (s *State) Refresh(ctx context.Context) error {
	span, ctx := observability.StartSpan(ctx, "feed.refresh", attribute.String("feed.source", s.source.Name()))
	defer span.End()

	posts, err := s.source.FetchPosts(ctx)
	if err != nil {
		span.SetError(err)
		s.logger.ErrorContext(ctx, "Failed to fetch posts",
			slog.String("source", s.source.Name()),
			slog.String("error", err.Error()),
		)
		return models.NewUnavailableError("Failed to load posts", err)
	}
	span.AddAttributes(attribute.Int("feed.posts", len(posts)))

	base := make([]models.Post, len(posts))
	for i, p := range posts {
		base[i] = p.Clone()
	}

	s.mu.Lock()
	s.base = base
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Feed refreshed",
		slog.String("source", s.source.Name()),
		slog.Int("posts", len(base)),
	)
	return nil
}

// Personalized reports the current ordering mode toggle.
func (s *State) Personalized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.personalized
}

// SetPersonalized switches between personalized and chronological ordering.
func (s *State) SetPersonalized(on bool) {
	s.mu.Lock()
	s.personalized = on
	s.mu.Unlock()
}

// TogglePersonalized flips the ordering mode and returns the new setting.
func (s *State) TogglePersonalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personalized = !s.personalized
	return s.personalized
}

// Mode returns the ordering mode selected by the toggle.
func (s *State) Mode() ranking.Mode {
	if s.Personalized() {
		return ranking.Personalized
	}
	return ranking.Chronological
}

// Posts returns the merged posts ranked by mode.
func (s *State) Posts(mode ranking.Mode) []models.Post {
	return ranking.Rank(s.merged(), s.ledger.TippedIDs(), mode)
}

// Post returns one merged post.
func (s *State) Post(id string) (models.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.base {
		if p.ID == id {
			return s.merge(p), true
		}
	}
	return models.Post{}, false
}

// HasTipped reports whether the ledger holds a record for postID.
func (s *State) HasTipped(postID string) bool {
	return s.ledger.HasTipped(postID)
}

// ApplyTip records a settled tip. The ledger carries the count, so the merged
// post gains exactly one tip and the last tip fields.
func (s *State) ApplyTip(ctx context.Context, tip models.TipInput) error {
	if tip.PostID == "" {
		return models.NewValidationError("post id is required")
	}
	s.ledger.RegisterTip(ctx, tip.PostID, tip.AmountUSD, tip.Note)
	return nil
}

func (s *State) merged() []models.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Post, len(s.base))
	for i, p := range s.base {
		out[i] = s.merge(p)
	}
	return out
}

func (s *State) merge(p models.Post) models.Post {
	out := p.Clone()
	rec, ok := s.ledger.GetTip(p.ID)
	if !ok {
		return out
	}
	out.Tips = p.Tips + rec.TotalTips
	amount := rec.LastAmountUSD
	out.LastTipUSD = &amount
	if rec.LastNote != "" {
		out.LastTipNote = rec.LastNote
	}
	return out
}
