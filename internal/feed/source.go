// Package feed loads posts from the configured source and merges them with
// the local tip ledger for display.
package feed

import (
	"context"
	"slices"

	"aurafeed/internal/models"
)

// Source supplies the base post collection.
type Source interface {
	Name() string
	FetchPosts(ctx context.Context) ([]models.Post, error)
}

// sortNewestFirst orders posts by CreatedAt descending, stable.
func sortNewestFirst(posts []models.Post) {
	slices.SortStableFunc(posts, func(a, b models.Post) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
