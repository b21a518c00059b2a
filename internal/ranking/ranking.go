// Package ranking orders feed posts for display.
package ranking

import (
	"fmt"
	"slices"
	"strings"

	"aurafeed/internal/models"
)

// Mode selects the ordering applied by Rank.
type Mode int

const (
	Chronological Mode = iota
	Personalized
)

func (m Mode) String() string {
	if m == Personalized {
		return "personalized"
	}
	return "chronological"
}

// ParseMode accepts "personalized" or "chronological"; empty means chronological.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "chronological":
		return Chronological, nil
	case "personalized":
		return Personalized, nil
	}
	return Chronological, fmt.Errorf("unknown ranking mode %q", s)
}

// Rank returns a new slice with posts ordered for mode; posts is not modified.
//
// Chronological orders by CreatedAt descending. Personalized puts posts in
// tipped first, then orders by Tips descending, then CreatedAt descending.
// Both are stable.
func Rank(posts []models.Post, tipped map[string]struct{}, mode Mode) []models.Post {
	out := slices.Clone(posts)
	if mode != Personalized {
		slices.SortStableFunc(out, byRecency)
		return out
	}

	slices.SortStableFunc(out, func(a, b models.Post) int {
		_, aTipped := tipped[a.ID]
		_, bTipped := tipped[b.ID]
		switch {
		case aTipped && !bTipped:
			return -1
		case !aTipped && bTipped:
			return 1
		}
		if a.Tips != b.Tips {
			if a.Tips > b.Tips {
				return -1
			}
			return 1
		}
		return byRecency(a, b)
	})
	return out
}

func byRecency(a, b models.Post) int {
	return b.CreatedAt.Compare(a.CreatedAt)
}
