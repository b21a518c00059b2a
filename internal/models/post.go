// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Flavor identifies which post source produced a post.
type Flavor string

// Known post flavors.
const (
	FlavorMock  Flavor = "mock"
	FlavorAura  Flavor = "aura"
	FlavorValeu Flavor = "valeu"
)

// Post is the display projection of a feed post. Contract flavors share the
// same shape; TBAAddress is only set for flavors that derive a token-bound
// account for the post.
type Post struct {
	ID             string           `json:"id" yaml:"id"`
	Flavor         Flavor           `json:"flavor" yaml:"flavor"`
	TokenID        string           `json:"token_id,omitempty" yaml:"tokenId"`
	Title          string           `json:"title" yaml:"title"`
	Summary        string           `json:"summary" yaml:"summary"`
	Body           string           `json:"body" yaml:"body"`
	CreatorAddress string           `json:"creator_address" yaml:"creatorAddress"`
	Tags           []string         `json:"tags" yaml:"tags"`
	CoverImageURL  string           `json:"cover_image_url,omitempty" yaml:"coverImageUrl"`
	CreatedAt      time.Time        `json:"created_at" yaml:"createdAt"`
	Tips           int              `json:"tips" yaml:"tips"`
	LastTipUSD     *decimal.Decimal `json:"last_tip_usd,omitempty" yaml:"-"`
	LastTipNote    string           `json:"last_tip_note,omitempty" yaml:"-"`
	TokenURI       string           `json:"token_uri,omitempty" yaml:"tokenUri"`
	ContentHash    string           `json:"content_hash,omitempty" yaml:"contentHash"`
	TBAAddress     string           `json:"tba_address,omitempty" yaml:"tbaAddress"`
}

// HasTBA reports whether the post carries a token-bound account address.
func (p Post) HasTBA() bool {
	return common.IsHexAddress(p.TBAAddress)
}

// TipRecipient returns the on-chain address a tip for this post is sent to:
// the token-bound account when present, otherwise the creator address.
func (p Post) TipRecipient() (common.Address, bool) {
	if p.HasTBA() {
		return common.HexToAddress(p.TBAAddress), true
	}
	if common.IsHexAddress(p.CreatorAddress) {
		return common.HexToAddress(p.CreatorAddress), true
	}
	return common.Address{}, false
}

// Clone returns a copy of the post that shares no mutable state with p.
func (p Post) Clone() Post {
	out := p
	if p.Tags != nil {
		out.Tags = append([]string(nil), p.Tags...)
	}
	if p.LastTipUSD != nil {
		v := *p.LastTipUSD
		out.LastTipUSD = &v
	}
	return out
}

// ShortAddress truncates an address for display ("0x1234…abcd").
func ShortAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}
