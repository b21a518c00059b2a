package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TipRecord is the locally recorded tip history for one post.
type TipRecord struct {
	PostID        string          `json:"postId"`
	TotalTips     int             `json:"totalTips"`
	LastAmountUSD decimal.Decimal `json:"lastAmountUsd"`
	LastNote      string          `json:"lastNote,omitempty"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// LedgerState is the full persisted tip ledger for one origin.
type LedgerState struct {
	Records       map[string]TipRecord `json:"records"`
	LastUpdatedAt time.Time            `json:"lastUpdatedAt"`
}

// EmptyLedgerState returns a ledger with no records, last updated at the Unix epoch.
func EmptyLedgerState() LedgerState {
	return LedgerState{
		Records:       map[string]TipRecord{},
		LastUpdatedAt: time.Unix(0, 0).UTC(),
	}
}

// Clone returns a deep copy of the state.
func (s LedgerState) Clone() LedgerState {
	out := LedgerState{
		Records:       make(map[string]TipRecord, len(s.Records)),
		LastUpdatedAt: s.LastUpdatedAt,
	}
	for id, rec := range s.Records {
		out.Records[id] = rec
	}
	return out
}

// TipInput describes a settled tip handed to the feed for reconciliation.
type TipInput struct {
	PostID    string          `json:"post_id"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	Note      string          `json:"note,omitempty"`
}

// TransactionResult is the outcome of a settled on-chain tip.
type TransactionResult struct {
	Hash      string `json:"hash"`
	Confirmed bool   `json:"confirmed"`
}
