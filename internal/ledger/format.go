package ledger

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"aurafeed/internal/models"

	"github.com/shopspring/decimal"
)

// Storage keys, newest first. Exactly one current key is authoritative.
const (
	CurrentKey       = "aura-tip-ledger-v3"
	LegacyRecordsKey = "aura-personalization-v2"
	LegacyIDListKey  = "aura-personalization-v1"

	CurrentVersion = 3
)

var errMalformed = errors.New("malformed ledger data")

type document struct {
	Version       int                         `json:"version"`
	Records       map[string]models.TipRecord `json:"records"`
	LastUpdatedAt time.Time                   `json:"lastUpdatedAt"`
}

func encodeCurrent(state models.LedgerState) ([]byte, error) {
	records := state.Records
	if records == nil {
		records = map[string]models.TipRecord{}
	}
	return json.Marshal(document{
		Version:       CurrentVersion,
		Records:       records,
		LastUpdatedAt: state.LastUpdatedAt,
	})
}

func decodeCurrent(raw []byte) (models.LedgerState, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.LedgerState{}, err
	}
	if doc.Version != CurrentVersion || doc.Records == nil {
		return models.LedgerState{}, errMalformed
	}
	state := models.LedgerState{
		Records:       make(map[string]models.TipRecord, len(doc.Records)),
		LastUpdatedAt: doc.LastUpdatedAt,
	}
	for id, rec := range doc.Records {
		if id == "" || rec.TotalTips < 0 {
			continue
		}
		if rec.PostID == "" {
			rec.PostID = id
		}
		state.Records[id] = rec
	}
	return state, nil
}

type legacyRecord struct {
	PostID        string          `json:"postId"`
	TotalTips     int             `json:"totalTips"`
	LastAmountUSD decimal.Decimal `json:"lastAmountUsd"`
	LastNote      string          `json:"lastNote,omitempty"`
	LastUpdated   string          `json:"lastUpdated"`
}

type legacyRecordsDoc struct {
	Tips        []legacyRecord `json:"tips"`
	LastUpdated string         `json:"lastUpdated"`
}

// migrateRecords copies per-post records from the intermediate shape unchanged.
func migrateRecords(raw []byte, now time.Time) (models.LedgerState, error) {
	var doc legacyRecordsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.LedgerState{}, err
	}
	if doc.Tips == nil {
		return models.LedgerState{}, errMalformed
	}
	state := models.LedgerState{
		Records:       make(map[string]models.TipRecord, len(doc.Tips)),
		LastUpdatedAt: parseTimestamp(doc.LastUpdated, now),
	}
	for _, tip := range doc.Tips {
		if tip.PostID == "" {
			continue
		}
		state.Records[tip.PostID] = models.TipRecord{
			PostID:        tip.PostID,
			TotalTips:     tip.TotalTips,
			LastAmountUSD: tip.LastAmountUSD,
			LastNote:      tip.LastNote,
			LastUpdatedAt: parseTimestamp(tip.LastUpdated, state.LastUpdatedAt),
		}
	}
	return state, nil
}

type legacyIDListDoc struct {
	TippedPostIDs []json.RawMessage `json:"tippedPostIds"`
	LastUpdated   string            `json:"lastUpdated"`
}

// migrateIDList synthesizes one record per tipped id at the nominal amount.
// Non-string entries are skipped and duplicates collapse.
func migrateIDList(raw []byte, nominal decimal.Decimal, now time.Time) (models.LedgerState, error) {
	var doc legacyIDListDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.LedgerState{}, err
	}
	if doc.TippedPostIDs == nil {
		return models.LedgerState{}, errMalformed
	}
	updated := parseTimestamp(doc.LastUpdated, now)
	state := models.LedgerState{
		Records:       make(map[string]models.TipRecord, len(doc.TippedPostIDs)),
		LastUpdatedAt: updated,
	}
	for _, item := range doc.TippedPostIDs {
		var id string
		if err := json.Unmarshal(item, &id); err != nil || id == "" {
			continue
		}
		state.Records[id] = models.TipRecord{
			PostID:        id,
			TotalTips:     1,
			LastAmountUSD: nominal,
			LastUpdatedAt: updated,
		}
	}
	return state, nil
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fallback
	}
	return t
}
