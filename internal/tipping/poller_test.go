package tipping

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedReceipts struct {
	results []error
	calls   int
}

func (s *scriptedReceipts) Receipt(context.Context, common.Hash) (*types.Receipt, error) {
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return nil, s.results[i]
	}
	return &types.Receipt{Status: 1}, nil
}

func TestPollerRetriesUntilReceipt(t *testing.T) {
	src := &scriptedReceipts{results: []error{ethereum.NotFound, errors.New("rpc hiccup"), ethereum.NotFound}}
	var waits []time.Duration
	p := Poller{Interval: 2 * time.Second, MaxAttempts: 10, Sleep: func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}}

	receipt, attempts, err := p.Wait(context.Background(), src, common.Hash{})
	require.NoError(t, err)
	assert.NotNil(t, receipt)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second, 2 * time.Second}, waits)
}

func TestPollerHasHardCeiling(t *testing.T) {
	src := &scriptedReceipts{results: make([]error, 100)}
	for i := range src.results {
		src.results[i] = ethereum.NotFound
	}
	p := Poller{Interval: time.Millisecond, MaxAttempts: 5, Sleep: func(context.Context, time.Duration) error { return nil }}

	_, attempts, err := p.Wait(context.Background(), src, common.Hash{})
	assert.ErrorIs(t, err, ErrReceiptTimeout)
	assert.Equal(t, 5, attempts)
	assert.Equal(t, 5, src.calls)
}

func TestPollerStopsOnContextCancel(t *testing.T) {
	src := &scriptedReceipts{results: []error{ethereum.NotFound, ethereum.NotFound}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := Poller{Interval: time.Hour, MaxAttempts: 3}
	_, _, err := p.Wait(ctx, src, common.Hash{})
	assert.ErrorIs(t, err, context.Canceled)
}
