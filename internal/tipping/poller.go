package tipping

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"aurafeed/internal/middleware"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Receipt polling defaults.
const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxAttempts  = 60
)

// ReceiptSource looks up transaction receipts.
type ReceiptSource interface {
	Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Poller waits for a receipt with a fixed interval and a hard attempt ceiling.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep waits between attempts; nil uses a timer bound to ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPoller polls every 2s, up to 60 times.
func DefaultPoller() Poller {
	return Poller{Interval: DefaultPollInterval, MaxAttempts: DefaultMaxAttempts}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Wait polls src until a receipt for hash is available. It returns the
// receipt and the number of lookups made, or ErrReceiptTimeout once the
// attempts are used up. Lookup errors other than "not found" count as a
// missed attempt.
func (p Poller) Wait(ctx context.Context, src ReceiptSource, hash common.Hash) (*types.Receipt, int, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		receipt, err := src.Receipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, attempt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			middleware.Logger.DebugContext(ctx, "Receipt lookup failed",
				slog.String("hash", hash.Hex()),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		}
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return nil, attempt, err
		}
	}
	return nil, attempts, ErrReceiptTimeout
}
