package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ConfirmFunc asks the account holder to approve a transfer.
type ConfirmFunc func(ctx context.Context, to common.Address, value *big.Int) bool

// ConfirmingProvider wraps a Provider and asks before every transfer. A
// declined transfer fails with ErrRejected.
type ConfirmingProvider struct {
	Provider
	Confirm ConfirmFunc
}

func (p ConfirmingProvider) SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (common.Hash, error) {
	if p.Confirm != nil && !p.Confirm(ctx, to, value) {
		return common.Hash{}, ErrRejected
	}
	return p.Provider.SendTransaction(ctx, from, to, value)
}
