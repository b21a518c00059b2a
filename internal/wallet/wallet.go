// Package wallet provides the signing capability tips are sent through and
// the process-wide session that caches the connected account.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNoProvider means no wallet is configured for this process.
	ErrNoProvider = errors.New("no wallet provider available")
	// ErrRejected means the account holder declined a request.
	ErrRejected = errors.New("wallet request rejected")
	// ErrNoAccount means the provider returned no accounts.
	ErrNoAccount = errors.New("wallet did not return an account")
	// ErrUnknownChain means the provider has no endpoint for the requested chain.
	ErrUnknownChain = errors.New("wallet has no endpoint for chain")
)

// Provider is the wallet capability: account access, chain selection,
// value transfers and receipt lookup. TransactionReceipt returns
// ethereum.NotFound while the transaction is pending.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
	SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (common.Hash, error)
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}
