package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"aurafeed/internal/middleware"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Session caches the connected account for the lifetime of the process.
// Every tip reuses it; each send still checks the active chain.
type Session struct {
	provider Provider
	chainID  *big.Int
	logger   *slog.Logger

	connectMu sync.Mutex // serializes Connect

	mu      sync.Mutex
	account *common.Address
}

// NewSession binds provider to the chain tips must be sent on. provider may be nil.
func NewSession(provider Provider, chainID int64, logger *slog.Logger) *Session {
	if logger == nil {
		logger = middleware.Logger
	}
	return &Session{provider: provider, chainID: big.NewInt(chainID), logger: logger}
}

// ChainID is the chain tips are sent on.
func (s *Session) ChainID() int64 { return s.chainID.Int64() }

// Account returns the cached account.
func (s *Session) Account() (common.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.account == nil {
		return common.Address{}, false
	}
	return *s.account, true
}

// Connect requests account access once and caches the result.
func (s *Session) Connect(ctx context.Context) (common.Address, error) {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	if acct, ok := s.Account(); ok {
		return acct, nil
	}
	if s.provider == nil {
		return common.Address{}, ErrNoProvider
	}

	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to connect wallet: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccount
	}

	s.ensureChain(ctx)

	acct := accounts[0]
	s.mu.Lock()
	s.account = &acct
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Wallet connected", slog.String("account", acct.Hex()))
	return acct, nil
}

// EnsureChain switches the provider to the tip chain when it is on another
// one. Failures are logged and otherwise ignored.
func (s *Session) EnsureChain(ctx context.Context) {
	s.ensureChain(ctx)
}

func (s *Session) ensureChain(ctx context.Context) {
	if s.provider == nil {
		return
	}
	active, err := s.provider.ChainID(ctx)
	if err == nil && active.Cmp(s.chainID) == 0 {
		return
	}
	if err == nil {
		err = s.provider.SwitchChain(ctx, s.chainID)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Unable to validate/switch chain",
			slog.Int64("chain_id", s.chainID.Int64()),
			slog.String("error", err.Error()),
		)
	}
}

// Send transfers value to the recipient from the connected account,
// connecting first when needed.
func (s *Session) Send(ctx context.Context, to common.Address, value *big.Int) (common.Hash, error) {
	from, err := s.Connect(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	s.EnsureChain(ctx)
	return s.provider.SendTransaction(ctx, from, to, value)
}

// Receipt looks up the receipt for hash.
func (s *Session) Receipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}
	return s.provider.TransactionReceipt(ctx, hash)
}
