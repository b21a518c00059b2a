package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of *ethclient.Client the provider uses.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// EthProvider signs with a local key and talks to one RPC backend per chain.
type EthProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu       sync.Mutex
	backends map[int64]Backend
	active   int64
}

// NewEthProvider returns a provider for key over backends, starting on activeChain.
func NewEthProvider(key *ecdsa.PrivateKey, backends map[int64]Backend, activeChain int64) *EthProvider {
	return &EthProvider{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		backends: backends,
		active:   activeChain,
	}
}

// DialEthProvider parses a hex private key and dials each endpoint, keyed by chain id.
func DialEthProvider(ctx context.Context, keyHex string, endpoints map[int64]string, activeChain int64) (*EthProvider, error) {
	keyHex = strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	if keyHex == "" {
		return nil, ErrNoProvider
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet key: %w", err)
	}

	backends := make(map[int64]Backend, len(endpoints))
	for chainID, url := range endpoints {
		if url == "" {
			continue
		}
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RPC for chain %d: %w", chainID, err)
		}
		backends[chainID] = client
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("%w: no RPC endpoints configured", ErrNoProvider)
	}
	return NewEthProvider(key, backends, activeChain), nil
}

func (p *EthProvider) backend() (Backend, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.backends[p.active]
	if !ok {
		return nil, p.active, fmt.Errorf("%w %d", ErrUnknownChain, p.active)
	}
	return b, p.active, nil
}

func (p *EthProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	return []common.Address{p.address}, nil
}

// ChainID asks the active backend which chain it serves.
func (p *EthProvider) ChainID(ctx context.Context) (*big.Int, error) {
	b, _, err := p.backend()
	if err != nil {
		return nil, err
	}
	return b.ChainID(ctx)
}

func (p *EthProvider) SwitchChain(_ context.Context, chainID *big.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := chainID.Int64()
	if _, ok := p.backends[id]; !ok {
		return fmt.Errorf("%w %d", ErrUnknownChain, id)
	}
	p.active = id
	return nil
}

// SendTransaction signs and broadcasts an EIP-1559 value transfer.
func (p *EthProvider) SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (common.Hash, error) {
	if from != p.address {
		return common.Hash{}, fmt.Errorf("%w: unknown sender %s", ErrRejected, from.Hex())
	}
	b, chainID, err := p.backend()
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := b.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch nonce: %w", err)
	}
	gas, err := b.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
	}
	tipCap, err := b.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := b.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tipCap)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	chain := big.NewInt(chainID)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chain,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chain), p.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed.Hash(), nil
}

func (p *EthProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	b, _, err := p.backend()
	if err != nil {
		return nil, err
	}
	return b.TransactionReceipt(ctx, hash)
}

// Close releases backends that hold connections.
func (p *EthProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.backends {
		if c, ok := b.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
