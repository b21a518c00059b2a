package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]common.Address), args.Error(1)
}

func (m *MockProvider) ChainID(ctx context.Context) (*big.Int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

func (m *MockProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	return m.Called(ctx, chainID).Error(0)
}

func (m *MockProvider) SendTransaction(ctx context.Context, from, to common.Address, value *big.Int) (common.Hash, error) {
	args := m.Called(ctx, from, to, value)
	return args.Get(0).(common.Hash), args.Error(1)
}

func (m *MockProvider) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}

var (
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func TestSessionWithoutProvider(t *testing.T) {
	s := NewSession(nil, 11155111, nil)
	_, err := s.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoProvider)
	_, err = s.Send(context.Background(), bob, big.NewInt(1))
	assert.ErrorIs(t, err, ErrNoProvider)
	_, ok := s.Account()
	assert.False(t, ok)
}

func TestSessionConnectCachesAccount(t *testing.T) {
	p := new(MockProvider)
	p.On("RequestAccounts", mock.Anything).Return([]common.Address{alice}, nil).Once()
	p.On("ChainID", mock.Anything).Return(big.NewInt(11155111), nil)

	s := NewSession(p, 11155111, nil)
	acct, err := s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice, acct)

	acct, err = s.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, alice, acct)

	got, ok := s.Account()
	assert.True(t, ok)
	assert.Equal(t, alice, got)
	p.AssertExpectations(t)
	p.AssertNotCalled(t, "SwitchChain", mock.Anything, mock.Anything)
}

func TestSessionConnectErrors(t *testing.T) {
	t.Run("rejected", func(t *testing.T) {
		p := new(MockProvider)
		p.On("RequestAccounts", mock.Anything).Return(nil, ErrRejected)
		_, err := NewSession(p, 1, nil).Connect(context.Background())
		assert.ErrorIs(t, err, ErrRejected)
	})
	t.Run("no accounts", func(t *testing.T) {
		p := new(MockProvider)
		p.On("RequestAccounts", mock.Anything).Return([]common.Address{}, nil)
		_, err := NewSession(p, 1, nil).Connect(context.Background())
		assert.ErrorIs(t, err, ErrNoAccount)
	})
}

func TestSessionSendSwitchesChainBestEffort(t *testing.T) {
	p := new(MockProvider)
	p.On("RequestAccounts", mock.Anything).Return([]common.Address{alice}, nil)
	p.On("ChainID", mock.Anything).Return(big.NewInt(1), nil)
	p.On("SwitchChain", mock.Anything, big.NewInt(11155111)).Return(errors.New("user closed dialog"))
	p.On("SendTransaction", mock.Anything, alice, bob, big.NewInt(42)).Return(common.Hash{9}, nil)

	s := NewSession(p, 11155111, nil)
	hash, err := s.Send(context.Background(), bob, big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, common.Hash{9}, hash)

	// Once while connecting, once before the send.
	p.AssertNumberOfCalls(t, "SwitchChain", 2)
}

func TestConfirmingProvider(t *testing.T) {
	p := new(MockProvider)
	p.On("SendTransaction", mock.Anything, alice, bob, big.NewInt(5)).Return(common.Hash{1}, nil)

	declined := ConfirmingProvider{Provider: p, Confirm: func(context.Context, common.Address, *big.Int) bool { return false }}
	_, err := declined.SendTransaction(context.Background(), alice, bob, big.NewInt(5))
	assert.ErrorIs(t, err, ErrRejected)
	p.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	approved := ConfirmingProvider{Provider: p, Confirm: func(context.Context, common.Address, *big.Int) bool { return true }}
	hash, err := approved.SendTransaction(context.Background(), alice, bob, big.NewInt(5))
	require.NoError(t, err)
	assert.Equal(t, common.Hash{1}, hash)
}
