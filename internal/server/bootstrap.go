package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"aurafeed/internal/config"
	"aurafeed/internal/feed"
	"aurafeed/internal/middleware"
	"aurafeed/internal/models"
	"aurafeed/internal/wallet"

	"github.com/ethereum/go-ethereum/common"
)

// BuildSource returns the post source selected by FEED_SOURCE. The returned
// func releases any RPC connection it opened.
func BuildSource(ctx context.Context, cfg *config.Config) (feed.Source, func(), error) {
	noop := func() {}

	switch models.Flavor(cfg.FeedSource) {
	case models.FlavorMock, "":
		return feed.NewMockSource(cfg.MockDataPath), noop, nil
	case models.FlavorAura:
		post, err := hexAddress("AURA_POST_ADDRESS", cfg.AuraPost)
		if err != nil {
			return nil, nil, err
		}
		src, err := feed.DialContractSource(ctx, cfg.AuraRPCURL, feed.ContractConfig{
			Flavor:  models.FlavorAura,
			Post:    post,
			ChainID: cfg.AuraChainID,
			Gateway: cfg.AuraGateway,
		}, middleware.Logger)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	case models.FlavorValeu:
		post, err := hexAddress("VALEU_POST_ADDRESS", cfg.ValeuPost)
		if err != nil {
			return nil, nil, err
		}
		registry, err := hexAddress("VALEU_ERC6551_REGISTRY", cfg.ValeuRegistry)
		if err != nil {
			return nil, nil, err
		}
		impl, err := hexAddress("VALEU_ACCOUNT_IMPLEMENTATION", cfg.ValeuAccount)
		if err != nil {
			return nil, nil, err
		}
		src, err := feed.DialContractSource(ctx, cfg.ValeuRPCURL, feed.ContractConfig{
			Flavor:      models.FlavorValeu,
			Post:        post,
			ChainID:     cfg.ValeuChainID,
			Registry:    registry,
			AccountImpl: impl,
			Gateway:     cfg.ValeuGateway,
		}, middleware.Logger)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown feed source %q", cfg.FeedSource)
	}
}

func hexAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s %q is not a valid address", name, value)
	}
	return common.HexToAddress(value), nil
}

// BuildProvider dials the signing wallet. Without a key or an RPC endpoint
// it returns a nil provider: the feed still works and tips fail with the
// no-wallet reason.
func BuildProvider(ctx context.Context, cfg *config.Config) (wallet.Provider, func(), error) {
	noop := func() {}

	endpoint := cfg.TipRPCEndpoint()
	p, err := wallet.DialEthProvider(ctx, cfg.WalletPrivateKey, map[int64]string{cfg.TipChainID: endpoint}, cfg.TipChainID)
	if errors.Is(err, wallet.ErrNoProvider) {
		middleware.Logger.WarnContext(ctx, "No wallet configured; tips are disabled",
			slog.Bool("key_set", cfg.WalletPrivateKey != ""),
			slog.Bool("rpc_set", endpoint != ""),
		)
		return nil, noop, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}
