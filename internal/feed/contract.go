package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"aurafeed/internal/middleware"
	"aurafeed/internal/models"
	"aurafeed/internal/observability"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const postABIJSON = `[
  {"type":"function","name":"totalSupply","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"tokenURI","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
  {"type":"function","name":"contentHashOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]}
]`

const registryABIJSON = `[
  {"type":"function","name":"account","stateMutability":"view","inputs":[
    {"name":"implementation","type":"address"},
    {"name":"chainId","type":"uint256"},
    {"name":"tokenContract","type":"address"},
    {"name":"tokenId","type":"uint256"},
    {"name":"salt","type":"uint256"}
  ],"outputs":[{"name":"account","type":"address"}]}
]`

var (
	postABI     = mustParseABI(postABIJSON)
	registryABI = mustParseABI(registryABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// DefaultReadConcurrency bounds parallel per-token reads.
const DefaultReadConcurrency = 8

type flavorLabels struct {
	TitlePrefix string
	Summary     string
}

var labels = map[models.Flavor]flavorLabels{
	models.FlavorAura:  {TitlePrefix: "Aura Post #", Summary: "Published via AuraPost."},
	models.FlavorValeu: {TitlePrefix: "Valeu Post #", Summary: "Published via Valeu."},
}

// ContractConfig points a ContractSource at one deployed post contract.
// Registry and AccountImpl are only used by the valeu flavor.
type ContractConfig struct {
	Flavor      models.Flavor
	Post        common.Address
	ChainID     int64
	Registry    common.Address
	AccountImpl common.Address
	Gateway     string
	Concurrency int
}

// ContractSource enumerates posts minted by an on-chain post contract.
type ContractSource struct {
	caller  ethereum.ContractCaller
	cfg     ContractConfig
	label   flavorLabels
	fetcher *MetadataFetcher
	logger  *slog.Logger
	now     func() time.Time
	closeFn func()
}

// NewContractSource wraps an existing contract caller.
func NewContractSource(caller ethereum.ContractCaller, cfg ContractConfig, fetcher *MetadataFetcher, logger *slog.Logger) (*ContractSource, error) {
	label, ok := labels[cfg.Flavor]
	if !ok {
		return nil, fmt.Errorf("unsupported contract flavor %q", cfg.Flavor)
	}
	if cfg.Post == (common.Address{}) {
		return nil, errors.New("post contract address is required")
	}
	if cfg.Flavor == models.FlavorValeu && (cfg.Registry == (common.Address{}) || cfg.AccountImpl == (common.Address{})) {
		return nil, errors.New("valeu requires registry and account implementation addresses")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultReadConcurrency
	}
	if logger == nil {
		logger = middleware.Logger
	}
	if fetcher == nil {
		fetcher = NewMetadataFetcher(cfg.Gateway, nil, logger)
	}
	return &ContractSource{
		caller:  caller,
		cfg:     cfg,
		label:   label,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// DialContractSource connects to rpcURL and returns a source reading through it.
func DialContractSource(ctx context.Context, rpcURL string, cfg ContractConfig, logger *slog.Logger) (*ContractSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s rpc: %w", cfg.Flavor, err)
	}
	src, err := NewContractSource(client, cfg, nil, logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	src.closeFn = client.Close
	return src, nil
}

func (s *ContractSource) Name() string { return string(s.cfg.Flavor) }

// Close releases the RPC connection when the source dialed it.
func (s *ContractSource) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

// FetchPosts reads every token from 1 to totalSupply. Any failed contract
// read fails the whole fetch; metadata failures only degrade to defaults.
func (s *ContractSource) FetchPosts(ctx context.Context) ([]models.Post, error) {
	span, ctx := observability.StartClientSpan(ctx, "feed.contract.fetch",
		attribute.String("feed.flavor", string(s.cfg.Flavor)),
		attribute.String("feed.contract", s.cfg.Post.Hex()),
	)
	defer span.End()

	supply, err := s.totalSupply(ctx)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if supply.Sign() == 0 {
		return []models.Post{}, nil
	}
	if !supply.IsInt64() {
		err := fmt.Errorf("total supply %s out of range", supply)
		span.SetError(err)
		return nil, err
	}
	total := supply.Int64()
	span.AddAttributes(attribute.Int64("feed.total_supply", total))

	posts := make([]models.Post, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := int64(0); i < total; i++ {
		i := i
		g.Go(func() error {
			post, err := s.readToken(gctx, big.NewInt(i+1))
			if err != nil {
				return err
			}
			posts[i] = post
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	sortNewestFirst(posts)
	return posts, nil
}

func (s *ContractSource) readToken(ctx context.Context, tokenID *big.Int) (models.Post, error) {
	id := tokenID.String()

	var owner common.Address
	if err := s.call(ctx, postABI, s.cfg.Post, "ownerOf", &owner, tokenID); err != nil {
		return models.Post{}, fmt.Errorf("token %s: %w", id, err)
	}
	var tokenURI string
	if err := s.call(ctx, postABI, s.cfg.Post, "tokenURI", &tokenURI, tokenID); err != nil {
		return models.Post{}, fmt.Errorf("token %s: %w", id, err)
	}
	var contentHash [32]byte
	if err := s.call(ctx, postABI, s.cfg.Post, "contentHashOf", &contentHash, tokenID); err != nil {
		return models.Post{}, fmt.Errorf("token %s: %w", id, err)
	}

	post := models.Post{
		ID:             id,
		Flavor:         s.cfg.Flavor,
		TokenID:        id,
		CreatorAddress: owner.Hex(),
		TokenURI:       tokenURI,
		ContentHash:    common.Hash(contentHash).Hex(),
	}

	if s.cfg.Flavor == models.FlavorValeu {
		var tba common.Address
		err := s.call(ctx, registryABI, s.cfg.Registry, "account", &tba,
			s.cfg.AccountImpl, big.NewInt(s.cfg.ChainID), s.cfg.Post, tokenID, big.NewInt(0))
		if err != nil {
			return models.Post{}, fmt.Errorf("token %s account: %w", id, err)
		}
		post.TBAAddress = tba.Hex()
	}

	md, err := s.fetcher.Fetch(ctx, tokenURI)
	if err != nil {
		s.logger.WarnContext(ctx, "Falling back to default post metadata",
			slog.String("flavor", string(s.cfg.Flavor)),
			slog.String("token_id", id),
			slog.String("error", err.Error()),
		)
		md = nil
	}
	fields := applyMetadata(md, s.label, id, s.now().UTC())
	post.Title = fields.Title
	post.Summary = fields.Summary
	post.Body = fields.Body
	post.CreatedAt = fields.CreatedAt
	post.Tags = fields.Tags
	post.CoverImageURL = fields.Cover
	return post, nil
}

func (s *ContractSource) totalSupply(ctx context.Context) (*big.Int, error) {
	var supply *big.Int
	if err := s.call(ctx, postABI, s.cfg.Post, "totalSupply", &supply); err != nil {
		return nil, err
	}
	return supply, nil
}

func (s *ContractSource) call(ctx context.Context, contract abi.ABI, to common.Address, method string, out any, args ...any) error {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := s.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	values, err := contract.Unpack(method, raw)
	if err != nil {
		return fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(values))
	}
	return assign(method, values[0], out)
}

func assign(method string, v any, out any) error {
	switch dst := out.(type) {
	case **big.Int:
		if n, ok := v.(*big.Int); ok {
			*dst = n
			return nil
		}
	case *common.Address:
		if a, ok := v.(common.Address); ok {
			*dst = a
			return nil
		}
	case *string:
		if str, ok := v.(string); ok {
			*dst = str
			return nil
		}
	case *[32]byte:
		if b, ok := v.([32]byte); ok {
			*dst = b
			return nil
		}
	}
	return fmt.Errorf("unpack %s: unexpected type %T", method, v)
}
