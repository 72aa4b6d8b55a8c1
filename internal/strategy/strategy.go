package strategy

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/registry"
	"github.com/WouterSls/evm-trading-engine/internal/route"
)

// Kind tags a venue family.
type Kind string

const (
	KindV2 Kind = "v2"
	KindV3 Kind = "v3"
	KindV4 Kind = "v4"
)

func AllKinds() []Kind {
	return []Kind{KindV2, KindV3, KindV4}
}

func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindV2:
		return KindV2, nil
	case KindV3:
		return KindV3, nil
	case KindV4:
		return KindV4, nil
	default:
		return "", fmt.Errorf("unknown venue %q (expected v2, v3 or v4)", value)
	}
}

// Strategy is the venue-agnostic capability set the trade coordinator drives.
type Strategy interface {
	Name() string
	Kind() Kind
	// Spender is the contract an input token must be approved for.
	Spender() common.Address
	QuoteBuy(ctx context.Context, req model.BuyRequest) (model.Quote, error)
	QuoteSell(ctx context.Context, req model.SellRequest) (model.Quote, error)
	// EnsureApproval returns nil when owner's allowance already covers amount,
	// otherwise the next approval transaction to execute.
	EnsureApproval(ctx context.Context, owner, token common.Address, amount *big.Int, spender common.Address) (*model.TransactionRequest, error)
	EthUSDPrice(ctx context.Context) (decimal.Decimal, error)
	// BuildBuyTransaction returns the empty transaction when req's input type does not match its tokens.
	BuildBuyTransaction(ctx context.Context, owner common.Address, req model.BuyRequest, quote model.Quote) (model.TransactionRequest, error)
	BuildSellTransaction(ctx context.Context, owner common.Address, req model.SellRequest, quote model.Quote) (model.TransactionRequest, error)
}

// CandidateSource exposes a venue's route candidates for cross-venue searches.
type CandidateSource interface {
	Kind() Kind
	// VenueToken maps the native asset (zero address) onto the token the venue's pools hold.
	VenueToken(token common.Address) common.Address
	Candidates(tokenIn, tokenOut common.Address) []route.Candidate
}

// PriceSource prices one native unit in USD.
type PriceSource interface {
	EthUSDPrice(ctx context.Context) (decimal.Decimal, error)
}

type Config struct {
	// SlippageTolerance is a fraction, 0.02 accepts 2% less than quoted.
	SlippageTolerance decimal.Decimal
	// MaxPriceImpact is a percentage.
	MaxPriceImpact   decimal.Decimal
	InfiniteApproval bool
	Deadline         time.Duration
	ProbeAmount      decimal.Decimal
	// Intermediates are hop tokens tried on top of the chain's WETH and USDC.
	Intermediates []common.Address
}

func DefaultConfig() Config {
	return Config{
		SlippageTolerance: decimal.RequireFromString("0.02"),
		MaxPriceImpact:    decimal.NewFromInt(5),
		InfiniteApproval:  true,
		Deadline:          20 * time.Minute,
		ProbeAmount:       dex.DefaultProbeAmount,
	}
}

// Deps are the collaborators a strategy is assembled from.
type Deps struct {
	Caller    dex.Caller
	Chain     registry.Chain
	Tokens    *dex.TokenRegistry
	Optimizer *route.Optimizer
	Config    Config
	Logger    *zap.Logger
	Now       func() time.Time
}

// New builds the strategy for kind on top of that venue's quote adapter.
func New(kind Kind, deps Deps) (Strategy, error) {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Tokens == nil {
		tokens, err := dex.NewTokenRegistry(deps.Caller, 0, deps.Logger)
		if err != nil {
			return nil, err
		}
		deps.Tokens = tokens
	}
	if deps.Optimizer == nil {
		deps.Optimizer = route.NewOptimizer(route.DefaultConfig(), deps.Logger)
	}

	switch kind {
	case KindV2:
		adapter := dex.NewV2Adapter(deps.Caller, deps.Chain, deps.Logger)
		return NewV2(newBase(KindV2, adapter, adapter, deps)), nil
	case KindV3:
		adapter, err := dex.NewV3Adapter(deps.Caller, deps.Chain, deps.Logger)
		if err != nil {
			return nil, err
		}
		return NewV3(newBase(KindV3, adapter, adapter, deps)), nil
	case KindV4:
		adapter := dex.NewV4Adapter(deps.Caller, deps.Chain, deps.Tokens, deps.Config.ProbeAmount, deps.Logger)
		return NewV4(newBase(KindV4, adapter, adapter, deps)), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", kind)
	}
}

var (
	_ CandidateSource = (*V2)(nil)
	_ CandidateSource = (*V3)(nil)
	_ CandidateSource = (*V4)(nil)

	_ Strategy = (*V2)(nil)
	_ Strategy = (*V3)(nil)
	_ Strategy = (*V4)(nil)
)
