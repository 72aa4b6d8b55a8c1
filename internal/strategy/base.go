package strategy

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/registry"
	"github.com/WouterSls/evm-trading-engine/internal/route"
	"github.com/WouterSls/evm-trading-engine/internal/tickmath"
)

// base holds what every venue family shares: request classification, quoting and gates.
type base struct {
	kind      Kind
	chain     registry.Chain
	tokens    *dex.TokenRegistry
	optimizer *route.Optimizer
	quoter    route.Quoter
	prices    PriceSource
	approver  *Approver
	cfg       Config
	now       func() time.Time
	logger    *zap.Logger

	// wrapNative routes the native asset as WETH. V4 pools hold it directly.
	wrapNative bool
	// directOnly limits candidates to single-hop routes.
	directOnly bool
	fees       []uint32
}

func newBase(kind Kind, quoter route.Quoter, prices PriceSource, deps Deps) *base {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultConfig().Deadline
	}
	b := &base{
		kind:       kind,
		chain:      deps.Chain,
		tokens:     deps.Tokens,
		optimizer:  deps.Optimizer,
		quoter:     quoter,
		prices:     prices,
		approver:   NewApprover(deps.Caller, deps.Chain.Permit2, cfg.InfiniteApproval, now),
		cfg:        cfg,
		now:        now,
		logger:     logger.With(zap.String("strategy", string(kind))),
		wrapNative: true,
		fees:       tickmath.AllFeeTiers(),
	}
	switch kind {
	case KindV2:
		b.fees = []uint32{dex.V2Fee}
	case KindV4:
		b.wrapNative = false
		b.directOnly = true
	}
	return b
}

func (b *base) Name() string { return b.quoter.Name() }

func (b *base) Kind() Kind { return b.kind }

func (b *base) EthUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	price, err := b.prices.EthUSDPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: non-positive eth price %s", model.ErrMalformedResponse, price)
	}
	return price, nil
}

// VenueToken maps the native asset onto what this venue's pools hold.
func (b *base) VenueToken(token common.Address) common.Address {
	if token == (common.Address{}) && b.wrapNative {
		return b.chain.WETH
	}
	return token
}

func (b *base) intermediates() []common.Address {
	if b.directOnly {
		return nil
	}
	return append(b.chain.Intermediates(), b.cfg.Intermediates...)
}

// Candidates lists the routes this venue can price between two of its pool tokens.
func (b *base) Candidates(tokenIn, tokenOut common.Address) []route.Candidate {
	return route.Candidates(b.quoter, tokenIn, tokenOut, b.intermediates(), b.fees)
}

// bestQuote runs the route search. An empty route is returned as a quote, not an error.
func (b *base) bestQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (model.Quote, error) {
	candidates := b.Candidates(tokenIn, tokenOut)
	result, err := b.optimizer.BestRoute(ctx, tokenIn, tokenOut, amountIn, candidates)
	if err != nil {
		return model.Quote{}, err
	}
	b.logger.Debug("route search finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("quotes", len(result.Quotes)),
		zap.Int("excluded", len(result.Excluded)),
		zap.Bool("empty", result.Best.Route.IsEmpty()),
	)
	return result.Best, nil
}

func (b *base) QuoteBuy(ctx context.Context, req model.BuyRequest) (model.Quote, error) {
	leg, ok, err := b.resolveBuy(ctx, req, nil)
	if err != nil {
		return model.Quote{}, err
	}
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: input type %s does not match input token %s", model.ErrInvalidRequest, req.InputType, req.InputToken.Hex())
	}
	if err := b.checkBuyShape(req); err != nil {
		return model.Quote{}, err
	}
	return b.bestQuote(ctx, leg.tokenIn, leg.tokenOut, leg.amountIn)
}

func (b *base) QuoteSell(ctx context.Context, req model.SellRequest) (model.Quote, error) {
	leg, ok, err := b.resolveSell(ctx, req)
	if err != nil {
		return model.Quote{}, err
	}
	if !ok {
		return model.Quote{}, fmt.Errorf("%w: output type %s does not match output token %s", model.ErrInvalidRequest, req.OutputType, req.OutputToken.Hex())
	}
	return b.bestQuote(ctx, leg.tokenIn, leg.tokenOut, leg.amountIn)
}

// checkBuyShape rejects buy shapes this venue family cannot encode.
func (b *base) checkBuyShape(req model.BuyRequest) error {
	if b.kind == KindV4 && req.InputType == model.InputToken {
		return fmt.Errorf("%w: %s buys must spend ETH or USD", model.ErrUnsupportedRouteShape, b.Name())
	}
	return nil
}

// checkQuote verifies quote belongs to the leg and clears the impact ceiling.
func (b *base) checkQuote(quote model.Quote, tokenIn, tokenOut common.Address, amountIn *big.Int) error {
	if quote.Route.IsEmpty() {
		return model.ErrNoRouteFound
	}
	if err := quote.Route.Validate(); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	}
	if quote.Route.TokenIn() != tokenIn || quote.Route.TokenOut() != tokenOut {
		return fmt.Errorf("%w: quote route %s>%s does not match trade %s>%s", model.ErrInvalidRequest,
			quote.Route.TokenIn().Hex(), quote.Route.TokenOut().Hex(), tokenIn.Hex(), tokenOut.Hex())
	}
	if quote.AmountIn == nil || quote.AmountIn.Cmp(amountIn) != 0 {
		return fmt.Errorf("%w: quote amount does not match trade amount", model.ErrInvalidRequest)
	}
	if quote.AmountOut == nil || quote.AmountOut.Sign() <= 0 {
		return model.ErrNoRouteFound
	}
	if b.cfg.MaxPriceImpact.IsPositive() && quote.PriceImpact.GreaterThan(b.cfg.MaxPriceImpact) {
		return fmt.Errorf("%w: %s%% exceeds %s%%", model.ErrPriceImpactExceeded, quote.PriceImpact.StringFixed(2), b.cfg.MaxPriceImpact)
	}
	return nil
}

// minOut applies the slippage tolerance to a quoted output.
func (b *base) minOut(amountOut *big.Int) *big.Int {
	keep := decimal.NewFromInt(1).Sub(b.cfg.SlippageTolerance)
	if keep.IsNegative() {
		keep = decimal.Zero
	}
	return decimal.NewFromBigInt(amountOut, 0).Mul(keep).Floor().BigInt()
}

func (b *base) deadline() *big.Int {
	return big.NewInt(b.now().Add(b.cfg.Deadline).Unix())
}

func (b *base) EnsureApproval(ctx context.Context, owner, token common.Address, amount *big.Int, spender common.Address) (*model.TransactionRequest, error) {
	if b.kind == KindV2 {
		return b.approver.EnsureApproval(ctx, owner, token, amount, spender)
	}
	return b.approver.EnsurePermit2Approval(ctx, owner, token, amount, spender)
}
