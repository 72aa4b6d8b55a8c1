package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/encoder"
	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/registry"
	"github.com/WouterSls/evm-trading-engine/internal/tickmath"
)

const VenueV3 = "uniswap-v3"

const defaultPoolCacheSize = 4096

type quoteExactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	AmountIn          *big.Int
	Fee               *big.Int
	SqrtPriceLimitX96 *big.Int
}

type poolRef struct {
	token0 common.Address
	token1 common.Address
	fee    uint32
}

// V3Adapter quotes concentrated-liquidity pools through QuoterV2.
// Pool addresses are cached; pool state never is.
type V3Adapter struct {
	caller Caller
	chain  registry.Chain
	pools  *lru.Cache[poolRef, common.Address]
	logger *zap.Logger
}

func NewV3Adapter(caller Caller, chain registry.Chain, logger *zap.Logger) (*V3Adapter, error) {
	pools, err := lru.New[poolRef, common.Address](defaultPoolCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create pool cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &V3Adapter{caller: caller, chain: chain, pools: pools, logger: logger}, nil
}

func (a *V3Adapter) Name() string { return VenueV3 }

type v3QuoteResult struct {
	amountOut   *big.Int
	sqrtAfter   []*big.Int
	gasEstimate *big.Int
}

// Quote prices route via QuoterV2. Impact is the pool price move per hop, compounded.
func (a *V3Adapter) Quote(ctx context.Context, route model.Route, amountIn *big.Int) (model.Quote, error) {
	if err := route.Validate(); err != nil {
		return model.Quote{}, venueError(VenueV3, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
	}

	pools := make([]common.Address, route.Hops())
	for i := range pools {
		pool, err := a.PoolAddress(ctx, route.Path[i], route.Path[i+1], route.Fees[i])
		if err != nil {
			return model.Quote{}, venueError(VenueV3, err)
		}
		pools[i] = pool
	}

	var (
		result v3QuoteResult
		err    error
	)
	if route.Hops() == 1 {
		result, err = a.quoteSingle(ctx, route.Path[0], route.Path[1], route.Fees[0], amountIn)
	} else {
		if len(route.EncodedPath) == 0 {
			encoded, encErr := encoder.EncodePath(route.Path, route.Fees)
			if encErr != nil {
				return model.Quote{}, venueError(VenueV3, fmt.Errorf("%w: %v", model.ErrInvalidRequest, encErr))
			}
			route.EncodedPath = encoded
		}
		result, err = a.quoteMulti(ctx, route.EncodedPath, amountIn)
	}
	if err != nil {
		return model.Quote{}, venueError(VenueV3, err)
	}
	if len(result.sqrtAfter) != len(pools) {
		return model.Quote{}, venueError(VenueV3, fmt.Errorf("%w: %d sqrt prices for %d hops", model.ErrMalformedResponse, len(result.sqrtAfter), len(pools)))
	}

	impacts := make([]decimal.Decimal, len(pools))
	var liquidity *big.Int
	for i, pool := range pools {
		state, err := a.CurrentState(ctx, pool)
		if err != nil {
			return model.Quote{}, venueError(VenueV3, err)
		}
		impacts[i] = sqrtPriceMoveImpact(state.SqrtPriceX96, result.sqrtAfter[i])
		ahead := a.liquidityAhead(ctx, pool, state, zeroForOne(route.Path[i], route.Path[i+1]))
		if liquidity == nil || ahead.Cmp(liquidity) < 0 {
			liquidity = ahead
		}
	}

	quote := model.Quote{
		Venue:           VenueV3,
		AmountIn:        new(big.Int).Set(amountIn),
		AmountOut:       result.amountOut,
		PriceImpact:     compoundImpact(impacts),
		ActiveLiquidity: liquidity,
		GasEstimate:     result.gasEstimate,
		Route:           route,
	}
	a.logger.Debug("v3 quote",
		zap.Int("hops", route.Hops()),
		zap.String("amount_out", result.amountOut.String()),
		zap.String("price_impact", quote.PriceImpact.String()),
	)
	return quote, nil
}

func (a *V3Adapter) quoteSingle(ctx context.Context, tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) (v3QuoteResult, error) {
	parsed, err := QuoterV2ABI()
	if err != nil {
		return v3QuoteResult{}, fmt.Errorf("parse quoter abi: %w", err)
	}
	params := quoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		SqrtPriceLimitX96: big.NewInt(0),
	}
	values, err := callMethod(ctx, a.caller, a.chain.V3QuoterV2, parsed, "quoteExactInputSingle", params)
	if err != nil {
		return v3QuoteResult{}, err
	}
	if len(values) != 4 {
		return v3QuoteResult{}, fmt.Errorf("%w: quoteExactInputSingle returned %d values", model.ErrMalformedResponse, len(values))
	}
	amountOut, err := asBigInt(values[0])
	if err != nil {
		return v3QuoteResult{}, err
	}
	sqrtAfter, err := asBigInt(values[1])
	if err != nil {
		return v3QuoteResult{}, err
	}
	gas, err := asBigInt(values[3])
	if err != nil {
		return v3QuoteResult{}, err
	}
	return v3QuoteResult{amountOut: amountOut, sqrtAfter: []*big.Int{sqrtAfter}, gasEstimate: gas}, nil
}

func (a *V3Adapter) quoteMulti(ctx context.Context, path []byte, amountIn *big.Int) (v3QuoteResult, error) {
	parsed, err := QuoterV2ABI()
	if err != nil {
		return v3QuoteResult{}, fmt.Errorf("parse quoter abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, a.chain.V3QuoterV2, parsed, "quoteExactInput", path, amountIn)
	if err != nil {
		return v3QuoteResult{}, err
	}
	if len(values) != 4 {
		return v3QuoteResult{}, fmt.Errorf("%w: quoteExactInput returned %d values", model.ErrMalformedResponse, len(values))
	}
	amountOut, err := asBigInt(values[0])
	if err != nil {
		return v3QuoteResult{}, err
	}
	sqrtAfter, ok := values[1].([]*big.Int)
	if !ok {
		return v3QuoteResult{}, fmt.Errorf("%w: unexpected sqrt price list type %T", model.ErrMalformedResponse, values[1])
	}
	gas, err := asBigInt(values[3])
	if err != nil {
		return v3QuoteResult{}, err
	}
	return v3QuoteResult{amountOut: amountOut, sqrtAfter: sqrtAfter, gasEstimate: gas}, nil
}

// PoolAddress resolves the pool for a token pair and fee tier via the factory.
func (a *V3Adapter) PoolAddress(ctx context.Context, tokenA, tokenB common.Address, fee uint32) (common.Address, error) {
	if _, err := tickmath.TickSpacingFor(fee); err != nil {
		return common.Address{}, err
	}
	token0, token1 := tickmath.SortCurrencies(tokenA, tokenB)
	ref := poolRef{token0: token0, token1: token1, fee: fee}
	if pool, ok := a.pools.Get(ref); ok {
		return pool, nil
	}

	parsed, err := V3FactoryABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse v3 factory abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, a.chain.V3Factory, parsed, "getPool", token0, token1, new(big.Int).SetUint64(uint64(fee)))
	if err != nil {
		return common.Address{}, err
	}
	pool, err := asAddress(values[0])
	if err != nil {
		return common.Address{}, err
	}
	if pool == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no v3 pool for %s/%s fee %d", model.ErrPoolNotFound, token0.Hex(), token1.Hex(), fee)
	}
	a.pools.Add(ref, pool)
	return pool, nil
}

// CurrentState reads slot0, in-range liquidity and tick spacing of pool.
func (a *V3Adapter) CurrentState(ctx context.Context, pool common.Address) (model.PoolState, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse v3 pool abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, pool, parsed, "slot0")
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) != 7 {
		return model.PoolState{}, fmt.Errorf("%w: slot0 returned %d values", model.ErrMalformedResponse, len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, err
	}
	tickBig, err := asBigInt(values[1])
	if err != nil {
		return model.PoolState{}, err
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.PoolState{}, err
	}

	values, err = callMethod(ctx, a.caller, pool, parsed, "liquidity")
	if err != nil {
		return model.PoolState{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, err
	}

	values, err = callMethod(ctx, a.caller, pool, parsed, "tickSpacing")
	if err != nil {
		return model.PoolState{}, err
	}
	spacingBig, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, err
	}
	spacing, err := int24FromBig(spacingBig)
	if err != nil {
		return model.PoolState{}, err
	}

	return model.PoolState{SqrtPriceX96: sqrtPrice, Tick: tick, Liquidity: liquidity, TickSpacing: spacing}, nil
}

// liquidityAhead falls back to the in-range liquidity when the tick walk fails.
func (a *V3Adapter) liquidityAhead(ctx context.Context, pool common.Address, state model.PoolState, down bool) *big.Int {
	ahead, err := liquidityAhead(ctx, state, down, func(ctx context.Context, tick int32) (model.TickInfo, error) {
		return a.TickInfo(ctx, pool, tick)
	})
	if err != nil {
		a.logger.Debug("v3 tick walk failed", zap.String("pool", pool.Hex()), zap.Error(err))
		return state.Liquidity
	}
	return ahead
}

// TickInfo reads the liquidity bookkeeping of tick in pool.
func (a *V3Adapter) TickInfo(ctx context.Context, pool common.Address, tick int32) (model.TickInfo, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return model.TickInfo{}, fmt.Errorf("parse v3 pool abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, pool, parsed, "ticks", big.NewInt(int64(tick)))
	if err != nil {
		return model.TickInfo{}, err
	}
	if len(values) != 8 {
		return model.TickInfo{}, fmt.Errorf("%w: ticks returned %d values", model.ErrMalformedResponse, len(values))
	}
	gross, err := asBigInt(values[0])
	if err != nil {
		return model.TickInfo{}, err
	}
	net, err := asBigInt(values[1])
	if err != nil {
		return model.TickInfo{}, err
	}
	initialized, ok := values[7].(bool)
	if !ok {
		return model.TickInfo{}, fmt.Errorf("%w: unexpected initialized type %T", model.ErrMalformedResponse, values[7])
	}
	return model.TickInfo{Tick: tick, LiquidityGross: gross, LiquidityNet: net, Initialized: initialized}, nil
}

// EthUSDPrice quotes one native unit of WETH into USDC on the 0.05% pool.
func (a *V3Adapter) EthUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(a.chain.NativeDecimals)), nil)
	result, err := a.quoteSingle(ctx, a.chain.WETH, a.chain.USDC, tickmath.FeeLow, one)
	if err != nil {
		return decimal.Zero, venueError(VenueV3, err)
	}
	return model.FromUnits(result.amountOut, a.chain.USDCDecimals), nil
}
