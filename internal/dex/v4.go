package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/registry"
	"github.com/WouterSls/evm-trading-engine/internal/tickmath"
)

const VenueV4 = "uniswap-v4"

// DefaultProbeAmount is the spot price probe size in whole units of the input token.
var DefaultProbeAmount = decimal.RequireFromString("0.000001")

type v4PoolKeyArg struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

type v4QuoteExactSingleParams struct {
	PoolKey     v4PoolKeyArg
	ZeroForOne  bool
	ExactAmount *big.Int
	HookData    []byte
}

type v4PathKeyArg struct {
	IntermediateCurrency common.Address
	Fee                  *big.Int
	TickSpacing          *big.Int
	Hooks                common.Address
	HookData             []byte
}

type v4QuoteExactParams struct {
	ExactCurrency common.Address
	Path          []v4PathKeyArg
	ExactAmount   *big.Int
}

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// V4Adapter quotes singleton pool-manager pools through the V4 quoter and StateView.
// The zero address denotes the native asset.
type V4Adapter struct {
	caller Caller
	chain  registry.Chain
	tokens *TokenRegistry
	probe  decimal.Decimal
	logger *zap.Logger
}

func NewV4Adapter(caller Caller, chain registry.Chain, tokens *TokenRegistry, probe decimal.Decimal, logger *zap.Logger) *V4Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !probe.IsPositive() {
		probe = DefaultProbeAmount
	}
	return &V4Adapter{caller: caller, chain: chain, tokens: tokens, probe: probe, logger: logger}
}

func (a *V4Adapter) Name() string { return VenueV4 }

// Quote prices route via the V4 quoter. Impact compares the realized price to the
// price of a probe-sized swap along the same route.
func (a *V4Adapter) Quote(ctx context.Context, route model.Route, amountIn *big.Int) (model.Quote, error) {
	if err := route.Validate(); err != nil {
		return model.Quote{}, venueError(VenueV4, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
	}
	if amountIn == nil || amountIn.Sign() <= 0 || amountIn.Cmp(maxUint128) > 0 {
		return model.Quote{}, venueError(VenueV4, fmt.Errorf("%w: amount in must fit uint128", model.ErrInvalidRequest))
	}

	keys := make([]model.PoolKey, route.Hops())
	for i := range keys {
		if route.Hops() == 1 {
			keys[i] = *route.PoolKey
			continue
		}
		key, err := tickmath.NewPoolKey(route.Path[i], route.Path[i+1], route.Fees[i], common.Address{})
		if err != nil {
			return model.Quote{}, venueError(VenueV4, err)
		}
		keys[i] = key
	}

	var liquidity *big.Int
	for i, key := range keys {
		state, err := a.CurrentState(ctx, key)
		if err != nil {
			return model.Quote{}, venueError(VenueV4, err)
		}
		ahead := a.liquidityAhead(ctx, key, state, zeroForOne(route.Path[i], route.Path[i+1]))
		if liquidity == nil || ahead.Cmp(liquidity) < 0 {
			liquidity = ahead
		}
	}

	amountOut, gas, err := a.quote(ctx, route, keys, amountIn)
	if err != nil {
		return model.Quote{}, venueError(VenueV4, err)
	}

	impact := decimal.Zero
	if probeIn, err := a.probeAmount(ctx, route.TokenIn()); err == nil && probeIn.Cmp(amountIn) < 0 {
		if probeOut, _, err := a.quote(ctx, route, keys, probeIn); err == nil {
			spot := decimal.NewFromBigInt(probeOut, 0).DivRound(decimal.NewFromBigInt(probeIn, 0), pricePrecision)
			impact = executionImpact(spot, amountIn, amountOut)
		} else {
			a.logger.Debug("v4 probe quote failed", zap.Error(err))
		}
	}

	quote := model.Quote{
		Venue:           VenueV4,
		AmountIn:        new(big.Int).Set(amountIn),
		AmountOut:       amountOut,
		PriceImpact:     impact,
		ActiveLiquidity: liquidity,
		GasEstimate:     gas,
		Route:           route,
	}
	a.logger.Debug("v4 quote",
		zap.Int("hops", route.Hops()),
		zap.String("amount_out", amountOut.String()),
		zap.String("price_impact", impact.String()),
	)
	return quote, nil
}

func (a *V4Adapter) quote(ctx context.Context, route model.Route, keys []model.PoolKey, amountIn *big.Int) (*big.Int, *big.Int, error) {
	parsed, err := V4QuoterABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse v4 quoter abi: %w", err)
	}

	var values []interface{}
	if len(keys) == 1 {
		key := keys[0]
		params := v4QuoteExactSingleParams{
			PoolKey:     toV4PoolKeyArg(key),
			ZeroForOne:  key.ZeroForOne(route.TokenIn()),
			ExactAmount: amountIn,
			HookData:    []byte{},
		}
		values, err = callMethod(ctx, a.caller, a.chain.V4Quoter, parsed, "quoteExactInputSingle", params)
	} else {
		path := make([]v4PathKeyArg, len(keys))
		for i, key := range keys {
			path[i] = v4PathKeyArg{
				IntermediateCurrency: route.Path[i+1],
				Fee:                  new(big.Int).SetUint64(uint64(key.Fee)),
				TickSpacing:          big.NewInt(int64(key.TickSpacing)),
				Hooks:                key.Hooks,
				HookData:             []byte{},
			}
		}
		params := v4QuoteExactParams{ExactCurrency: route.TokenIn(), Path: path, ExactAmount: amountIn}
		values, err = callMethod(ctx, a.caller, a.chain.V4Quoter, parsed, "quoteExactInput", params)
	}
	if err != nil {
		return nil, nil, err
	}
	if len(values) != 2 {
		return nil, nil, fmt.Errorf("%w: v4 quoter returned %d values", model.ErrMalformedResponse, len(values))
	}
	amountOut, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	gas, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, err
	}
	return amountOut, gas, nil
}

func (a *V4Adapter) probeAmount(ctx context.Context, token common.Address) (*big.Int, error) {
	decimals := a.chain.NativeDecimals
	if token != (common.Address{}) {
		if a.tokens == nil {
			return nil, fmt.Errorf("no token registry for probe sizing")
		}
		meta, err := a.tokens.Resolve(ctx, token)
		if err != nil {
			return nil, err
		}
		decimals = meta.Decimals
	}
	amount, err := model.ToUnits(a.probe, decimals)
	if err != nil {
		return big.NewInt(1), nil
	}
	return amount, nil
}

func toV4PoolKeyArg(key model.PoolKey) v4PoolKeyArg {
	return v4PoolKeyArg{
		Currency0:   key.Currency0,
		Currency1:   key.Currency1,
		Fee:         new(big.Int).SetUint64(uint64(key.Fee)),
		TickSpacing: big.NewInt(int64(key.TickSpacing)),
		Hooks:       key.Hooks,
	}
}

// CurrentState reads the pool's slot0 and liquidity from StateView.
// An uninitialized pool reports PoolNotFound.
func (a *V4Adapter) CurrentState(ctx context.Context, key model.PoolKey) (model.PoolState, error) {
	parsed, err := StateViewABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse state view abi: %w", err)
	}
	id, err := tickmath.PoolID(key)
	if err != nil {
		return model.PoolState{}, err
	}

	values, err := callMethod(ctx, a.caller, a.chain.V4StateView, parsed, "getSlot0", [32]byte(id))
	if err != nil {
		return model.PoolState{}, err
	}
	if len(values) != 4 {
		return model.PoolState{}, fmt.Errorf("%w: getSlot0 returned %d values", model.ErrMalformedResponse, len(values))
	}
	sqrtPrice, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, err
	}
	if sqrtPrice.Sign() == 0 {
		return model.PoolState{}, fmt.Errorf("%w: v4 pool %s not initialized", model.ErrPoolNotFound, id.Hex())
	}
	tickBig, err := asBigInt(values[1])
	if err != nil {
		return model.PoolState{}, err
	}
	tick, err := int24FromBig(tickBig)
	if err != nil {
		return model.PoolState{}, err
	}

	values, err = callMethod(ctx, a.caller, a.chain.V4StateView, parsed, "getLiquidity", [32]byte(id))
	if err != nil {
		return model.PoolState{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return model.PoolState{}, err
	}
	return model.PoolState{SqrtPriceX96: sqrtPrice, Tick: tick, Liquidity: liquidity, TickSpacing: key.TickSpacing}, nil
}

// liquidityAhead falls back to the in-range liquidity when the tick walk fails.
func (a *V4Adapter) liquidityAhead(ctx context.Context, key model.PoolKey, state model.PoolState, down bool) *big.Int {
	ahead, err := liquidityAhead(ctx, state, down, func(ctx context.Context, tick int32) (model.TickInfo, error) {
		return a.TickInfo(ctx, key, tick)
	})
	if err != nil {
		a.logger.Debug("v4 tick walk failed", zap.Int32("tick", state.Tick), zap.Error(err))
		return state.Liquidity
	}
	return ahead
}

// TickInfo reads tick bookkeeping from StateView. A tick with gross liquidity is initialized.
func (a *V4Adapter) TickInfo(ctx context.Context, key model.PoolKey, tick int32) (model.TickInfo, error) {
	parsed, err := StateViewABI()
	if err != nil {
		return model.TickInfo{}, fmt.Errorf("parse state view abi: %w", err)
	}
	id, err := tickmath.PoolID(key)
	if err != nil {
		return model.TickInfo{}, err
	}
	values, err := callMethod(ctx, a.caller, a.chain.V4StateView, parsed, "getTickInfo", [32]byte(id), big.NewInt(int64(tick)))
	if err != nil {
		return model.TickInfo{}, err
	}
	if len(values) != 4 {
		return model.TickInfo{}, fmt.Errorf("%w: getTickInfo returned %d values", model.ErrMalformedResponse, len(values))
	}
	gross, err := asBigInt(values[0])
	if err != nil {
		return model.TickInfo{}, err
	}
	net, err := asBigInt(values[1])
	if err != nil {
		return model.TickInfo{}, err
	}
	return model.TickInfo{Tick: tick, LiquidityGross: gross, LiquidityNet: net, Initialized: gross.Sign() > 0}, nil
}

// EthUSDPrice quotes one native unit into USDC on the native/USDC 0.05% pool.
func (a *V4Adapter) EthUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	native := common.Address{}
	key, err := tickmath.NewPoolKey(native, a.chain.USDC, tickmath.FeeLow, common.Address{})
	if err != nil {
		return decimal.Zero, venueError(VenueV4, err)
	}
	route := model.Route{Path: []common.Address{native, a.chain.USDC}, Fees: []uint32{tickmath.FeeLow}, PoolKey: &key}
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(a.chain.NativeDecimals)), nil)
	out, _, err := a.quote(ctx, route, []model.PoolKey{key}, one)
	if err != nil {
		return decimal.Zero, venueError(VenueV4, err)
	}
	return model.FromUnits(out, a.chain.USDCDecimals), nil
}
