package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/registry"
)

const VenueV2 = "uniswap-v2"

// V2Fee is the fixed constant-product pool fee, expressed like a concentrated-liquidity fee tier.
const V2Fee uint32 = 3000

// V2Adapter quotes constant-product pools through the V2 router.
type V2Adapter struct {
	caller Caller
	chain  registry.Chain
	logger *zap.Logger
}

func NewV2Adapter(caller Caller, chain registry.Chain, logger *zap.Logger) *V2Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &V2Adapter{caller: caller, chain: chain, logger: logger}
}

func (a *V2Adapter) Name() string { return VenueV2 }

// Quote prices route through getAmountsOut and derives impact from the pair reserves.
func (a *V2Adapter) Quote(ctx context.Context, route model.Route, amountIn *big.Int) (model.Quote, error) {
	if err := route.Validate(); err != nil {
		return model.Quote{}, venueError(VenueV2, fmt.Errorf("%w: %v", model.ErrInvalidRequest, err))
	}
	amounts, err := a.amountsOut(ctx, amountIn, route.Path)
	if err != nil {
		return model.Quote{}, venueError(VenueV2, err)
	}

	reserves := make([][2]*big.Int, 0, route.Hops())
	var liquidity *big.Int
	for i := 0; i < route.Hops(); i++ {
		reserveIn, reserveOut, err := a.Reserves(ctx, route.Path[i], route.Path[i+1])
		if err != nil {
			return model.Quote{}, venueError(VenueV2, err)
		}
		reserves = append(reserves, [2]*big.Int{reserveIn, reserveOut})
		// sqrt(k) is the liquidity L of a full-range concentrated position.
		l := new(big.Int).Sqrt(new(big.Int).Mul(reserveIn, reserveOut))
		if liquidity == nil || l.Cmp(liquidity) < 0 {
			liquidity = l
		}
	}

	amountOut := amounts[len(amounts)-1]
	quote := model.Quote{
		Venue:           VenueV2,
		AmountIn:        new(big.Int).Set(amountIn),
		AmountOut:       amountOut,
		PriceImpact:     constantProductImpact(amountIn, amountOut, reserves),
		ActiveLiquidity: liquidity,
		Route:           route,
	}
	a.logger.Debug("v2 quote",
		zap.Int("hops", route.Hops()),
		zap.String("amount_out", amountOut.String()),
		zap.String("price_impact", quote.PriceImpact.String()),
	)
	return quote, nil
}

func (a *V2Adapter) amountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	parsed, err := V2RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 router abi: %w", err)
	}
	values, err := callMethod(ctx, a.caller, a.chain.V2Router, parsed, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts, ok := values[0].([]*big.Int)
	if !ok || len(amounts) != len(path) {
		return nil, fmt.Errorf("%w: getAmountsOut returned %T for %d tokens", model.ErrMalformedResponse, values[0], len(path))
	}
	return amounts, nil
}

// Reserves returns the pair reserves oriented as (tokenIn, tokenOut).
func (a *V2Adapter) Reserves(ctx context.Context, tokenIn, tokenOut common.Address) (*big.Int, *big.Int, error) {
	factoryABI, err := V2FactoryABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse v2 factory abi: %w", err)
	}
	pairABI, err := V2PairABI()
	if err != nil {
		return nil, nil, fmt.Errorf("parse v2 pair abi: %w", err)
	}

	values, err := callMethod(ctx, a.caller, a.chain.V2Factory, factoryABI, "getPair", tokenIn, tokenOut)
	if err != nil {
		return nil, nil, err
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return nil, nil, err
	}
	if pair == (common.Address{}) {
		return nil, nil, fmt.Errorf("%w: no v2 pair for %s/%s", model.ErrPoolNotFound, tokenIn.Hex(), tokenOut.Hex())
	}

	values, err = callMethod(ctx, a.caller, pair, pairABI, "token0")
	if err != nil {
		return nil, nil, err
	}
	token0, err := asAddress(values[0])
	if err != nil {
		return nil, nil, err
	}
	values, err = callMethod(ctx, a.caller, pair, pairABI, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	if len(values) != 3 {
		return nil, nil, fmt.Errorf("%w: getReserves returned %d values", model.ErrMalformedResponse, len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return nil, nil, err
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return nil, nil, err
	}
	if token0 == tokenIn {
		return reserve0, reserve1, nil
	}
	return reserve1, reserve0, nil
}

// TokenWethLiquidity returns the WETH side of the token/WETH pair, zero when there is no pair.
func (a *V2Adapter) TokenWethLiquidity(ctx context.Context, token common.Address) (*big.Int, error) {
	_, wethReserve, err := a.Reserves(ctx, token, a.chain.WETH)
	if errors.Is(err, model.ErrPoolNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, venueError(VenueV2, err)
	}
	return wethReserve, nil
}

// TokenUSDCPrice prices one whole token in USDC, routing through WETH.
func (a *V2Adapter) TokenUSDCPrice(ctx context.Context, token common.Address, decimals uint8) (decimal.Decimal, error) {
	path := []common.Address{token, a.chain.WETH, a.chain.USDC}
	if token == a.chain.WETH {
		path = []common.Address{token, a.chain.USDC}
	}
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	amounts, err := a.amountsOut(ctx, one, path)
	if err != nil {
		return decimal.Zero, venueError(VenueV2, err)
	}
	return model.FromUnits(amounts[len(amounts)-1], a.chain.USDCDecimals), nil
}

// EthUSDPrice prices one native unit through the WETH/USDC pair.
func (a *V2Adapter) EthUSDPrice(ctx context.Context) (decimal.Decimal, error) {
	return a.TokenUSDCPrice(ctx, a.chain.WETH, a.chain.NativeDecimals)
}

// PackSwapExactETHForTokens returns router calldata for a native-input swap.
func PackSwapExactETHForTokens(amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	parsed, err := V2RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 router abi: %w", err)
	}
	return parsed.Pack("swapExactETHForTokens", amountOutMin, path, to, deadline)
}

// PackSwapExactTokensForTokens returns router calldata for a token-to-token swap.
func PackSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	parsed, err := V2RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 router abi: %w", err)
	}
	return parsed.Pack("swapExactTokensForTokens", amountIn, amountOutMin, path, to, deadline)
}

// PackSwapExactTokensForETH returns router calldata for a native-output swap.
func PackSwapExactTokensForETH(amountIn, amountOutMin *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	parsed, err := V2RouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse v2 router abi: %w", err)
	}
	return parsed.Pack("swapExactTokensForETH", amountIn, amountOutMin, path, to, deadline)
}
