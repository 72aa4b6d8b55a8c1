package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/tickmath"
)

// maxTickWalk bounds how many initializable ticks are read past the current one.
const maxTickWalk = 4

type tickReader func(ctx context.Context, tick int32) (model.TickInfo, error)

// zeroForOne reports whether swapping tokenIn for tokenOut moves the pool price down.
func zeroForOne(tokenIn, tokenOut common.Address) bool {
	token0, _ := tickmath.SortCurrencies(tokenIn, tokenOut)
	return token0 == tokenIn
}

// liquidityAhead returns the lower of the in-range liquidity and the liquidity left
// after crossing the next initialized tick in the swap direction. When no initialized
// tick is found within maxTickWalk spacings the in-range liquidity is returned.
//
// Concentrated liquidity L satisfies x*y = L^2 over virtual reserves, the same unit
// as sqrt(reserve0*reserve1) on a constant-product pair.
func liquidityAhead(ctx context.Context, state model.PoolState, down bool, read tickReader) (*big.Int, error) {
	if state.Liquidity == nil || state.Liquidity.Sign() < 0 {
		return nil, fmt.Errorf("%w: pool liquidity %v", model.ErrMalformedResponse, state.Liquidity)
	}
	current, overflow := uint256.FromBig(state.Liquidity)
	if overflow {
		return nil, fmt.Errorf("%w: pool liquidity %s out of range", model.ErrMalformedResponse, state.Liquidity)
	}

	dir := tickmath.Up
	step := state.TickSpacing
	if down {
		dir = tickmath.Down
		step = -step
	}
	tick, err := tickmath.NextInitializableTick(state.Tick, state.TickSpacing, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}

	for i := 0; i < maxTickWalk && tick >= tickmath.MinTick && tick <= tickmath.MaxTick; i++ {
		info, err := read(ctx, tick)
		if err != nil {
			return nil, fmt.Errorf("read tick %d: %w", tick, err)
		}
		if info.Initialized && info.LiquidityNet != nil {
			after, err := tickmath.CrossTick(current, info.LiquidityNet, dir)
			if err != nil {
				return nil, fmt.Errorf("%w: tick %d: %v", model.ErrMalformedResponse, tick, err)
			}
			if after.Lt(current) {
				return after.ToBig(), nil
			}
			return current.ToBig(), nil
		}
		tick += step
	}
	return current.ToBig(), nil
}
