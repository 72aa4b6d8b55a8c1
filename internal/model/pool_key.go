package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolKey identifies a concentrated-liquidity pool. Currency0 sorts below Currency1.
type PoolKey struct {
	Currency0   common.Address `json:"currency0"`
	Currency1   common.Address `json:"currency1"`
	Fee         uint32         `json:"fee"`
	TickSpacing int32          `json:"tick_spacing"`
	Hooks       common.Address `json:"hooks"`
}

// ZeroForOne reports whether swapping tokenIn through the pool moves currency0 to currency1.
func (k PoolKey) ZeroForOne(tokenIn common.Address) bool {
	return k.Currency0 == tokenIn
}

// TickInfo holds the liquidity bookkeeping of one tick.
type TickInfo struct {
	Tick           int32    `json:"tick"`
	LiquidityGross *big.Int `json:"liquidity_gross"`
	LiquidityNet   *big.Int `json:"liquidity_net"`
	Initialized    bool     `json:"initialized"`
}

// PoolState is the live price and liquidity of a concentrated-liquidity pool.
type PoolState struct {
	SqrtPriceX96 *big.Int `json:"sqrt_price_x96"`
	Tick         int32    `json:"tick"`
	Liquidity    *big.Int `json:"liquidity"`
	TickSpacing  int32    `json:"tick_spacing"`
}
