package dex

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const pricePrecision = 36

var (
	hundred = decimal.NewFromInt(100)
	q192    = new(big.Int).Lsh(big.NewInt(1), 192)
)

// spotPrice converts sqrtPriceX96 into the raw-unit price of tokenOut per tokenIn.
func spotPrice(sqrtPriceX96 *big.Int, zeroForOne bool) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96), 0)
	den := decimal.NewFromBigInt(q192, 0)
	if zeroForOne {
		return num.DivRound(den, pricePrecision)
	}
	return den.DivRound(num, pricePrecision)
}

// executionImpact is how far the realized price falls below spot, in percent.
// Pool fees are part of the shortfall.
func executionImpact(spot decimal.Decimal, amountIn, amountOut *big.Int) decimal.Decimal {
	if spot.IsZero() || amountIn == nil || amountIn.Sign() == 0 || amountOut == nil {
		return decimal.Zero
	}
	realized := decimal.NewFromBigInt(amountOut, 0).DivRound(decimal.NewFromBigInt(amountIn, 0), pricePrecision)
	impact := spot.Sub(realized).DivRound(spot, pricePrecision).Mul(hundred)
	if impact.IsNegative() {
		return decimal.Zero
	}
	return impact.Round(4)
}

// sqrtPriceMoveImpact is the relative pool price move between two sqrt prices, in percent.
func sqrtPriceMoveImpact(before, after *big.Int) decimal.Decimal {
	if before == nil || after == nil || before.Sign() == 0 {
		return decimal.Zero
	}
	ratio := decimal.NewFromBigInt(after, 0).DivRound(decimal.NewFromBigInt(before, 0), pricePrecision)
	move := decimal.NewFromInt(1).Sub(ratio.Mul(ratio)).Abs()
	return move.Mul(hundred).Round(4)
}

// compoundImpact combines per-hop impacts: 1 - Π(1 - i/100).
func compoundImpact(impacts []decimal.Decimal) decimal.Decimal {
	remaining := decimal.NewFromInt(1)
	for _, impact := range impacts {
		remaining = remaining.Mul(decimal.NewFromInt(1).Sub(impact.Div(hundred)))
	}
	return decimal.NewFromInt(1).Sub(remaining).Mul(hundred).Round(4)
}

// constantProductImpact compares output to the fee-adjusted mid price along reserves.
func constantProductImpact(amountIn, amountOut *big.Int, reserves [][2]*big.Int) decimal.Decimal {
	if len(reserves) == 0 {
		return decimal.Zero
	}
	spot := decimal.NewFromInt(1)
	feeFactor := decimal.New(997, -3)
	for _, r := range reserves {
		if r[0] == nil || r[0].Sign() == 0 || r[1] == nil {
			return decimal.Zero
		}
		mid := decimal.NewFromBigInt(r[1], 0).DivRound(decimal.NewFromBigInt(r[0], 0), pricePrecision)
		spot = spot.Mul(mid).Mul(feeFactor)
	}
	return executionImpact(spot, amountIn, amountOut)
}
