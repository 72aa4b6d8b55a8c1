package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Quote is a single venue's answer for one route. Quotes are never cached.
type Quote struct {
	Venue           string          `json:"venue"`
	AmountIn        *big.Int        `json:"amount_in"`
	AmountOut       *big.Int        `json:"amount_out"`
	PriceImpact     decimal.Decimal `json:"price_impact"`
	ActiveLiquidity *big.Int        `json:"active_liquidity,omitempty"`
	GasEstimate     *big.Int        `json:"gas_estimate,omitempty"`
	Route           Route           `json:"route"`
}
