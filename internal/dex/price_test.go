package dex

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSpotPrice(t *testing.T) {
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)
	sqrt := new(big.Int).Mul(q96, big.NewInt(2))

	if got := spotPrice(sqrt, true); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("zeroForOne price %s != 4", got)
	}
	if got := spotPrice(sqrt, false); !got.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("oneForZero price %s != 0.25", got)
	}
	if got := spotPrice(nil, true); !got.IsZero() {
		t.Fatalf("nil sqrt price should be zero")
	}
}

func TestExecutionImpact(t *testing.T) {
	got := executionImpact(decimal.NewFromInt(4), big.NewInt(100), big.NewInt(380))
	if !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("impact %s != 5", got)
	}
	got = executionImpact(decimal.NewFromInt(4), big.NewInt(100), big.NewInt(410))
	if !got.IsZero() {
		t.Fatalf("favourable execution should report zero impact, got %s", got)
	}
}

func TestSqrtPriceMoveImpact(t *testing.T) {
	before := big.NewInt(1000)
	after := big.NewInt(900)
	got := sqrtPriceMoveImpact(before, after)
	if !got.Equal(decimal.NewFromInt(19)) {
		t.Fatalf("impact %s != 19", got)
	}
}

func TestCompoundImpact(t *testing.T) {
	got := compoundImpact([]decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(10)})
	if !got.Equal(decimal.NewFromInt(19)) {
		t.Fatalf("compound impact %s != 19", got)
	}
}

func TestConstantProductImpact(t *testing.T) {
	reserves := [][2]*big.Int{{big.NewInt(1000000), big.NewInt(2000000)}}
	amountIn := big.NewInt(1000)
	// 1000*997*2e6 / (1e6*1000 + 1000*997)
	amountOut := big.NewInt(1992)

	got := constantProductImpact(amountIn, amountOut, reserves)
	if got.LessThan(decimal.RequireFromString("0.09")) || got.GreaterThan(decimal.RequireFromString("0.11")) {
		t.Fatalf("impact %s outside expected range", got)
	}
}
