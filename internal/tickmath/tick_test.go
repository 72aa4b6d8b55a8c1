package tickmath

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

func TestTickSpacingFor(t *testing.T) {
	want := map[uint32]int32{100: 1, 500: 10, 3000: 60, 10000: 200}
	for fee, spacing := range want {
		got, err := TickSpacingFor(fee)
		if err != nil {
			t.Fatalf("fee %d: %v", fee, err)
		}
		if got != spacing {
			t.Fatalf("fee %d: spacing %d != %d", fee, got, spacing)
		}
	}
	if _, err := TickSpacingFor(2500); !errors.Is(err, model.ErrUnknownFeeTier) {
		t.Fatalf("expected ErrUnknownFeeTier, got %v", err)
	}
}

func TestAlignToSpacing(t *testing.T) {
	cases := []struct {
		tick, spacing, want int32
	}{
		{-73890, 60, -73920},
		{-60, 60, -60},
		{-1, 60, -60},
		{0, 60, 0},
		{59, 60, 0},
		{73890, 60, 73860},
		{-5, 1, -5},
		{-887272, 200, -887400},
	}
	for _, tc := range cases {
		got, err := AlignToSpacing(tc.tick, tc.spacing)
		if err != nil {
			t.Fatalf("align %d/%d: %v", tc.tick, tc.spacing, err)
		}
		if got != tc.want {
			t.Fatalf("align %d/%d = %d, want %d", tc.tick, tc.spacing, got, tc.want)
		}
	}
}

func TestAlignToSpacingBounds(t *testing.T) {
	for _, spacing := range []int32{1, 10, 60, 200} {
		for tick := int32(-1000); tick <= 1000; tick += 7 {
			got, err := AlignToSpacing(tick, spacing)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got > tick || tick >= got+spacing {
				t.Fatalf("tick %d spacing %d: aligned %d out of bounds", tick, spacing, got)
			}
			if got%spacing != 0 {
				t.Fatalf("tick %d spacing %d: aligned %d not a multiple", tick, spacing, got)
			}
		}
	}
}

func TestAlignToSpacingInvalid(t *testing.T) {
	if _, err := AlignToSpacing(10, 0); err == nil {
		t.Fatalf("expected error for zero spacing")
	}
}

func TestNextInitializableTick(t *testing.T) {
	up, err := NextInitializableTick(-73890, 60, Up)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if up != -73860 {
		t.Fatalf("up tick %d != -73860", up)
	}
	down, _ := NextInitializableTick(-73890, 60, Down)
	if down != -73920 {
		t.Fatalf("down tick %d != -73920", down)
	}
}

func TestCrossTick(t *testing.T) {
	liquidity := uint256.NewInt(1000)

	got, err := CrossTick(liquidity, big.NewInt(250), Up)
	if err != nil || got.Uint64() != 1250 {
		t.Fatalf("cross up positive: %v %v", got, err)
	}
	got, err = CrossTick(liquidity, big.NewInt(250), Down)
	if err != nil || got.Uint64() != 750 {
		t.Fatalf("cross down positive: %v %v", got, err)
	}
	got, err = CrossTick(liquidity, big.NewInt(-300), Up)
	if err != nil || got.Uint64() != 700 {
		t.Fatalf("cross up negative: %v %v", got, err)
	}
	got, err = CrossTick(liquidity, big.NewInt(-300), Down)
	if err != nil || got.Uint64() != 1300 {
		t.Fatalf("cross down negative: %v %v", got, err)
	}
	if liquidity.Uint64() != 1000 {
		t.Fatalf("input liquidity mutated: %s", liquidity)
	}
}

func TestCrossTickBounds(t *testing.T) {
	if _, err := CrossTick(uint256.NewInt(10), big.NewInt(11), Down); err == nil {
		t.Fatalf("expected underflow error")
	}
	maxU128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	start, _ := uint256.FromBig(maxU128)
	if _, err := CrossTick(start, big.NewInt(1), Up); err == nil {
		t.Fatalf("expected overflow error")
	}
}
