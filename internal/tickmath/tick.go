package tickmath

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// Direction of price movement when crossing a tick.
type Direction int

const (
	Down Direction = iota
	Up
)

var maxLiquidity = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// AlignToSpacing returns the nearest multiple of spacing at or below tick.
// Division floors toward negative infinity so negative ticks land on the lower side.
func AlignToSpacing(tick, spacing int32) (int32, error) {
	if spacing <= 0 {
		return 0, fmt.Errorf("tick spacing must be positive, got %d", spacing)
	}
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing, nil
}

// NextInitializableTick returns the aligned tick strictly above tick when moving up,
// or the aligned tick at or below it when moving down.
func NextInitializableTick(tick, spacing int32, dir Direction) (int32, error) {
	aligned, err := AlignToSpacing(tick, spacing)
	if err != nil {
		return 0, err
	}
	if dir == Up {
		return aligned + spacing, nil
	}
	return aligned, nil
}

// CrossTick applies a tick's liquidityNet to the running liquidity.
// Moving up adds the net delta, moving down subtracts it.
func CrossTick(liquidity *uint256.Int, liquidityNet *big.Int, dir Direction) (*uint256.Int, error) {
	if liquidity == nil || liquidityNet == nil {
		return nil, fmt.Errorf("liquidity and liquidityNet are required")
	}
	net := new(big.Int).Set(liquidityNet)
	if dir == Down {
		net.Neg(net)
	}
	delta, overflow := uint256.FromBig(new(big.Int).Abs(net))
	if overflow {
		return nil, fmt.Errorf("liquidity net %s out of range", liquidityNet)
	}

	out := new(uint256.Int)
	if net.Sign() >= 0 {
		if _, overflow := out.AddOverflow(liquidity, delta); overflow || out.Gt(maxLiquidity) {
			return nil, fmt.Errorf("liquidity overflow crossing tick")
		}
		return out, nil
	}
	if _, underflow := out.SubOverflow(liquidity, delta); underflow {
		return nil, fmt.Errorf("liquidity underflow crossing tick")
	}
	return out, nil
}
