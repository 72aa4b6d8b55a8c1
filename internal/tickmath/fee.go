package tickmath

import (
	"fmt"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// Fee tiers in hundredths of a basis point.
const (
	FeeLowest uint32 = 100
	FeeLow    uint32 = 500
	FeeMedium uint32 = 3000
	FeeHigh   uint32 = 10000
)

var tickSpacings = map[uint32]int32{
	FeeLowest: 1,
	FeeLow:    10,
	FeeMedium: 60,
	FeeHigh:   200,
}

// AllFeeTiers lists the tiers in ascending order.
func AllFeeTiers() []uint32 {
	return []uint32{FeeLowest, FeeLow, FeeMedium, FeeHigh}
}

// TickSpacingFor returns the fixed tick spacing of a fee tier.
func TickSpacingFor(fee uint32) (int32, error) {
	spacing, ok := tickSpacings[fee]
	if !ok {
		return 0, fmt.Errorf("%w: %d", model.ErrUnknownFeeTier, fee)
	}
	return spacing, nil
}
