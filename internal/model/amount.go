package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatUnits renders value / 10^decimals with full precision.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// ParseUnits converts a human decimal string into raw units, truncating extra precision.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: amount is empty", ErrInvalidRequest)
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", ErrInvalidRequest, amount, err)
	}
	return ToUnits(d, decimals)
}

// ToUnits shifts a decimal amount into raw units. The result must be positive.
func ToUnits(d decimal.Decimal, decimals uint8) (*big.Int, error) {
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidRequest, d.String())
	}
	raw := d.Shift(int32(decimals)).Truncate(0).BigInt()
	if raw.Sign() == 0 {
		return nil, fmt.Errorf("%w: amount %s is below token precision", ErrInvalidRequest, d.String())
	}
	return raw, nil
}

// FromUnits converts raw units into a decimal amount.
func FromUnits(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}
