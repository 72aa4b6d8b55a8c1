package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NativeDecimals is the precision of the chain's native asset.
const NativeDecimals = 18

// TokenMeta captures ERC20 metadata.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
}

// NativeTokenMeta describes the native asset, addressed by the zero address.
func NativeTokenMeta() TokenMeta {
	return TokenMeta{Decimals: NativeDecimals, Symbol: "ETH", Name: "Ether"}
}

// Format renders a raw amount in the token's units.
func (m TokenMeta) Format(value *big.Int) string {
	return FormatUnits(value, m.Decimals)
}
