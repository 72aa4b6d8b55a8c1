package tickmath

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

var poolKeyArgs = abi.Arguments{
	{Type: mustType("address")},
	{Type: mustType("address")},
	{Type: mustType("uint24")},
	{Type: mustType("int24")},
	{Type: mustType("address")},
}

func mustType(name string) abi.Type {
	typ, err := abi.NewType(name, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// SortCurrencies orders two currencies canonically, lower address first.
func SortCurrencies(a, b common.Address) (common.Address, common.Address) {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		return b, a
	}
	return a, b
}

// NewPoolKey builds a canonical pool key, taking the tick spacing from the fee table.
func NewPoolKey(tokenA, tokenB common.Address, fee uint32, hooks common.Address) (model.PoolKey, error) {
	if tokenA == tokenB {
		return model.PoolKey{}, fmt.Errorf("pool currencies must differ: %s", tokenA.Hex())
	}
	spacing, err := TickSpacingFor(fee)
	if err != nil {
		return model.PoolKey{}, err
	}
	c0, c1 := SortCurrencies(tokenA, tokenB)
	return model.PoolKey{
		Currency0:   c0,
		Currency1:   c1,
		Fee:         fee,
		TickSpacing: spacing,
		Hooks:       hooks,
	}, nil
}

// PoolID is keccak256(abi.encode(key)), the identifier pools are stored under.
func PoolID(key model.PoolKey) (common.Hash, error) {
	encoded, err := poolKeyArgs.Pack(
		key.Currency0,
		key.Currency1,
		new(big.Int).SetUint64(uint64(key.Fee)),
		big.NewInt(int64(key.TickSpacing)),
		key.Hooks,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode pool key: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}
