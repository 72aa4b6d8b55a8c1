package encoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	addressT    = mustType("address", nil)
	addressesT  = mustType("address[]", nil)
	boolT       = mustType("bool", nil)
	bytesT      = mustType("bytes", nil)
	bytesArrayT = mustType("bytes[]", nil)
	uint160T    = mustType("uint160", nil)
	uint256T    = mustType("uint256", nil)

	poolKeyComponents = []abi.ArgumentMarshaling{
		{Name: "currency0", Type: "address"},
		{Name: "currency1", Type: "address"},
		{Name: "fee", Type: "uint24"},
		{Name: "tickSpacing", Type: "int24"},
		{Name: "hooks", Type: "address"},
	}

	exactInputSingleT = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "poolKey", Type: "tuple", Components: poolKeyComponents},
		{Name: "zeroForOne", Type: "bool"},
		{Name: "amountIn", Type: "uint128"},
		{Name: "amountOutMinimum", Type: "uint128"},
		{Name: "hookData", Type: "bytes"},
	})

	exactInputT = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "currencyIn", Type: "address"},
		{Name: "path", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "intermediateCurrency", Type: "address"},
			{Name: "fee", Type: "uint24"},
			{Name: "tickSpacing", Type: "int24"},
			{Name: "hooks", Type: "address"},
			{Name: "hookData", Type: "bytes"},
		}},
		{Name: "amountIn", Type: "uint128"},
		{Name: "amountOutMinimum", Type: "uint128"},
	})

	permitSingleT = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "details", Type: "tuple", Components: []abi.ArgumentMarshaling{
			{Name: "token", Type: "address"},
			{Name: "amount", Type: "uint160"},
			{Name: "expiration", Type: "uint48"},
			{Name: "nonce", Type: "uint48"},
		}},
		{Name: "spender", Type: "address"},
		{Name: "sigDeadline", Type: "uint256"},
	})
)

func mustType(name string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(name, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

func args(types ...abi.Type) abi.Arguments {
	out := make(abi.Arguments, 0, len(types))
	for _, typ := range types {
		out = append(out, abi.Argument{Type: typ})
	}
	return out
}

type poolKeyArg struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

type exactInputSingleArg struct {
	PoolKey          poolKeyArg
	ZeroForOne       bool
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	HookData         []byte
}

type pathKeyArg struct {
	IntermediateCurrency common.Address
	Fee                  *big.Int
	TickSpacing          *big.Int
	Hooks                common.Address
	HookData             []byte
}

type exactInputArg struct {
	CurrencyIn       common.Address
	Path             []pathKeyArg
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

type permitDetailsArg struct {
	Token      common.Address
	Amount     *big.Int
	Expiration *big.Int
	Nonce      *big.Int
}

type permitSingleArg struct {
	Details     permitDetailsArg
	Spender     common.Address
	SigDeadline *big.Int
}

// checkUint rejects nil, negative, or wider-than-bits values.
func checkUint(name string, v *big.Int, bits uint) error {
	if v == nil {
		return fmt.Errorf("%s is required", name)
	}
	if v.Sign() < 0 || v.BitLen() > int(bits) {
		return fmt.Errorf("%s %s does not fit uint%d", name, v, bits)
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
