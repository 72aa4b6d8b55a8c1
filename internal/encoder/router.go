package encoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Recipient placeholders resolved by the router at execution time.
var (
	MsgSender   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	AddressThis = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// Command is one opcode and its encoded input.
type Command struct {
	Type        CommandType
	Input       []byte
	AllowRevert bool
}

// EncodeV3SwapExactIn swaps along an encoded v3 path.
func EncodeV3SwapExactIn(recipient common.Address, amountIn, amountOutMin *big.Int, path []byte, payerIsUser bool) (Command, error) {
	if err := checkUint("amountIn", amountIn, 256); err != nil {
		return Command{}, err
	}
	if _, _, err := DecodePath(path); err != nil {
		return Command{}, err
	}
	encoded, err := args(addressT, uint256T, uint256T, bytesT, boolT).Pack(recipient, amountIn, orZero(amountOutMin), path, payerIsUser)
	if err != nil {
		return Command{}, fmt.Errorf("encode v3 swap exact in: %w", err)
	}
	return Command{Type: V3SwapExactIn, Input: encoded}, nil
}

// EncodeV2SwapExactIn swaps along a v2 token path.
func EncodeV2SwapExactIn(recipient common.Address, amountIn, amountOutMin *big.Int, path []common.Address, payerIsUser bool) (Command, error) {
	if err := checkUint("amountIn", amountIn, 256); err != nil {
		return Command{}, err
	}
	if len(path) < 2 {
		return Command{}, fmt.Errorf("v2 path needs at least two tokens")
	}
	encoded, err := args(addressT, uint256T, uint256T, addressesT, boolT).Pack(recipient, amountIn, orZero(amountOutMin), path, payerIsUser)
	if err != nil {
		return Command{}, fmt.Errorf("encode v2 swap exact in: %w", err)
	}
	return Command{Type: V2SwapExactIn, Input: encoded}, nil
}

// EncodeWrapETH wraps the router's native balance into WETH for recipient.
func EncodeWrapETH(recipient common.Address, amountMin *big.Int) (Command, error) {
	if err := checkUint("amountMin", amountMin, 256); err != nil {
		return Command{}, err
	}
	encoded, err := args(addressT, uint256T).Pack(recipient, amountMin)
	if err != nil {
		return Command{}, fmt.Errorf("encode wrap eth: %w", err)
	}
	return Command{Type: WrapETH, Input: encoded}, nil
}

// EncodeUnwrapWETH unwraps the router's WETH balance and sends native to recipient.
func EncodeUnwrapWETH(recipient common.Address, amountMin *big.Int) (Command, error) {
	if err := checkUint("amountMin", amountMin, 256); err != nil {
		return Command{}, err
	}
	encoded, err := args(addressT, uint256T).Pack(recipient, amountMin)
	if err != nil {
		return Command{}, fmt.Errorf("encode unwrap weth: %w", err)
	}
	return Command{Type: UnwrapWETH, Input: encoded}, nil
}

// EncodeSweep sends the router's full balance of token to recipient.
func EncodeSweep(token, recipient common.Address, amountMin *big.Int) (Command, error) {
	if err := checkUint("amountMin", amountMin, 256); err != nil {
		return Command{}, err
	}
	encoded, err := args(addressT, addressT, uint256T).Pack(token, recipient, amountMin)
	if err != nil {
		return Command{}, fmt.Errorf("encode sweep: %w", err)
	}
	return Command{Type: Sweep, Input: encoded}, nil
}
