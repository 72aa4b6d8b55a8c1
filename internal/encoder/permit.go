package encoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PermitSingle is a Permit2 allowance grant signed off-chain by the owner.
type PermitSingle struct {
	Token       common.Address
	Amount      *big.Int
	Expiration  uint64
	Nonce       uint64
	Spender     common.Address
	SigDeadline *big.Int
}

const maxUint48 = 1<<48 - 1

// EncodePermit2Permit grants the router an allowance through a signed permit.
func EncodePermit2Permit(permit PermitSingle, signature []byte) (Command, error) {
	if err := checkUint("amount", permit.Amount, 160); err != nil {
		return Command{}, err
	}
	if err := checkUint("sigDeadline", permit.SigDeadline, 256); err != nil {
		return Command{}, err
	}
	if permit.Expiration > maxUint48 || permit.Nonce > maxUint48 {
		return Command{}, fmt.Errorf("permit expiration and nonce must fit uint48")
	}
	if len(signature) == 0 {
		return Command{}, fmt.Errorf("permit signature is required")
	}
	encoded, err := args(permitSingleT, bytesT).Pack(permitSingleArg{
		Details: permitDetailsArg{
			Token:      permit.Token,
			Amount:     permit.Amount,
			Expiration: new(big.Int).SetUint64(permit.Expiration),
			Nonce:      new(big.Int).SetUint64(permit.Nonce),
		},
		Spender:     permit.Spender,
		SigDeadline: permit.SigDeadline,
	}, signature)
	if err != nil {
		return Command{}, fmt.Errorf("encode permit2 permit: %w", err)
	}
	return Command{Type: Permit2Permit, Input: encoded}, nil
}

// EncodePermit2TransferFrom pulls amount of token from the caller to recipient through Permit2.
func EncodePermit2TransferFrom(token, recipient common.Address, amount *big.Int) (Command, error) {
	if err := checkUint("amount", amount, 160); err != nil {
		return Command{}, err
	}
	encoded, err := args(addressT, addressT, uint160T).Pack(token, recipient, amount)
	if err != nil {
		return Command{}, fmt.Errorf("encode permit2 transfer from: %w", err)
	}
	return Command{Type: Permit2TransferFrom, Input: encoded}, nil
}
