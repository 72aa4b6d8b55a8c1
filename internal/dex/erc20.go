package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Allowance reads ERC20 allowance(owner, spender).
func Allowance(ctx context.Context, caller Caller, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// BalanceOf reads ERC20 balanceOf(account).
func BalanceOf(ctx context.Context, caller Caller, token, account common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, token, parsed, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PackApprove returns calldata for approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return parsed.Pack("approve", spender, amount)
}

// Permit2Allowance is the (amount, expiration, nonce) triple Permit2 stores per owner/token/spender.
type Permit2Allowance struct {
	Amount     *big.Int
	Expiration uint64
	Nonce      uint64
}

// ReadPermit2Allowance reads Permit2 allowance(user, token, spender).
func ReadPermit2Allowance(ctx context.Context, caller Caller, permit2, owner, token, spender common.Address) (Permit2Allowance, error) {
	parsed, err := Permit2ABI()
	if err != nil {
		return Permit2Allowance{}, fmt.Errorf("parse permit2 abi: %w", err)
	}
	values, err := callMethod(ctx, caller, permit2, parsed, "allowance", owner, token, spender)
	if err != nil {
		return Permit2Allowance{}, err
	}
	if len(values) != 3 {
		return Permit2Allowance{}, fmt.Errorf("permit2 allowance: unexpected %d values", len(values))
	}
	amount, err := asBigInt(values[0])
	if err != nil {
		return Permit2Allowance{}, err
	}
	expiration, err := asBigInt(values[1])
	if err != nil {
		return Permit2Allowance{}, err
	}
	nonce, err := asBigInt(values[2])
	if err != nil {
		return Permit2Allowance{}, err
	}
	return Permit2Allowance{Amount: amount, Expiration: expiration.Uint64(), Nonce: nonce.Uint64()}, nil
}

// PackPermit2Approve returns calldata for Permit2 approve(token, spender, amount, expiration).
func PackPermit2Approve(token, spender common.Address, amount *big.Int, expiration uint64) ([]byte, error) {
	parsed, err := Permit2ABI()
	if err != nil {
		return nil, fmt.Errorf("parse permit2 abi: %w", err)
	}
	return parsed.Pack("approve", token, spender, amount, new(big.Int).SetUint64(expiration))
}

// TransferredTo sums ERC20 Transfer events of token whose recipient is to.
// It returns nil when no matching transfer was emitted.
func TransferredTo(logs []*types.Log, token, to common.Address) (*big.Int, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	event := parsed.Events["Transfer"]
	recipient := common.BytesToHash(to.Bytes())

	var total *big.Int
	for _, log := range logs {
		if log == nil || log.Address != token || len(log.Topics) != 3 {
			continue
		}
		if log.Topics[0] != event.ID || log.Topics[2] != recipient {
			continue
		}
		values, err := event.Inputs.NonIndexed().Unpack(log.Data)
		if err != nil || len(values) != 1 {
			return nil, fmt.Errorf("decode transfer log %d: %v", log.Index, err)
		}
		value, err := asBigInt(values[0])
		if err != nil {
			return nil, err
		}
		if total == nil {
			total = new(big.Int)
		}
		total.Add(total, value)
	}
	return total, nil
}
