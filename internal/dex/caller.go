package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// Caller performs read-only contract calls against the latest state.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// revertCode is the JSON-RPC error code nodes use for reverted eth_calls.
const revertCode = 3

func callMethod(ctx context.Context, caller Caller, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if caller == nil {
		return nil, fmt.Errorf("contract caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w: %w", method, classifyCallError(err), err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("call %s: %w: no contract code at %s", method, model.ErrPoolNotFound, to.Hex())
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w: %w", method, model.ErrMalformedResponse, err)
	}
	return values, nil
}

// classifyCallError maps an eth_call failure onto the venue error taxonomy.
// Reverts are permanent for the given input; everything else is treated as transport trouble.
func classifyCallError(err error) error {
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return model.ErrPoolNotFound
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == revertCode {
		return model.ErrPoolNotFound
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return model.ErrPoolNotFound
	}
	return model.ErrVenueUnreachable
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("%w: unsupported address type %T", model.ErrMalformedResponse, value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("%w: unsupported int type %T", model.ErrMalformedResponse, value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("%w: unsupported uint8 type %T", model.ErrMalformedResponse, value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("%w: int24 overflow: %s", model.ErrMalformedResponse, value.String())
	}
	return int32(value.Int64()), nil
}

func venueError(venue string, err error) error {
	return &model.VenueError{Venue: venue, Err: err}
}
