package encoder

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// DefaultDeadline is the execution window used when none is configured.
const DefaultDeadline = 20 * time.Minute

const universalRouterABIJSON = `[
  {"inputs": [
    {"internalType": "bytes", "name": "commands", "type": "bytes"},
    {"internalType": "bytes[]", "name": "inputs", "type": "bytes[]"},
    {"internalType": "uint256", "name": "deadline", "type": "uint256"}
  ], "name": "execute", "outputs": [], "stateMutability": "payable", "type": "function"}
]`

var (
	universalRouterABI     abi.ABI
	universalRouterABIOnce sync.Once
	universalRouterABIErr  error
)

// UniversalRouterABI returns the parsed execute ABI.
func UniversalRouterABI() (abi.ABI, error) {
	universalRouterABIOnce.Do(func() {
		universalRouterABI, universalRouterABIErr = abi.JSON(strings.NewReader(universalRouterABIJSON))
	})
	return universalRouterABI, universalRouterABIErr
}

// Deadline returns now+ttl as a unix timestamp.
func Deadline(now time.Time, ttl time.Duration) *big.Int {
	if ttl <= 0 {
		ttl = DefaultDeadline
	}
	return big.NewInt(now.Add(ttl).Unix())
}

// BuildCommandSequence concatenates opcodes in call order and keeps inputs aligned with them.
func BuildCommandSequence(commands []Command, deadline *big.Int) (model.CommandSequence, error) {
	if len(commands) == 0 {
		return model.CommandSequence{}, fmt.Errorf("command sequence needs at least one command")
	}
	if deadline == nil || deadline.Sign() <= 0 {
		return model.CommandSequence{}, fmt.Errorf("deadline is required")
	}
	seq := model.CommandSequence{
		Commands: make(hexutil.Bytes, 0, len(commands)),
		Inputs:   make([]hexutil.Bytes, 0, len(commands)),
		Deadline: new(big.Int).Set(deadline),
	}
	for i, cmd := range commands {
		if len(cmd.Input) == 0 {
			return model.CommandSequence{}, fmt.Errorf("command %d (%s) has no input", i, cmd.Type)
		}
		opcode := byte(cmd.Type)
		if cmd.AllowRevert {
			opcode |= FlagAllowRevert
		}
		seq.Commands = append(seq.Commands, opcode)
		seq.Inputs = append(seq.Inputs, cmd.Input)
	}
	return seq, nil
}

// ValidateSequence checks alignment and that the deadline is still in the future.
func ValidateSequence(seq model.CommandSequence, now time.Time) error {
	if len(seq.Commands) == 0 {
		return fmt.Errorf("command sequence is empty")
	}
	if len(seq.Commands) != len(seq.Inputs) {
		return fmt.Errorf("%d commands for %d inputs", len(seq.Commands), len(seq.Inputs))
	}
	if seq.Deadline == nil || seq.Deadline.Cmp(big.NewInt(now.Unix())) <= 0 {
		return fmt.Errorf("deadline %v is not after %d", seq.Deadline, now.Unix())
	}
	return nil
}

// ExecuteCalldata packs execute(commands, inputs, deadline).
func ExecuteCalldata(seq model.CommandSequence, now time.Time) ([]byte, error) {
	if err := ValidateSequence(seq, now); err != nil {
		return nil, err
	}
	parsed, err := UniversalRouterABI()
	if err != nil {
		return nil, fmt.Errorf("parse universal router abi: %w", err)
	}
	inputs := make([][]byte, len(seq.Inputs))
	for i, input := range seq.Inputs {
		inputs[i] = input
	}
	data, err := parsed.Pack("execute", []byte(seq.Commands), inputs, seq.Deadline)
	if err != nil {
		return nil, fmt.Errorf("pack execute: %w", err)
	}
	return data, nil
}

// NewExecuteTransaction builds the router call for commands, expiring ttl after now.
func NewExecuteTransaction(router common.Address, commands []Command, value *big.Int, now time.Time, ttl time.Duration) (model.TransactionRequest, model.CommandSequence, error) {
	seq, err := BuildCommandSequence(commands, Deadline(now, ttl))
	if err != nil {
		return model.TransactionRequest{}, model.CommandSequence{}, err
	}
	data, err := ExecuteCalldata(seq, now)
	if err != nil {
		return model.TransactionRequest{}, model.CommandSequence{}, err
	}
	to := router
	tx := model.TransactionRequest{To: &to, Data: data}
	if value != nil && value.Sign() > 0 {
		tx.Value = new(big.Int).Set(value)
	}
	return tx, seq, nil
}
