package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// CommandSequence is the ordered command/input pair consumed by the universal router.
type CommandSequence struct {
	Commands hexutil.Bytes   `json:"commands"`
	Inputs   []hexutil.Bytes `json:"inputs"`
	Deadline *big.Int        `json:"deadline"`
}

// TransactionRequest is an unsigned call handed to the execution layer.
// The zero value is the empty transaction.
type TransactionRequest struct {
	To    *common.Address `json:"to,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *big.Int        `json:"value,omitempty"`
}

func (t TransactionRequest) IsEmpty() bool {
	return t.To == nil && len(t.Data) == 0 && t.Value == nil
}

// ExecutionResult is what the execution layer reports for a mined transaction.
type ExecutionResult struct {
	TxHash            common.Hash  `json:"tx_hash"`
	BlockNumber       uint64       `json:"block_number"`
	BlockTime         uint64       `json:"block_time"`
	GasUsed           uint64       `json:"gas_used"`
	EffectiveGasPrice *big.Int     `json:"effective_gas_price"`
	Success           bool         `json:"success"`
	Logs              []*types.Log `json:"logs,omitempty"`
}
