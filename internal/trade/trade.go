package trade

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// Trade is the record of one buy or sell moving through the lifecycle.
type Trade struct {
	ID          string                     `json:"id"`
	Side        model.Side                 `json:"side"`
	Strategy    string                     `json:"strategy"`
	State       model.TradeState           `json:"state"`
	History     []model.TradeTransition    `json:"history"`
	Quote       model.Quote                `json:"quote"`
	Approvals   []model.TransactionRequest `json:"approvals,omitempty"`
	Transaction model.TransactionRequest   `json:"transaction"`
	TxHash      common.Hash                `json:"tx_hash,omitempty"`
}

func (t *Trade) enter(state model.TradeState, at time.Time, err error) model.TradeTransition {
	t.State = state
	transition := model.TradeTransition{
		TradeID:  t.ID,
		Side:     t.Side,
		Strategy: t.Strategy,
		State:    state,
		At:       at.UTC(),
	}
	if t.TxHash != (common.Hash{}) {
		transition.TxHash = t.TxHash.Hex()
	}
	if err != nil {
		transition.Error = err.Error()
	}
	t.History = append(t.History, transition)
	return transition
}

// Error reports the lifecycle state a trade failed in.
// It unwraps to the underlying taxonomy error.
type Error struct {
	TradeID string
	State   model.TradeState
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("trade %s failed during %s: %v", e.TradeID, e.State, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
