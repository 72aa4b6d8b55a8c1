package model

import "time"

// TradeState is a step of the trade lifecycle.
type TradeState string

const (
	StateQuoting       TradeState = "quoting"
	StateApprovalCheck TradeState = "approval_check"
	StateBuilding      TradeState = "building"
	StateSubmitted     TradeState = "submitted"
	StateConfirming    TradeState = "confirming"
	StateConfirmed     TradeState = "confirmed"
	StateFailed        TradeState = "failed"
)

// Terminal reports whether no transition leaves s.
func (s TradeState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// TradeTransition records a trade entering State.
type TradeTransition struct {
	TradeID  string     `json:"trade_id"`
	Side     Side       `json:"side"`
	Strategy string     `json:"strategy"`
	State    TradeState `json:"state"`
	TxHash   string     `json:"tx_hash,omitempty"`
	Error    string     `json:"error,omitempty"`
	At       time.Time  `json:"at"`
}
