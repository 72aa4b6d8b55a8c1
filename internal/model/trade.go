package model

import "github.com/ethereum/go-ethereum/common"

type InputType string

const (
	InputETH   InputType = "ETH"
	InputUSD   InputType = "USD"
	InputToken InputType = "TOKEN"
)

type OutputType string

const (
	OutputETH   OutputType = "ETH"
	OutputUSDC  OutputType = "USDC"
	OutputWETH  OutputType = "WETH"
	OutputToken OutputType = "TOKEN"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// BuyRequest spends ETH, a USD-denominated amount of ETH, or a token to buy OutputToken.
type BuyRequest struct {
	ChainID     uint64         `json:"chain_id"`
	InputType   InputType      `json:"input_type"`
	InputToken  common.Address `json:"input_token"`
	InputAmount string         `json:"input_amount"`
	OutputToken common.Address `json:"output_token"`
}

// SellRequest sells InputToken. TradingPrice is the USD reference price per input token.
type SellRequest struct {
	ChainID      uint64         `json:"chain_id"`
	InputToken   common.Address `json:"input_token"`
	InputAmount  string         `json:"input_amount"`
	OutputType   OutputType     `json:"output_type"`
	OutputToken  common.Address `json:"output_token"`
	TradingPrice string         `json:"trading_price"`
}

// TradeConfirmation is assembled once the execution layer reports success.
type TradeConfirmation struct {
	TradeID                 string           `json:"trade_id"`
	Side                    Side             `json:"side"`
	Strategy                string           `json:"strategy"`
	ChainID                 uint64           `json:"chain_id"`
	Path                    []common.Address `json:"path"`
	TransactionHash         common.Hash      `json:"transaction_hash"`
	ConfirmedBlock          uint64           `json:"confirmed_block"`
	GasCost                 string           `json:"gas_cost"`
	GasCostFormatted        string           `json:"gas_cost_formatted"`
	EthPriceUSD             string           `json:"eth_price_usd,omitempty"`
	TokenSpent              common.Address   `json:"token_spent"`
	AmountSpentRaw          string           `json:"amount_spent_raw"`
	AmountSpentFormatted    string           `json:"amount_spent_formatted"`
	TokenReceived           common.Address   `json:"token_received"`
	AmountReceivedRaw       string           `json:"amount_received_raw"`
	AmountReceivedFormatted string           `json:"amount_received_formatted"`
	ConfirmedAt             string           `json:"confirmed_at"`
}
