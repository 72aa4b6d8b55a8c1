package encoder

// CommandType is a universal router opcode.
type CommandType byte

const (
	V3SwapExactIn       CommandType = 0x00
	V3SwapExactOut      CommandType = 0x01
	Permit2TransferFrom CommandType = 0x02
	Sweep               CommandType = 0x04
	Transfer            CommandType = 0x05
	V2SwapExactIn       CommandType = 0x08
	V2SwapExactOut      CommandType = 0x09
	Permit2Permit       CommandType = 0x0a
	WrapETH             CommandType = 0x0b
	UnwrapWETH          CommandType = 0x0c
	V4Swap              CommandType = 0x10
)

// FlagAllowRevert marks a command whose failure must not revert the whole execution.
const FlagAllowRevert byte = 0x80

// ActionType is a v4 router action inside a V4Swap command.
type ActionType byte

const (
	SwapExactInSingle  ActionType = 0x06
	SwapExactIn        ActionType = 0x07
	SwapExactOutSingle ActionType = 0x08
	SwapExactOut       ActionType = 0x09
	Settle             ActionType = 0x0b
	SettleAll          ActionType = 0x0c
	Take               ActionType = 0x0e
	TakeAll            ActionType = 0x0f
)

var commandNames = map[CommandType]string{
	V3SwapExactIn:       "V3_SWAP_EXACT_IN",
	V3SwapExactOut:      "V3_SWAP_EXACT_OUT",
	Permit2TransferFrom: "PERMIT2_TRANSFER_FROM",
	Sweep:               "SWEEP",
	Transfer:            "TRANSFER",
	V2SwapExactIn:       "V2_SWAP_EXACT_IN",
	V2SwapExactOut:      "V2_SWAP_EXACT_OUT",
	Permit2Permit:       "PERMIT2_PERMIT",
	WrapETH:             "WRAP_ETH",
	UnwrapWETH:          "UNWRAP_WETH",
	V4Swap:              "V4_SWAP",
}

func (c CommandType) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
