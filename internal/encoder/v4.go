package encoder

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// OpenDelta as a settle/take amount resolves to the full outstanding delta.
var OpenDelta = new(big.Int)

// V4Action is one encoded action of a V4Swap command.
type V4Action struct {
	Type   ActionType
	Params []byte
}

// SwapExactInSingleParams is a single-pool exact-input swap.
type SwapExactInSingleParams struct {
	PoolKey          model.PoolKey
	ZeroForOne       bool
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
	HookData         []byte
}

// PathKey is one hop of a v4 multi-hop swap.
type PathKey struct {
	IntermediateCurrency common.Address
	Fee                  uint32
	TickSpacing          int32
	Hooks                common.Address
	HookData             []byte
}

// SwapExactInParams is a multi-hop exact-input swap.
type SwapExactInParams struct {
	CurrencyIn       common.Address
	Path             []PathKey
	AmountIn         *big.Int
	AmountOutMinimum *big.Int
}

func toPoolKeyArg(key model.PoolKey) poolKeyArg {
	return poolKeyArg{
		Currency0:   key.Currency0,
		Currency1:   key.Currency1,
		Fee:         new(big.Int).SetUint64(uint64(key.Fee)),
		TickSpacing: big.NewInt(int64(key.TickSpacing)),
		Hooks:       key.Hooks,
	}
}

// EncodeSwapExactInSingle encodes a SWAP_EXACT_IN_SINGLE action.
func EncodeSwapExactInSingle(p SwapExactInSingleParams) (V4Action, error) {
	if p.PoolKey.Currency0 == p.PoolKey.Currency1 {
		return V4Action{}, fmt.Errorf("pool key currencies must differ")
	}
	if err := checkUint("amountIn", p.AmountIn, 128); err != nil {
		return V4Action{}, err
	}
	if err := checkUint("amountOutMinimum", orZero(p.AmountOutMinimum), 128); err != nil {
		return V4Action{}, err
	}
	hookData := p.HookData
	if hookData == nil {
		hookData = []byte{}
	}
	encoded, err := args(exactInputSingleT).Pack(exactInputSingleArg{
		PoolKey:          toPoolKeyArg(p.PoolKey),
		ZeroForOne:       p.ZeroForOne,
		AmountIn:         p.AmountIn,
		AmountOutMinimum: orZero(p.AmountOutMinimum),
		HookData:         hookData,
	})
	if err != nil {
		return V4Action{}, fmt.Errorf("encode swap exact in single: %w", err)
	}
	return V4Action{Type: SwapExactInSingle, Params: encoded}, nil
}

// EncodeSwapExactIn encodes a SWAP_EXACT_IN multi-hop action.
func EncodeSwapExactIn(p SwapExactInParams) (V4Action, error) {
	if len(p.Path) == 0 {
		return V4Action{}, fmt.Errorf("swap path is empty")
	}
	if err := checkUint("amountIn", p.AmountIn, 128); err != nil {
		return V4Action{}, err
	}
	if err := checkUint("amountOutMinimum", orZero(p.AmountOutMinimum), 128); err != nil {
		return V4Action{}, err
	}
	path := make([]pathKeyArg, 0, len(p.Path))
	for _, hop := range p.Path {
		hookData := hop.HookData
		if hookData == nil {
			hookData = []byte{}
		}
		path = append(path, pathKeyArg{
			IntermediateCurrency: hop.IntermediateCurrency,
			Fee:                  new(big.Int).SetUint64(uint64(hop.Fee)),
			TickSpacing:          big.NewInt(int64(hop.TickSpacing)),
			Hooks:                hop.Hooks,
			HookData:             hookData,
		})
	}
	encoded, err := args(exactInputT).Pack(exactInputArg{
		CurrencyIn:       p.CurrencyIn,
		Path:             path,
		AmountIn:         p.AmountIn,
		AmountOutMinimum: orZero(p.AmountOutMinimum),
	})
	if err != nil {
		return V4Action{}, fmt.Errorf("encode swap exact in: %w", err)
	}
	return V4Action{Type: SwapExactIn, Params: encoded}, nil
}

// EncodeSettleAll pays the full debt of currency, capped at maxAmount.
func EncodeSettleAll(currency common.Address, maxAmount *big.Int) (V4Action, error) {
	if err := checkUint("maxAmount", maxAmount, 256); err != nil {
		return V4Action{}, err
	}
	encoded, err := args(addressT, uint256T).Pack(currency, maxAmount)
	if err != nil {
		return V4Action{}, fmt.Errorf("encode settle all: %w", err)
	}
	return V4Action{Type: SettleAll, Params: encoded}, nil
}

// EncodeTakeAll withdraws the full credit of currency, requiring at least minAmount.
func EncodeTakeAll(currency common.Address, minAmount *big.Int) (V4Action, error) {
	if err := checkUint("minAmount", minAmount, 256); err != nil {
		return V4Action{}, err
	}
	encoded, err := args(addressT, uint256T).Pack(currency, minAmount)
	if err != nil {
		return V4Action{}, fmt.Errorf("encode take all: %w", err)
	}
	return V4Action{Type: TakeAll, Params: encoded}, nil
}

// EncodeSettle pays amount of currency, OpenDelta meaning the whole debt.
func EncodeSettle(currency common.Address, amount *big.Int, payerIsUser bool) (V4Action, error) {
	if err := checkUint("amount", amount, 256); err != nil {
		return V4Action{}, err
	}
	encoded, err := args(addressT, uint256T, boolT).Pack(currency, amount, payerIsUser)
	if err != nil {
		return V4Action{}, fmt.Errorf("encode settle: %w", err)
	}
	return V4Action{Type: Settle, Params: encoded}, nil
}

// EncodeTake sends amount of currency to recipient, OpenDelta meaning the whole credit.
func EncodeTake(currency, recipient common.Address, amount *big.Int) (V4Action, error) {
	if err := checkUint("amount", amount, 256); err != nil {
		return V4Action{}, err
	}
	encoded, err := args(addressT, addressT, uint256T).Pack(currency, recipient, amount)
	if err != nil {
		return V4Action{}, fmt.Errorf("encode take: %w", err)
	}
	return V4Action{Type: Take, Params: encoded}, nil
}

// EncodeV4Swap nests actions into the input of a V4Swap command.
func EncodeV4Swap(actions []V4Action) (Command, error) {
	if len(actions) == 0 {
		return Command{}, fmt.Errorf("v4 swap needs at least one action")
	}
	kinds := make([]byte, 0, len(actions))
	params := make([][]byte, 0, len(actions))
	for _, action := range actions {
		kinds = append(kinds, byte(action.Type))
		params = append(params, action.Params)
	}
	encoded, err := args(bytesT, bytesArrayT).Pack(kinds, params)
	if err != nil {
		return Command{}, fmt.Errorf("encode v4 swap: %w", err)
	}
	return Command{Type: V4Swap, Input: encoded}, nil
}

// SingleHopV4Swap builds swap, settle-all and take-all for one pool.
func SingleHopV4Swap(key model.PoolKey, tokenIn common.Address, amountIn, minOut *big.Int) (Command, error) {
	zeroForOne := key.ZeroForOne(tokenIn)
	if !zeroForOne && key.Currency1 != tokenIn {
		return Command{}, fmt.Errorf("token %s is not in pool", tokenIn.Hex())
	}
	tokenOut := key.Currency1
	if !zeroForOne {
		tokenOut = key.Currency0
	}

	swap, err := EncodeSwapExactInSingle(SwapExactInSingleParams{
		PoolKey:          key,
		ZeroForOne:       zeroForOne,
		AmountIn:         amountIn,
		AmountOutMinimum: minOut,
	})
	if err != nil {
		return Command{}, err
	}
	settle, err := EncodeSettleAll(tokenIn, amountIn)
	if err != nil {
		return Command{}, err
	}
	take, err := EncodeTakeAll(tokenOut, orZero(minOut))
	if err != nil {
		return Command{}, err
	}
	return EncodeV4Swap([]V4Action{swap, settle, take})
}
