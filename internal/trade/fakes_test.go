package trade

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/strategy"
)

var (
	owner   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenA  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	weth    = common.HexToAddress("0x4200000000000000000000000000000000000006")
	router  = common.HexToAddress("0x0000000000000000000000000000000000000e01")
	permit2 = common.HexToAddress("0x0000000000000000000000000000000000000e02")

	fixedNow = time.Unix(1700000000, 0)
)

type fakeStrategy struct {
	quote    model.Quote
	quoteErr error
	// approvals are handed out one per EnsureApproval call, then nil.
	approvals   []*model.TransactionRequest
	approveErr  error
	buildTx     model.TransactionRequest
	buildErr    error
	quoteCalls  int
	ensureCalls int
	buildCalls  int
}

func (f *fakeStrategy) Name() string { return "uniswap-v3" }
func (f *fakeStrategy) Kind() strategy.Kind { return strategy.KindV3 }
func (f *fakeStrategy) Spender() common.Address { return router }
func (f *fakeStrategy) EthUSDPrice(context.Context) (decimal.Decimal, error) {
	return decimal.RequireFromString("3000.5"), nil
}

func (f *fakeStrategy) QuoteBuy(context.Context, model.BuyRequest) (model.Quote, error) {
	f.quoteCalls++
	return f.quote, f.quoteErr
}

func (f *fakeStrategy) QuoteSell(context.Context, model.SellRequest) (model.Quote, error) {
	f.quoteCalls++
	return f.quote, f.quoteErr
}

func (f *fakeStrategy) EnsureApproval(_ context.Context, _, _ common.Address, _ *big.Int, _ common.Address) (*model.TransactionRequest, error) {
	f.ensureCalls++
	if f.approveErr != nil {
		return nil, f.approveErr
	}
	if len(f.approvals) == 0 {
		return nil, nil
	}
	next := f.approvals[0]
	f.approvals = f.approvals[1:]
	return next, nil
}

func (f *fakeStrategy) BuildBuyTransaction(context.Context, common.Address, model.BuyRequest, model.Quote) (model.TransactionRequest, error) {
	f.buildCalls++
	return f.buildTx, f.buildErr
}

func (f *fakeStrategy) BuildSellTransaction(context.Context, common.Address, model.SellRequest, model.Quote) (model.TransactionRequest, error) {
	f.buildCalls++
	return f.buildTx, f.buildErr
}

var _ strategy.Strategy = (*fakeStrategy)(nil)

type fakeExecutor struct {
	mu        sync.Mutex
	submitted []model.TransactionRequest
	targets   map[common.Hash]common.Address
	// failSubmit and reverted are keyed by transaction target.
	failSubmit map[common.Address]error
	reverted   map[common.Address]bool
	logs       []*types.Log
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		targets:    make(map[common.Hash]common.Address),
		failSubmit: make(map[common.Address]error),
		reverted:   make(map[common.Address]bool),
	}
}

func (f *fakeExecutor) From() common.Address { return owner }

func (f *fakeExecutor) Submit(_ context.Context, req model.TransactionRequest) (common.Hash, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	if err := f.failSubmit[*req.To]; err != nil {
		return common.Hash{}, err
	}
	hash := common.BigToHash(big.NewInt(int64(len(f.submitted))))
	f.targets[hash] = *req.To
	return hash, nil
}

func (f *fakeExecutor) WaitMined(_ context.Context, hash common.Hash) (model.ExecutionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.targets[hash]
	if !ok {
		return model.ExecutionResult{}, errors.New("unknown transaction")
	}
	return model.ExecutionResult{
		TxHash:            hash,
		BlockNumber:       100,
		BlockTime:         uint64(fixedNow.Unix()),
		GasUsed:           150_000,
		EffectiveGasPrice: big.NewInt(2_000_000_000),
		Success:           !f.reverted[target],
		Logs:              f.logs,
	}, nil
}

func (f *fakeExecutor) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeNetwork struct{ chainID uint64 }

func (n fakeNetwork) ValidateNetwork(_ context.Context, chainID uint64) error {
	if chainID != n.chainID {
		return model.ErrNetworkMismatch
	}
	return nil
}

type fakeTokens map[common.Address]model.TokenMeta

func (f fakeTokens) Resolve(_ context.Context, token common.Address) (model.TokenMeta, error) {
	meta, ok := f[token]
	if !ok {
		return model.TokenMeta{}, errors.New("unknown token")
	}
	return meta, nil
}

type memoryStore struct {
	confirmations []model.TradeConfirmation
	transitions   []model.TradeTransition
}

func (m *memoryStore) PutConfirmation(_ context.Context, c model.TradeConfirmation) error {
	m.confirmations = append(m.confirmations, c)
	return nil
}

func (m *memoryStore) RecordTransition(_ context.Context, t model.TradeTransition) error {
	m.transitions = append(m.transitions, t)
	return nil
}

func (m *memoryStore) states() []model.TradeState {
	out := make([]model.TradeState, len(m.transitions))
	for i, t := range m.transitions {
		out[i] = t.State
	}
	return out
}

func transferLog(token, from, to common.Address, amount *big.Int) *types.Log {
	return &types.Log{
		Address: token,
		Topics: []common.Hash{
			crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")),
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

func routerTx(value *big.Int) model.TransactionRequest {
	to := router
	return model.TransactionRequest{To: &to, Data: []byte{0x35, 0x93, 0x56, 0x4c}, Value: value}
}

func approvalTx(target common.Address) *model.TransactionRequest {
	to := target
	return &model.TransactionRequest{To: &to, Data: []byte{0x09, 0x5e, 0xa7, 0xb3}}
}

func quoteFor(tokenIn, tokenOut common.Address, in, out int64, impact string) model.Quote {
	return model.Quote{
		Venue:       "uniswap-v3",
		AmountIn:    big.NewInt(in),
		AmountOut:   big.NewInt(out),
		PriceImpact: decimal.RequireFromString(impact),
		Route:       model.Route{Path: []common.Address{tokenIn, tokenOut}, Fees: []uint32{3000}},
	}
}

type harness struct {
	strategy *fakeStrategy
	executor *fakeExecutor
	store    *memoryStore
	coord    *Coordinator
}

func newHarness(strat *fakeStrategy) *harness {
	h := &harness{strategy: strat, executor: newFakeExecutor(), store: &memoryStore{}}
	coord, err := NewCoordinator(Config{
		MaxPriceImpact: decimal.NewFromInt(5),
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
	}, Deps{
		Strategy: strat,
		Executor: h.executor,
		Network:  fakeNetwork{chainID: 8453},
		Tokens: fakeTokens{
			tokenA: {Address: tokenA, Decimals: 6, Symbol: "AAA"},
			tokenB: {Address: tokenB, Decimals: 18, Symbol: "BBB"},
		},
		Storage: h.store,
		Now:     func() time.Time { return fixedNow },
	})
	if err != nil {
		panic(err)
	}
	h.coord = coord
	return h
}
