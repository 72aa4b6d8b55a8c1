package strategy

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/registry"
	"github.com/WouterSls/evm-trading-engine/internal/route"
)

var (
	owner  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	weth   = common.HexToAddress("0x4200000000000000000000000000000000000006")
	usdc   = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")

	fixedNow = time.Unix(1700000000, 0)
)

func testChain() registry.Chain {
	return registry.Chain{
		ID:              8453,
		Name:            "test",
		NativeDecimals:  18,
		WETH:            weth,
		USDC:            usdc,
		USDCDecimals:    6,
		UniversalRouter: common.HexToAddress("0x0000000000000000000000000000000000000e01"),
		Permit2:         common.HexToAddress("0x0000000000000000000000000000000000000e02"),
		V2Router:        common.HexToAddress("0x0000000000000000000000000000000000000e03"),
	}
}

// fakeQuoter answers direct routes with fn and rejects every multi-hop route.
type fakeQuoter struct {
	name string
	fn   func(route model.Route, amountIn *big.Int) model.Quote

	mu   sync.Mutex
	seen []*big.Int
}

func (f *fakeQuoter) Name() string { return f.name }

func (f *fakeQuoter) Quote(ctx context.Context, r model.Route, amountIn *big.Int) (model.Quote, error) {
	f.mu.Lock()
	f.seen = append(f.seen, amountIn)
	f.mu.Unlock()
	if r.Hops() != 1 {
		return model.Quote{}, &model.VenueError{Venue: f.name, Err: model.ErrPoolNotFound}
	}
	quote := f.fn(r, amountIn)
	quote.Venue = f.name
	quote.AmountIn = amountIn
	quote.Route = r
	return quote, nil
}

// rate quotes amountIn × num / den on every direct route.
func rate(num, den int64) func(model.Route, *big.Int) model.Quote {
	return func(_ model.Route, amountIn *big.Int) model.Quote {
		out := new(big.Int).Mul(amountIn, big.NewInt(num))
		return model.Quote{AmountOut: out.Div(out, big.NewInt(den))}
	}
}

func fixedOut(out *big.Int) func(model.Route, *big.Int) model.Quote {
	return func(model.Route, *big.Int) model.Quote {
		return model.Quote{AmountOut: new(big.Int).Set(out)}
	}
}

type fixedPrice struct{ price decimal.Decimal }

func (p fixedPrice) EthUSDPrice(context.Context) (decimal.Decimal, error) { return p.price, nil }

// driftingPrice moves one cent on every lookup, like a live feed between blocks.
type driftingPrice struct{ price decimal.Decimal }

func (p *driftingPrice) EthUSDPrice(context.Context) (decimal.Decimal, error) {
	p.price = p.price.Add(decimal.RequireFromString("0.01"))
	return p.price, nil
}

type noCaller struct{}

func (noCaller) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("unexpected call")
}

func testDeps(t *testing.T, caller dex.Caller) Deps {
	t.Helper()
	tokens, err := dex.NewTokenRegistry(caller, 0, nil)
	if err != nil {
		t.Fatalf("token registry: %v", err)
	}
	for _, token := range []common.Address{tokenA, tokenB, weth} {
		tokens.Set(model.TokenMeta{Address: token, Decimals: 18})
	}
	tokens.Set(model.TokenMeta{Address: usdc, Decimals: 6, Symbol: "USDC"})

	optCfg := route.DefaultConfig()
	optCfg.RetryBackoff = time.Millisecond
	return Deps{
		Caller:    caller,
		Chain:     testChain(),
		Tokens:    tokens,
		Optimizer: route.NewOptimizer(optCfg, nil),
		Config:    DefaultConfig(),
		Now:       func() time.Time { return fixedNow },
	}
}

func newTestStrategy(t *testing.T, kind Kind, quoter *fakeQuoter, price string) Strategy {
	t.Helper()
	return newPricedStrategy(t, kind, quoter, fixedPrice{price: decimal.RequireFromString(price)})
}

func newPricedStrategy(t *testing.T, kind Kind, quoter *fakeQuoter, prices PriceSource) Strategy {
	t.Helper()
	deps := testDeps(t, noCaller{})
	b := newBase(kind, quoter, prices, deps)
	switch kind {
	case KindV2:
		return NewV2(b)
	case KindV3:
		return NewV3(b)
	default:
		return NewV4(b)
	}
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}
