package strategy

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/encoder"
	"github.com/WouterSls/evm-trading-engine/internal/model"
)

func TestBuildBuyInconsistentShapeReturnsEmptyTransaction(t *testing.T) {
	requests := []model.BuyRequest{
		{InputType: model.InputETH, InputToken: tokenA, InputAmount: "1", OutputToken: tokenB},
		{InputType: model.InputUSD, InputToken: tokenA, InputAmount: "100", OutputToken: tokenB},
		{InputType: model.InputToken, InputAmount: "1", OutputToken: tokenB},
		{InputType: model.InputETH, InputAmount: "1"},
		{InputType: "BTC", InputAmount: "1", OutputToken: tokenB},
	}
	for _, kind := range AllKinds() {
		s := newTestStrategy(t, kind, &fakeQuoter{name: "venue", fn: rate(1, 1)}, "2000")
		for i, req := range requests {
			tx, err := s.BuildBuyTransaction(context.Background(), owner, req, model.Quote{})
			if err != nil {
				t.Fatalf("%s request %d: unexpected error %v", kind, i, err)
			}
			if !tx.IsEmpty() {
				t.Fatalf("%s request %d: expected empty transaction, got %+v", kind, i, tx)
			}
			if _, err := s.QuoteBuy(context.Background(), req); !errors.Is(err, model.ErrInvalidRequest) {
				t.Fatalf("%s request %d: quote should reject the shape, got %v", kind, i, err)
			}
		}
	}
}

func TestBuildSellInconsistentShapeReturnsEmptyTransaction(t *testing.T) {
	requests := []model.SellRequest{
		{InputAmount: "1", OutputType: model.OutputUSDC},
		{InputToken: tokenA, InputAmount: "1", OutputType: model.OutputETH, OutputToken: tokenB},
		{InputToken: tokenA, InputAmount: "1", OutputType: model.OutputToken},
		{InputToken: tokenA, InputAmount: "1", OutputType: model.OutputUSDC, OutputToken: tokenB},
		{InputToken: tokenA, InputAmount: "1", OutputType: "DAI"},
	}
	s := newTestStrategy(t, KindV3, &fakeQuoter{name: "venue", fn: rate(1, 1)}, "2000")
	for i, req := range requests {
		tx, err := s.BuildSellTransaction(context.Background(), owner, req, model.Quote{})
		if err != nil || !tx.IsEmpty() {
			t.Fatalf("request %d: expected empty transaction, got %+v %v", i, tx, err)
		}
	}
}

func TestV2BuyWithETH(t *testing.T) {
	s := newTestStrategy(t, KindV2, &fakeQuoter{name: dex.VenueV2, fn: rate(2, 1)}, "2000")
	req := model.BuyRequest{ChainID: 8453, InputType: model.InputETH, InputAmount: "1", OutputToken: tokenB}

	quote, err := s.QuoteBuy(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !reflect.DeepEqual(quote.Route.Path, []common.Address{weth, tokenB}) {
		t.Fatalf("native input should route through WETH, got %v", quote.Route.Path)
	}

	tx, err := s.BuildBuyTransaction(context.Background(), owner, req, quote)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if *tx.To != testChain().V2Router || tx.Value.Cmp(ether(1)) != 0 {
		t.Fatalf("unexpected transaction target/value: %+v", tx)
	}
	routerABI, err := dex.V2RouterABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	method := routerABI.Methods["swapExactETHForTokens"]
	if !bytes.Equal(tx.Data[:4], method.ID) {
		t.Fatalf("selector mismatch: %x", tx.Data[:4])
	}
	args, err := method.Inputs.Unpack(tx.Data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	wantMin := new(big.Int).Div(new(big.Int).Mul(ether(2), big.NewInt(98)), big.NewInt(100))
	if args[0].(*big.Int).Cmp(wantMin) != 0 {
		t.Fatalf("min out %s != %s", args[0], wantMin)
	}
	if args[2].(common.Address) != owner {
		t.Fatalf("recipient mismatch: %v", args[2])
	}
	if args[3].(*big.Int).Int64() != fixedNow.Unix()+20*60 {
		t.Fatalf("deadline mismatch: %v", args[3])
	}
}

func TestBuyWithUSDConvertsAtEthPrice(t *testing.T) {
	quoter := &fakeQuoter{name: dex.VenueV3, fn: rate(1, 1)}
	s := newTestStrategy(t, KindV3, quoter, "2000")
	req := model.BuyRequest{InputType: model.InputUSD, InputAmount: "100", OutputToken: tokenB}

	quote, err := s.QuoteBuy(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	want := new(big.Int).Div(ether(1), big.NewInt(20))
	if quote.AmountIn.Cmp(want) != 0 {
		t.Fatalf("100 USD at 2000 should spend %s wei, got %s", want, quote.AmountIn)
	}
}

func TestBuyWithUSDBuildsAtQuotedAmountWhenPriceMoves(t *testing.T) {
	for _, kind := range AllKinds() {
		quoter := &fakeQuoter{name: "venue", fn: rate(1, 1)}
		s := newPricedStrategy(t, kind, quoter, &driftingPrice{price: decimal.NewFromInt(2000)})
		req := model.BuyRequest{ChainID: 8453, InputType: model.InputUSD, InputAmount: "100", OutputToken: tokenB}

		quote, err := s.QuoteBuy(context.Background(), req)
		if err != nil {
			t.Fatalf("%s quote: %v", kind, err)
		}
		tx, err := s.BuildBuyTransaction(context.Background(), owner, req, quote)
		if err != nil {
			t.Fatalf("%s build after price move: %v", kind, err)
		}
		if tx.IsEmpty() || tx.Value == nil || tx.Value.Cmp(quote.AmountIn) != 0 {
			t.Fatalf("%s: expected value %s, got %+v", kind, quote.AmountIn, tx)
		}
	}
}

func TestBuyWithUSDStillValidatesAmount(t *testing.T) {
	s := newTestStrategy(t, KindV3, &fakeQuoter{name: dex.VenueV3, fn: rate(1, 1)}, "2000")
	req := model.BuyRequest{InputType: model.InputUSD, InputAmount: "-5", OutputToken: tokenB}
	quote := model.Quote{AmountIn: ether(1), AmountOut: ether(1)}
	if _, err := s.BuildBuyTransaction(context.Background(), owner, req, quote); !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestSellPriceImpactAgainstTradingPrice(t *testing.T) {
	out := big.NewInt(93_000_000)
	s := newTestStrategy(t, KindV3, &fakeQuoter{name: dex.VenueV3, fn: func(model.Route, *big.Int) model.Quote {
		return model.Quote{AmountOut: new(big.Int).Set(out)}
	}}, "2000")
	req := model.SellRequest{InputToken: tokenA, InputAmount: "1", OutputType: model.OutputUSDC, TradingPrice: "100"}

	quote, err := s.QuoteSell(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := s.BuildSellTransaction(context.Background(), owner, req, quote); !errors.Is(err, model.ErrPriceImpactExceeded) {
		t.Fatalf("7%% impact should be rejected, got %v", err)
	}

	out = big.NewInt(97_000_000)
	quote, err = s.QuoteSell(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	tx, err := s.BuildSellTransaction(context.Background(), owner, req, quote)
	if err != nil || tx.IsEmpty() {
		t.Fatalf("3%% impact should build, got %+v %v", tx, err)
	}
}

func TestSellToETHUsesEthPriceForImpact(t *testing.T) {
	// 1 token at 100 USD sells for 0.0465 ETH = 93 USD at 2000.
	s := newTestStrategy(t, KindV3, &fakeQuoter{name: dex.VenueV3, fn: fixedOut(big.NewInt(46_500_000_000_000_000))}, "2000")
	req := model.SellRequest{InputToken: tokenA, InputAmount: "1", OutputType: model.OutputETH, TradingPrice: "100"}
	quote, err := s.QuoteSell(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := s.BuildSellTransaction(context.Background(), owner, req, quote); !errors.Is(err, model.ErrPriceImpactExceeded) {
		t.Fatalf("expected price impact rejection, got %v", err)
	}
}

func TestQuotedImpactCeiling(t *testing.T) {
	s := newTestStrategy(t, KindV3, &fakeQuoter{name: dex.VenueV3, fn: func(_ model.Route, amountIn *big.Int) model.Quote {
		return model.Quote{AmountOut: amountIn, PriceImpact: decimal.NewFromInt(7)}
	}}, "2000")
	req := model.BuyRequest{InputType: model.InputETH, InputAmount: "1", OutputToken: tokenB}
	quote, err := s.QuoteBuy(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if _, err := s.BuildBuyTransaction(context.Background(), owner, req, quote); !errors.Is(err, model.ErrPriceImpactExceeded) {
		t.Fatalf("expected price impact rejection, got %v", err)
	}
}

func executeCommands(t *testing.T, tx model.TransactionRequest) []byte {
	t.Helper()
	parsed, err := encoder.UniversalRouterABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	method := parsed.Methods["execute"]
	if !bytes.Equal(tx.Data[:4], method.ID) {
		t.Fatalf("not an execute call: %x", tx.Data[:4])
	}
	args, err := method.Inputs.Unpack(tx.Data[4:])
	if err != nil {
		t.Fatalf("unpack execute: %v", err)
	}
	commands := args[0].([]byte)
	if inputs := args[1].([][]byte); len(inputs) != len(commands) {
		t.Fatalf("%d commands for %d inputs", len(commands), len(inputs))
	}
	return commands
}

func TestV3CommandShapes(t *testing.T) {
	s := newTestStrategy(t, KindV3, &fakeQuoter{name: dex.VenueV3, fn: rate(3, 1)}, "2000")
	ctx := context.Background()

	buyETH := model.BuyRequest{InputType: model.InputETH, InputAmount: "0.5", OutputToken: tokenB}
	buyToken := model.BuyRequest{InputType: model.InputToken, InputToken: tokenA, InputAmount: "10", OutputToken: tokenB}
	sellETH := model.SellRequest{InputToken: tokenA, InputAmount: "10", OutputType: model.OutputETH}

	quote, err := s.QuoteBuy(ctx, buyETH)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	tx, err := s.BuildBuyTransaction(ctx, owner, buyETH, quote)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := executeCommands(t, tx); !bytes.Equal(got, []byte{0x0b, 0x00}) {
		t.Fatalf("eth buy commands %x", got)
	}
	if tx.Value == nil || tx.Value.Cmp(quote.AmountIn) != 0 || *tx.To != testChain().UniversalRouter {
		t.Fatalf("eth buy must send value to the router: %+v", tx)
	}

	quote, err = s.QuoteBuy(ctx, buyToken)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	tx, err = s.BuildBuyTransaction(ctx, owner, buyToken, quote)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := executeCommands(t, tx); !bytes.Equal(got, []byte{0x00}) || tx.Value != nil {
		t.Fatalf("token buy commands %x value %v", got, tx.Value)
	}

	quote, err = s.QuoteSell(ctx, sellETH)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	tx, err = s.BuildSellTransaction(ctx, owner, sellETH, quote)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := executeCommands(t, tx); !bytes.Equal(got, []byte{0x00, 0x0c}) {
		t.Fatalf("eth sell commands %x", got)
	}
}

func TestV4Shapes(t *testing.T) {
	s := newTestStrategy(t, KindV4, &fakeQuoter{name: dex.VenueV4, fn: rate(2, 1)}, "2000")
	ctx := context.Background()

	tokenBuy := model.BuyRequest{InputType: model.InputToken, InputToken: tokenA, InputAmount: "1", OutputToken: tokenB}
	if _, err := s.QuoteBuy(ctx, tokenBuy); !errors.Is(err, model.ErrUnsupportedRouteShape) {
		t.Fatalf("token buys should be unsupported, got %v", err)
	}

	ethBuy := model.BuyRequest{InputType: model.InputETH, InputAmount: "1", OutputToken: tokenB}
	quote, err := s.QuoteBuy(ctx, ethBuy)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if quote.Route.TokenIn() != (common.Address{}) {
		t.Fatalf("v4 routes the native asset directly, got %v", quote.Route.Path)
	}
	tx, err := s.BuildBuyTransaction(ctx, owner, ethBuy, quote)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got := executeCommands(t, tx); !bytes.Equal(got, []byte{0x10}) || tx.Value.Cmp(ether(1)) != 0 {
		t.Fatalf("v4 buy commands %x value %v", got, tx.Value)
	}

	multi := quote
	multi.Route = model.Route{Path: []common.Address{{}, weth, tokenB}, Fees: []uint32{500, 3000}}
	if _, err := s.BuildBuyTransaction(ctx, owner, ethBuy, multi); !errors.Is(err, model.ErrUnsupportedRouteShape) {
		t.Fatalf("multi-hop v4 route should be unsupported, got %v", err)
	}
}

func TestEmptyRouteIsNoRoute(t *testing.T) {
	s := newTestStrategy(t, KindV3, &fakeQuoter{name: dex.VenueV3, fn: fixedOut(big.NewInt(0))}, "2000")
	req := model.BuyRequest{InputType: model.InputETH, InputAmount: "1", OutputToken: tokenB}
	quote, err := s.QuoteBuy(context.Background(), req)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if !quote.Route.IsEmpty() {
		t.Fatalf("expected empty route, got %+v", quote.Route)
	}
	if _, err := s.BuildBuyTransaction(context.Background(), owner, req, quote); !errors.Is(err, model.ErrNoRouteFound) {
		t.Fatalf("expected no route, got %v", err)
	}
}

func TestNetworkMismatch(t *testing.T) {
	s := newTestStrategy(t, KindV2, &fakeQuoter{name: dex.VenueV2, fn: rate(1, 1)}, "2000")
	req := model.BuyRequest{ChainID: 1, InputType: model.InputETH, InputAmount: "1", OutputToken: tokenB}
	if _, err := s.QuoteBuy(context.Background(), req); !errors.Is(err, model.ErrNetworkMismatch) {
		t.Fatalf("expected network mismatch, got %v", err)
	}
}

func TestMinOut(t *testing.T) {
	b := newBase(KindV3, &fakeQuoter{name: "v"}, fixedPrice{}, Deps{Config: DefaultConfig()})
	if got := b.minOut(big.NewInt(1000)); got.Int64() != 980 {
		t.Fatalf("min out %s != 980", got)
	}
	if got := b.minOut(big.NewInt(999)); got.Int64() != 979 {
		t.Fatalf("min out must round down, got %s", got)
	}
}

func TestNewDispatchesByKind(t *testing.T) {
	deps := testDeps(t, noCaller{})
	for _, kind := range AllKinds() {
		s, err := New(kind, deps)
		if err != nil {
			t.Fatalf("new %s: %v", kind, err)
		}
		if s.Kind() != kind {
			t.Fatalf("kind mismatch: %s != %s", s.Kind(), kind)
		}
	}
	if _, err := New("v9", deps); err == nil {
		t.Fatalf("unknown kind should fail")
	}
	if kind, err := ParseKind(" V3 "); err != nil || kind != KindV3 {
		t.Fatalf("parse kind: %v %v", kind, err)
	}
}

func TestCandidateSourcePerKind(t *testing.T) {
	deps := testDeps(t, noCaller{})
	for _, tc := range []struct {
		kind   Kind
		native common.Address
		direct int
	}{
		{KindV2, weth, 1},
		{KindV3, weth, 4},
		{KindV4, common.Address{}, 4},
	} {
		s, err := New(tc.kind, deps)
		if err != nil {
			t.Fatalf("new %s: %v", tc.kind, err)
		}
		source := s.(CandidateSource)
		if got := source.VenueToken(common.Address{}); got != tc.native {
			t.Fatalf("%s: native maps to %s", tc.kind, got.Hex())
		}
		direct := 0
		for _, c := range source.Candidates(tokenA, tokenB) {
			if c.Route.Hops() == 1 {
				direct++
			} else if tc.kind == KindV4 {
				t.Fatalf("v4 must only produce direct routes")
			}
		}
		if direct != tc.direct {
			t.Fatalf("%s: expected %d direct candidates, got %d", tc.kind, tc.direct, direct)
		}
	}
}
