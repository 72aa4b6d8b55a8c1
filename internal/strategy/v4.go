package strategy

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/WouterSls/evm-trading-engine/internal/encoder"
	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// V4 trades single pools of the V4 pool manager through the universal router.
// Only direct routes are encoded.
type V4 struct {
	*base
}

func NewV4(b *base) *V4 {
	return &V4{base: b}
}

func (s *V4) Spender() common.Address { return s.chain.UniversalRouter }

func (s *V4) BuildBuyTransaction(ctx context.Context, owner common.Address, req model.BuyRequest, quote model.Quote) (model.TransactionRequest, error) {
	leg, ok, err := s.resolveBuy(ctx, req, quote.AmountIn)
	if err != nil {
		return model.TransactionRequest{}, err
	}
	if !ok {
		return model.TransactionRequest{}, nil
	}
	if err := s.checkBuyShape(req); err != nil {
		return model.TransactionRequest{}, err
	}
	if err := s.checkQuote(quote, leg.tokenIn, leg.tokenOut, leg.amountIn); err != nil {
		return model.TransactionRequest{}, err
	}
	var value *big.Int
	if leg.nativeIn {
		value = leg.amountIn
	}
	return s.singleHop(quote, leg.tokenIn, leg.amountIn, value)
}

func (s *V4) BuildSellTransaction(ctx context.Context, owner common.Address, req model.SellRequest, quote model.Quote) (model.TransactionRequest, error) {
	leg, ok, err := s.resolveSell(ctx, req)
	if err != nil {
		return model.TransactionRequest{}, err
	}
	if !ok {
		return model.TransactionRequest{}, nil
	}
	if err := s.checkQuote(quote, leg.tokenIn, leg.tokenOut, leg.amountIn); err != nil {
		return model.TransactionRequest{}, err
	}
	if err := s.checkSellImpact(ctx, leg, quote); err != nil {
		return model.TransactionRequest{}, err
	}
	return s.singleHop(quote, leg.tokenIn, leg.amountIn, nil)
}

func (s *V4) singleHop(quote model.Quote, tokenIn common.Address, amountIn, value *big.Int) (model.TransactionRequest, error) {
	if quote.Route.Hops() != 1 || quote.Route.PoolKey == nil {
		return model.TransactionRequest{}, fmt.Errorf("%w: %s encodes single-pool swaps only, route has %d hops",
			model.ErrUnsupportedRouteShape, s.Name(), quote.Route.Hops())
	}
	swap, err := encoder.SingleHopV4Swap(*quote.Route.PoolKey, tokenIn, amountIn, s.minOut(quote.AmountOut))
	if err != nil {
		return model.TransactionRequest{}, err
	}
	tx, _, err := encoder.NewExecuteTransaction(s.chain.UniversalRouter, []encoder.Command{swap}, value, s.now(), s.cfg.Deadline)
	return tx, err
}
