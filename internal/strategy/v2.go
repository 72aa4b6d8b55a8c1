package strategy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// V2 trades constant-product pools through the V2 router's swap functions.
type V2 struct {
	*base
}

func NewV2(b *base) *V2 {
	return &V2{base: b}
}

func (s *V2) Spender() common.Address { return s.chain.V2Router }

func (s *V2) BuildBuyTransaction(ctx context.Context, owner common.Address, req model.BuyRequest, quote model.Quote) (model.TransactionRequest, error) {
	leg, ok, err := s.resolveBuy(ctx, req, quote.AmountIn)
	if err != nil {
		return model.TransactionRequest{}, err
	}
	if !ok {
		return model.TransactionRequest{}, nil
	}
	if err := s.checkQuote(quote, leg.tokenIn, leg.tokenOut, leg.amountIn); err != nil {
		return model.TransactionRequest{}, err
	}

	minOut := s.minOut(quote.AmountOut)
	router := s.chain.V2Router
	if leg.nativeIn {
		data, err := dex.PackSwapExactETHForTokens(minOut, quote.Route.Path, owner, s.deadline())
		if err != nil {
			return model.TransactionRequest{}, err
		}
		return model.TransactionRequest{To: &router, Data: data, Value: new(big.Int).Set(leg.amountIn)}, nil
	}
	data, err := dex.PackSwapExactTokensForTokens(leg.amountIn, minOut, quote.Route.Path, owner, s.deadline())
	if err != nil {
		return model.TransactionRequest{}, err
	}
	return model.TransactionRequest{To: &router, Data: data}, nil
}

func (s *V2) BuildSellTransaction(ctx context.Context, owner common.Address, req model.SellRequest, quote model.Quote) (model.TransactionRequest, error) {
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

	minOut := s.minOut(quote.AmountOut)
	router := s.chain.V2Router
	var data []byte
	if leg.nativeOut {
		data, err = dex.PackSwapExactTokensForETH(leg.amountIn, minOut, quote.Route.Path, owner, s.deadline())
	} else {
		data, err = dex.PackSwapExactTokensForTokens(leg.amountIn, minOut, quote.Route.Path, owner, s.deadline())
	}
	if err != nil {
		return model.TransactionRequest{}, err
	}
	return model.TransactionRequest{To: &router, Data: data}, nil
}
