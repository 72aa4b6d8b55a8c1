package strategy

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/WouterSls/evm-trading-engine/internal/encoder"
	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// V3 trades concentrated-liquidity pools through the universal router.
type V3 struct {
	*base
}

func NewV3(b *base) *V3 {
	return &V3{base: b}
}

func (s *V3) Spender() common.Address { return s.chain.UniversalRouter }

func (s *V3) BuildBuyTransaction(ctx context.Context, owner common.Address, req model.BuyRequest, quote model.Quote) (model.TransactionRequest, error) {
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
	path, err := encodedPath(quote.Route)
	if err != nil {
		return model.TransactionRequest{}, err
	}

	minOut := s.minOut(quote.AmountOut)
	var (
		commands []encoder.Command
		value    *big.Int
	)
	if leg.nativeIn {
		wrap, err := encoder.EncodeWrapETH(encoder.AddressThis, leg.amountIn)
		if err != nil {
			return model.TransactionRequest{}, err
		}
		swap, err := encoder.EncodeV3SwapExactIn(encoder.MsgSender, leg.amountIn, minOut, path, false)
		if err != nil {
			return model.TransactionRequest{}, err
		}
		commands, value = []encoder.Command{wrap, swap}, leg.amountIn
	} else {
		swap, err := encoder.EncodeV3SwapExactIn(encoder.MsgSender, leg.amountIn, minOut, path, true)
		if err != nil {
			return model.TransactionRequest{}, err
		}
		commands = []encoder.Command{swap}
	}
	tx, _, err := encoder.NewExecuteTransaction(s.chain.UniversalRouter, commands, value, s.now(), s.cfg.Deadline)
	return tx, err
}

func (s *V3) BuildSellTransaction(ctx context.Context, owner common.Address, req model.SellRequest, quote model.Quote) (model.TransactionRequest, error) {
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
	path, err := encodedPath(quote.Route)
	if err != nil {
		return model.TransactionRequest{}, err
	}

	minOut := s.minOut(quote.AmountOut)
	var commands []encoder.Command
	if leg.nativeOut {
		swap, err := encoder.EncodeV3SwapExactIn(encoder.AddressThis, leg.amountIn, minOut, path, true)
		if err != nil {
			return model.TransactionRequest{}, err
		}
		unwrap, err := encoder.EncodeUnwrapWETH(encoder.MsgSender, minOut)
		if err != nil {
			return model.TransactionRequest{}, err
		}
		commands = []encoder.Command{swap, unwrap}
	} else {
		swap, err := encoder.EncodeV3SwapExactIn(encoder.MsgSender, leg.amountIn, minOut, path, true)
		if err != nil {
			return model.TransactionRequest{}, err
		}
		commands = []encoder.Command{swap}
	}
	tx, _, err := encoder.NewExecuteTransaction(s.chain.UniversalRouter, commands, nil, s.now(), s.cfg.Deadline)
	return tx, err
}

func encodedPath(route model.Route) ([]byte, error) {
	if len(route.EncodedPath) > 0 {
		return route.EncodedPath, nil
	}
	return encoder.EncodePath(route.Path, route.Fees)
}
