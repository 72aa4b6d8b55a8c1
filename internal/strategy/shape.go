package strategy

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// buyLeg is a buy request resolved into venue tokens and raw amounts.
type buyLeg struct {
	nativeIn bool
	tokenIn  common.Address
	amountIn *big.Int
	tokenOut common.Address
}

// sellLeg is a sell request resolved into venue tokens and raw amounts.
type sellLeg struct {
	tokenIn      common.Address
	amountIn     *big.Int
	amountInDec  decimal.Decimal
	outputType   model.OutputType
	nativeOut    bool
	tokenOut     common.Address
	tradingPrice decimal.Decimal
}

// resolveBuy classifies req. ok is false when the input type contradicts the input token.
// A positive quotedIn is the native amount a USD buy was quoted with; the ETH price is
// read only when it is nil.
func (b *base) resolveBuy(ctx context.Context, req model.BuyRequest, quotedIn *big.Int) (buyLeg, bool, error) {
	if err := b.checkChain(req.ChainID); err != nil {
		return buyLeg{}, false, err
	}
	zero := common.Address{}
	if req.OutputToken == zero || req.OutputToken == req.InputToken {
		return buyLeg{}, false, nil
	}

	leg := buyLeg{tokenOut: b.VenueToken(req.OutputToken)}
	switch req.InputType {
	case model.InputETH:
		if req.InputToken != zero {
			return buyLeg{}, false, nil
		}
		amount, err := model.ParseUnits(req.InputAmount, b.chain.NativeDecimals)
		if err != nil {
			return buyLeg{}, false, err
		}
		leg.nativeIn, leg.amountIn = true, amount
	case model.InputUSD:
		if req.InputToken != zero {
			return buyLeg{}, false, nil
		}
		amount, err := b.usdToNative(ctx, req.InputAmount, quotedIn)
		if err != nil {
			return buyLeg{}, false, err
		}
		leg.nativeIn, leg.amountIn = true, amount
	case model.InputToken:
		if req.InputToken == zero {
			return buyLeg{}, false, nil
		}
		meta, err := b.tokens.Resolve(ctx, req.InputToken)
		if err != nil {
			return buyLeg{}, false, fmt.Errorf("resolve input token: %w", err)
		}
		amount, err := model.ParseUnits(req.InputAmount, meta.Decimals)
		if err != nil {
			return buyLeg{}, false, err
		}
		leg.amountIn = amount
	default:
		return buyLeg{}, false, nil
	}
	leg.tokenIn = b.VenueToken(req.InputToken)
	if leg.tokenIn == leg.tokenOut {
		return buyLeg{}, false, nil
	}
	return leg, true, nil
}

// usdToNative converts a USD amount into raw native units at the current ETH price,
// unless quotedIn already fixed the conversion.
func (b *base) usdToNative(ctx context.Context, usdAmount string, quotedIn *big.Int) (*big.Int, error) {
	usd, err := decimal.NewFromString(strings.TrimSpace(usdAmount))
	if err != nil || !usd.IsPositive() {
		return nil, fmt.Errorf("%w: usd amount %q", model.ErrInvalidRequest, usdAmount)
	}
	if quotedIn != nil && quotedIn.Sign() > 0 {
		return new(big.Int).Set(quotedIn), nil
	}
	price, err := b.EthUSDPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("eth usd price: %w", err)
	}
	native := usd.DivRound(price, int32(b.chain.NativeDecimals))
	return model.ToUnits(native, b.chain.NativeDecimals)
}

// resolveSell classifies req. ok is false when the output type contradicts the output token.
func (b *base) resolveSell(ctx context.Context, req model.SellRequest) (sellLeg, bool, error) {
	if err := b.checkChain(req.ChainID); err != nil {
		return sellLeg{}, false, err
	}
	zero := common.Address{}
	if req.InputToken == zero {
		return sellLeg{}, false, nil
	}

	leg := sellLeg{tokenIn: req.InputToken, outputType: req.OutputType}
	switch req.OutputType {
	case model.OutputETH:
		if req.OutputToken != zero {
			return sellLeg{}, false, nil
		}
		leg.nativeOut = true
		leg.tokenOut = b.VenueToken(zero)
	case model.OutputUSDC:
		if req.OutputToken != zero && req.OutputToken != b.chain.USDC {
			return sellLeg{}, false, nil
		}
		leg.tokenOut = b.chain.USDC
	case model.OutputWETH:
		if req.OutputToken != zero && req.OutputToken != b.chain.WETH {
			return sellLeg{}, false, nil
		}
		leg.tokenOut = b.chain.WETH
	case model.OutputToken:
		if req.OutputToken == zero {
			return sellLeg{}, false, nil
		}
		leg.tokenOut = req.OutputToken
	default:
		return sellLeg{}, false, nil
	}
	if leg.tokenOut == leg.tokenIn {
		return sellLeg{}, false, nil
	}

	meta, err := b.tokens.Resolve(ctx, req.InputToken)
	if err != nil {
		return sellLeg{}, false, fmt.Errorf("resolve input token: %w", err)
	}
	amount, err := model.ParseUnits(req.InputAmount, meta.Decimals)
	if err != nil {
		return sellLeg{}, false, err
	}
	leg.amountIn = amount
	leg.amountInDec = model.FromUnits(amount, meta.Decimals)

	if strings.TrimSpace(req.TradingPrice) != "" {
		price, err := decimal.NewFromString(strings.TrimSpace(req.TradingPrice))
		if err != nil || price.IsNegative() {
			return sellLeg{}, false, fmt.Errorf("%w: trading price %q", model.ErrInvalidRequest, req.TradingPrice)
		}
		leg.tradingPrice = price
	}
	return leg, true, nil
}

func (b *base) checkChain(chainID uint64) error {
	if chainID != 0 && chainID != b.chain.ID {
		return fmt.Errorf("%w: request for chain %d, strategy serves %d", model.ErrNetworkMismatch, chainID, b.chain.ID)
	}
	return nil
}

// checkSellImpact compares the USD value of the quoted output with amount × trading price.
// Token outputs have no USD reference and fall back to the venue-reported impact.
func (b *base) checkSellImpact(ctx context.Context, leg sellLeg, quote model.Quote) error {
	if !leg.tradingPrice.IsPositive() || !b.cfg.MaxPriceImpact.IsPositive() {
		return nil
	}
	expected := leg.amountInDec.Mul(leg.tradingPrice)
	if !expected.IsPositive() {
		return nil
	}

	var realized decimal.Decimal
	switch leg.outputType {
	case model.OutputUSDC:
		realized = model.FromUnits(quote.AmountOut, b.chain.USDCDecimals)
	case model.OutputETH, model.OutputWETH:
		price, err := b.EthUSDPrice(ctx)
		if err != nil {
			return fmt.Errorf("eth usd price: %w", err)
		}
		realized = model.FromUnits(quote.AmountOut, b.chain.NativeDecimals).Mul(price)
	default:
		return nil
	}

	impact := expected.Sub(realized).Div(expected).Mul(decimal.NewFromInt(100))
	b.logger.Debug("sell price impact",
		zap.String("expected_usd", expected.StringFixed(2)),
		zap.String("realized_usd", realized.StringFixed(2)),
		zap.String("impact", impact.StringFixed(4)),
	)
	if impact.GreaterThan(b.cfg.MaxPriceImpact) {
		return fmt.Errorf("%w: %s%% against trading price exceeds %s%%", model.ErrPriceImpactExceeded, impact.StringFixed(2), b.cfg.MaxPriceImpact)
	}
	return nil
}
