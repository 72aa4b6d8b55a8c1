package trade

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/retry"
	"github.com/WouterSls/evm-trading-engine/internal/storage"
	"github.com/WouterSls/evm-trading-engine/internal/strategy"
)

// maxApprovalSteps bounds the approvals one trade may need (ERC20 to Permit2, Permit2 to router).
const maxApprovalSteps = 3

// Executor signs, submits and tracks transactions.
type Executor interface {
	From() common.Address
	Submit(ctx context.Context, req model.TransactionRequest) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (model.ExecutionResult, error)
}

// NetworkValidator fails with model.ErrNetworkMismatch when not connected to chainID.
type NetworkValidator interface {
	ValidateNetwork(ctx context.Context, chainID uint64) error
}

// TokenResolver returns token metadata; the zero address is the native asset.
type TokenResolver interface {
	Resolve(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

type Config struct {
	// MaxPriceImpact is a percentage; zero disables the gate.
	MaxPriceImpact decimal.Decimal
	// MaxRetries bounds retries of approval submission.
	MaxRetries   int
	RetryBackoff time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxPriceImpact: decimal.NewFromInt(5),
		MaxRetries:     3,
		RetryBackoff:   250 * time.Millisecond,
	}
}

// Deps are the collaborators of a Coordinator. Executor is only needed to execute;
// Network, Tokens and Storage are optional.
type Deps struct {
	Strategy strategy.Strategy
	Executor Executor
	Network  NetworkValidator
	Tokens   TokenResolver
	Storage  storage.Storage
	Logger   *zap.Logger
	Now      func() time.Time
}

// Coordinator drives trades through quoting, approval, building, submission and confirmation.
type Coordinator struct {
	cfg      Config
	strategy strategy.Strategy
	executor Executor
	network  NetworkValidator
	tokens   TokenResolver
	store    storage.Storage
	logger   *zap.Logger
	now      func() time.Time
}

func NewCoordinator(cfg Config, deps Deps) (*Coordinator, error) {
	if deps.Strategy == nil {
		return nil, fmt.Errorf("strategy is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Coordinator{
		cfg:      cfg,
		strategy: deps.Strategy,
		executor: deps.Executor,
		network:  deps.Network,
		tokens:   deps.Tokens,
		store:    deps.Storage,
		logger:   deps.Logger.With(zap.String("strategy", deps.Strategy.Name())),
		now:      deps.Now,
	}, nil
}

// leg adapts a buy or sell request to the side-independent lifecycle.
type leg struct {
	side    model.Side
	chainID uint64
	quote   func(ctx context.Context) (model.Quote, error)
	build   func(ctx context.Context, owner common.Address, quote model.Quote) (model.TransactionRequest, error)
	// approve is the token the spender pulls from the owner; zero when the input travels as value.
	approve  common.Address
	spent    common.Address
	received func(quote model.Quote) common.Address
}

func (c *Coordinator) buyLeg(req model.BuyRequest) leg {
	l := leg{
		side:    model.SideBuy,
		chainID: req.ChainID,
		quote: func(ctx context.Context) (model.Quote, error) {
			return c.strategy.QuoteBuy(ctx, req)
		},
		build: func(ctx context.Context, owner common.Address, quote model.Quote) (model.TransactionRequest, error) {
			return c.strategy.BuildBuyTransaction(ctx, owner, req, quote)
		},
		received: func(model.Quote) common.Address { return req.OutputToken },
	}
	if req.InputType == model.InputToken {
		l.approve = req.InputToken
		l.spent = req.InputToken
	}
	return l
}

func (c *Coordinator) sellLeg(req model.SellRequest) leg {
	return leg{
		side:    model.SideSell,
		chainID: req.ChainID,
		quote: func(ctx context.Context) (model.Quote, error) {
			return c.strategy.QuoteSell(ctx, req)
		},
		build: func(ctx context.Context, owner common.Address, quote model.Quote) (model.TransactionRequest, error) {
			return c.strategy.BuildSellTransaction(ctx, owner, req, quote)
		},
		approve: req.InputToken,
		spent:   req.InputToken,
		received: func(quote model.Quote) common.Address {
			if req.OutputType == model.OutputETH {
				return common.Address{}
			}
			return quote.Route.TokenOut()
		},
	}
}

// Buy executes req and returns its confirmation.
func (c *Coordinator) Buy(ctx context.Context, req model.BuyRequest) (model.TradeConfirmation, error) {
	return c.execute(ctx, c.buyLeg(req))
}

// Sell executes req and returns its confirmation.
func (c *Coordinator) Sell(ctx context.Context, req model.SellRequest) (model.TradeConfirmation, error) {
	return c.execute(ctx, c.sellLeg(req))
}

// PlanBuy quotes and builds req for owner without submitting anything.
func (c *Coordinator) PlanBuy(ctx context.Context, owner common.Address, req model.BuyRequest) (*Trade, error) {
	return c.plan(ctx, owner, c.buyLeg(req))
}

// PlanSell quotes and builds req for owner without submitting anything.
func (c *Coordinator) PlanSell(ctx context.Context, owner common.Address, req model.SellRequest) (*Trade, error) {
	return c.plan(ctx, owner, c.sellLeg(req))
}

func (c *Coordinator) newTrade(side model.Side) *Trade {
	return &Trade{
		ID:       uuid.NewString(),
		Side:     side,
		Strategy: c.strategy.Name(),
	}
}

func (c *Coordinator) plan(ctx context.Context, owner common.Address, l leg) (*Trade, error) {
	t := c.newTrade(l.side)
	if err := c.quoting(ctx, t, l); err != nil {
		return t, err
	}

	c.transition(ctx, t, model.StateApprovalCheck, nil)
	if l.approve != (common.Address{}) {
		approval, err := c.strategy.EnsureApproval(ctx, owner, l.approve, t.Quote.AmountIn, c.strategy.Spender())
		if err != nil {
			return t, c.fail(ctx, t, fmt.Errorf("%w: %w", model.ErrApprovalFailed, err))
		}
		if approval != nil {
			t.Approvals = append(t.Approvals, *approval)
		}
	}

	if err := c.building(ctx, t, l, owner); err != nil {
		return t, err
	}
	return t, nil
}

func (c *Coordinator) execute(ctx context.Context, l leg) (model.TradeConfirmation, error) {
	if c.executor == nil {
		return model.TradeConfirmation{}, fmt.Errorf("executor is required to execute trades")
	}
	owner := c.executor.From()
	t := c.newTrade(l.side)

	if err := c.quoting(ctx, t, l); err != nil {
		return model.TradeConfirmation{}, err
	}
	if err := c.approving(ctx, t, l, owner); err != nil {
		return model.TradeConfirmation{}, err
	}
	if err := c.building(ctx, t, l, owner); err != nil {
		return model.TradeConfirmation{}, err
	}

	// The swap is submitted exactly once; resubmission is left to the caller.
	hash, err := c.executor.Submit(ctx, t.Transaction)
	if err != nil {
		return model.TradeConfirmation{}, c.fail(ctx, t, fmt.Errorf("%w: submit: %w", model.ErrExecutionFailed, err))
	}
	t.TxHash = hash
	c.transition(ctx, t, model.StateSubmitted, nil)

	c.transition(ctx, t, model.StateConfirming, nil)
	result, err := c.executor.WaitMined(ctx, hash)
	if err != nil {
		return model.TradeConfirmation{}, c.fail(ctx, t, fmt.Errorf("%w: wait mined: %w", model.ErrExecutionFailed, err))
	}
	if !result.Success {
		return model.TradeConfirmation{}, c.fail(ctx, t, fmt.Errorf("%w: transaction %s reverted", model.ErrExecutionFailed, hash.Hex()))
	}

	confirmation := c.confirmation(ctx, t, l, owner, result)
	c.transition(ctx, t, model.StateConfirmed, nil)
	if c.store != nil {
		if err := c.store.PutConfirmation(ctx, confirmation); err != nil {
			c.logger.Error("persist confirmation failed", zap.String("trade_id", t.ID), zap.Error(err))
		}
	}
	return confirmation, nil
}

func (c *Coordinator) quoting(ctx context.Context, t *Trade, l leg) error {
	c.transition(ctx, t, model.StateQuoting, nil)
	if c.network != nil {
		if err := c.network.ValidateNetwork(ctx, l.chainID); err != nil {
			return c.fail(ctx, t, err)
		}
	}

	quote, err := l.quote(ctx)
	if err != nil {
		return c.fail(ctx, t, err)
	}
	if quote.Route.IsEmpty() || quote.AmountOut == nil || quote.AmountOut.Sign() <= 0 {
		return c.fail(ctx, t, model.ErrNoRouteFound)
	}
	t.Quote = quote
	c.logger.Debug("trade quoted",
		zap.String("trade_id", t.ID),
		zap.String("venue", quote.Venue),
		zap.String("amount_in", quote.AmountIn.String()),
		zap.String("amount_out", quote.AmountOut.String()),
		zap.String("price_impact", quote.PriceImpact.String()),
	)
	return nil
}

// approving executes approval steps until the strategy reports a sufficient allowance.
func (c *Coordinator) approving(ctx context.Context, t *Trade, l leg, owner common.Address) error {
	c.transition(ctx, t, model.StateApprovalCheck, nil)
	if l.approve == (common.Address{}) {
		return nil
	}

	for step := 0; step < maxApprovalSteps; step++ {
		var approval *model.TransactionRequest
		err := retry.Do(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, nil, func(ctx context.Context) error {
			var err error
			approval, err = c.strategy.EnsureApproval(ctx, owner, l.approve, t.Quote.AmountIn, c.strategy.Spender())
			return err
		})
		if err != nil {
			return c.fail(ctx, t, fmt.Errorf("%w: check allowance: %w", model.ErrApprovalFailed, err))
		}
		if approval == nil {
			return nil
		}
		t.Approvals = append(t.Approvals, *approval)

		err = retry.Do(ctx, c.cfg.MaxRetries, c.cfg.RetryBackoff, nil, func(ctx context.Context) error {
			return c.submitApproval(ctx, t, *approval)
		})
		if err != nil {
			return c.fail(ctx, t, fmt.Errorf("%w: %w", model.ErrApprovalFailed, err))
		}
	}
	return c.fail(ctx, t, fmt.Errorf("%w: allowance still insufficient after %d approvals", model.ErrApprovalFailed, maxApprovalSteps))
}

func (c *Coordinator) submitApproval(ctx context.Context, t *Trade, approval model.TransactionRequest) error {
	hash, err := c.executor.Submit(ctx, approval)
	if err != nil {
		return fmt.Errorf("submit approval: %w", err)
	}
	result, err := c.executor.WaitMined(ctx, hash)
	if err != nil {
		return fmt.Errorf("wait approval %s: %w", hash.Hex(), err)
	}
	if !result.Success {
		return fmt.Errorf("approval %s reverted", hash.Hex())
	}
	c.logger.Info("approval confirmed", zap.String("trade_id", t.ID), zap.String("hash", hash.Hex()))
	return nil
}

func (c *Coordinator) building(ctx context.Context, t *Trade, l leg, owner common.Address) error {
	c.transition(ctx, t, model.StateBuilding, nil)
	if c.cfg.MaxPriceImpact.IsPositive() && t.Quote.PriceImpact.GreaterThan(c.cfg.MaxPriceImpact) {
		return c.fail(ctx, t, fmt.Errorf("%w: %s%% exceeds %s%%", model.ErrPriceImpactExceeded,
			t.Quote.PriceImpact.StringFixed(2), c.cfg.MaxPriceImpact))
	}

	tx, err := l.build(ctx, owner, t.Quote)
	if err != nil {
		return c.fail(ctx, t, err)
	}
	if tx.IsEmpty() {
		return c.fail(ctx, t, fmt.Errorf("%w: request input type does not match its tokens", model.ErrInvalidRequest))
	}
	t.Transaction = tx
	return nil
}

func (c *Coordinator) confirmation(ctx context.Context, t *Trade, l leg, owner common.Address, result model.ExecutionResult) model.TradeConfirmation {
	quote := t.Quote
	received := l.received(quote)

	amountOut := quote.AmountOut
	if received != (common.Address{}) {
		transferred, err := dex.TransferredTo(result.Logs, received, owner)
		if err != nil {
			c.logger.Warn("decode transfer logs failed", zap.String("trade_id", t.ID), zap.Error(err))
		} else if transferred != nil {
			amountOut = transferred
		}
	}

	gasCost := new(big.Int).SetUint64(result.GasUsed)
	if result.EffectiveGasPrice != nil {
		gasCost.Mul(gasCost, result.EffectiveGasPrice)
	} else {
		gasCost.SetInt64(0)
	}

	confirmedAt := c.now()
	if result.BlockTime > 0 {
		confirmedAt = time.Unix(int64(result.BlockTime), 0)
	}

	confirmation := model.TradeConfirmation{
		TradeID:                 t.ID,
		Side:                    t.Side,
		Strategy:                t.Strategy,
		ChainID:                 l.chainID,
		Path:                    quote.Route.Path,
		TransactionHash:         result.TxHash,
		ConfirmedBlock:          result.BlockNumber,
		GasCost:                 gasCost.String(),
		GasCostFormatted:        model.FormatUnits(gasCost, model.NativeDecimals),
		TokenSpent:              l.spent,
		AmountSpentRaw:          quote.AmountIn.String(),
		AmountSpentFormatted:    c.format(ctx, l.spent, quote.AmountIn),
		TokenReceived:           received,
		AmountReceivedRaw:       amountOut.String(),
		AmountReceivedFormatted: c.format(ctx, received, amountOut),
		ConfirmedAt:             confirmedAt.UTC().Format(time.RFC3339),
	}
	if price, err := c.strategy.EthUSDPrice(ctx); err == nil {
		confirmation.EthPriceUSD = price.StringFixed(2)
	} else {
		c.logger.Warn("eth price lookup failed", zap.String("trade_id", t.ID), zap.Error(err))
	}
	return confirmation
}

// format renders amount in token units, falling back to the raw amount.
func (c *Coordinator) format(ctx context.Context, token common.Address, amount *big.Int) string {
	if token == (common.Address{}) {
		return model.NativeTokenMeta().Format(amount)
	}
	if c.tokens == nil {
		return amount.String()
	}
	meta, err := c.tokens.Resolve(ctx, token)
	if err != nil {
		c.logger.Warn("token metadata lookup failed", zap.String("token", token.Hex()), zap.Error(err))
		return amount.String()
	}
	return meta.Format(amount)
}

func (c *Coordinator) transition(ctx context.Context, t *Trade, state model.TradeState, cause error) {
	record := t.enter(state, c.now(), cause)
	fields := []zap.Field{zap.String("trade_id", t.ID), zap.String("state", string(state))}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
		c.logger.Warn("trade state", fields...)
	} else {
		c.logger.Info("trade state", fields...)
	}
	if c.store != nil {
		if err := c.store.RecordTransition(ctx, record); err != nil {
			c.logger.Error("persist transition failed", zap.String("trade_id", t.ID), zap.Error(err))
		}
	}
}

// fail moves t to Failed and returns the error callers see.
func (c *Coordinator) fail(ctx context.Context, t *Trade, err error) error {
	failedIn := t.State
	c.transition(ctx, t, model.StateFailed, err)
	var tradeErr *Error
	if errors.As(err, &tradeErr) {
		return err
	}
	return &Error{TradeID: t.ID, State: failedIn, Err: err}
}
