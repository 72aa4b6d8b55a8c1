package route

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/retry"
)

// Quoter prices a route on one venue.
type Quoter interface {
	Name() string
	Quote(ctx context.Context, route model.Route, amountIn *big.Int) (model.Quote, error)
}

// Candidate is one route to price on one venue.
type Candidate struct {
	Quoter Quoter
	Route  model.Route
}

const (
	ReasonPoolNotFound      = "pool_not_found"
	ReasonMalformedResponse = "malformed_response"
	ReasonUnreachable       = "unreachable"
	ReasonCircuitOpen       = "circuit_open"
	ReasonZeroOutput        = "zero_output"
	ReasonThinLiquidity     = "thin_liquidity"
	ReasonError             = "error"
)

// Exclusion records why a candidate did not take part in ranking.
type Exclusion struct {
	Venue  string      `json:"venue"`
	Route  model.Route `json:"route"`
	Reason string      `json:"reason"`
	Err    error       `json:"-"`
}

// Result is the outcome of one route search. Quotes are ranked best first.
// When nothing could be quoted Best carries the empty route.
type Result struct {
	Best     model.Quote   `json:"best"`
	Quotes   []model.Quote `json:"quotes"`
	Excluded []Exclusion   `json:"excluded,omitempty"`
}

type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// QuoteTimeout bounds every single venue call; zero disables it.
	QuoteTimeout time.Duration
	// MinLiquidity drops quotes whose liquidity L, sqrt(x*y) on every venue, is below it; nil disables it.
	MinLiquidity *big.Int
	// BreakerFailures is the number of consecutive transient failures that opens a venue breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		RetryBackoff:    250 * time.Millisecond,
		QuoteTimeout:    10 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Optimizer fans quote requests out across candidates and ranks the answers.
type Optimizer struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func NewOptimizer(cfg Config, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultConfig().BreakerFailures
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = DefaultConfig().BreakerCooldown
	}
	return &Optimizer{cfg: cfg, logger: logger, breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

type outcome struct {
	quote model.Quote
	err   error
}

// BestRoute quotes every candidate concurrently and returns the ranked result.
// Venue failures never fail the search; only invalid input does.
func (o *Optimizer) BestRoute(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, candidates []Candidate) (Result, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return Result{}, fmt.Errorf("%w: amount in must be positive", model.ErrInvalidRequest)
	}
	if tokenIn == tokenOut {
		return Result{}, fmt.Errorf("%w: token in and token out are identical", model.ErrInvalidRequest)
	}

	outcomes := make([]outcome, len(candidates))
	var g errgroup.Group
	for i, candidate := range candidates {
		i, candidate := i, candidate
		g.Go(func() error {
			quote, err := o.quote(ctx, candidate, amountIn)
			outcomes[i] = outcome{quote: quote, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Quotes: make([]model.Quote, 0, len(candidates))}
	for i, candidate := range candidates {
		venue := candidate.Quoter.Name()
		if reason, err := o.exclusionReason(outcomes[i]); reason != "" {
			result.Excluded = append(result.Excluded, Exclusion{Venue: venue, Route: candidate.Route, Reason: reason, Err: err})
			quotesTotal.WithLabelValues(venue, outcomeExcluded).Inc()
			excludedTotal.WithLabelValues(venue, reason).Inc()
			o.logger.Warn("venue excluded from route search",
				zap.String("venue", venue),
				zap.String("path", pathString(candidate.Route.Path)),
				zap.String("reason", reason),
				zap.Error(err),
			)
			continue
		}
		quotesTotal.WithLabelValues(venue, outcomeOK).Inc()
		result.Quotes = append(result.Quotes, outcomes[i].quote)
	}

	sort.SliceStable(result.Quotes, func(i, j int) bool {
		return better(result.Quotes[i], result.Quotes[j])
	})
	if len(result.Quotes) == 0 {
		result.Best = model.Quote{
			AmountIn:  new(big.Int).Set(amountIn),
			AmountOut: big.NewInt(0),
			Route:     model.EmptyRoute(),
		}
		return result, nil
	}
	result.Best = result.Quotes[0]
	return result, nil
}

func (o *Optimizer) quote(ctx context.Context, candidate Candidate, amountIn *big.Int) (model.Quote, error) {
	var quote model.Quote
	err := retry.Do(ctx, o.cfg.MaxRetries, o.cfg.RetryBackoff, model.IsTransient, func(ctx context.Context) error {
		var err error
		quote, err = o.quoteOnce(ctx, candidate, amountIn)
		return err
	})
	return quote, err
}

// quoteOnce runs one attempt through the venue breaker. Only transient failures count
// against the breaker; a missing pool says nothing about the venue's health.
func (o *Optimizer) quoteOnce(ctx context.Context, candidate Candidate, amountIn *big.Int) (model.Quote, error) {
	if o.cfg.QuoteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.QuoteTimeout)
		defer cancel()
	}

	var permanent error
	res, err := o.breaker(candidate.Quoter.Name()).Execute(func() (interface{}, error) {
		quote, err := candidate.Quoter.Quote(ctx, candidate.Route, amountIn)
		if err != nil && !model.IsTransient(err) {
			permanent = err
			return nil, nil
		}
		return quote, err
	})
	if permanent != nil {
		return model.Quote{}, permanent
	}
	if err != nil {
		return model.Quote{}, err
	}
	return res.(model.Quote), nil
}

func (o *Optimizer) breaker(venue string) *gobreaker.CircuitBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	if cb, ok := o.breakers[venue]; ok {
		return cb
	}
	failures := o.cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    venue,
		Timeout: o.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			o.logger.Warn("venue breaker state changed",
				zap.String("venue", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	o.breakers[venue] = cb
	return cb
}

func (o *Optimizer) exclusionReason(out outcome) (string, error) {
	if err := out.err; err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return ReasonCircuitOpen, err
		case errors.Is(err, model.ErrPoolNotFound):
			return ReasonPoolNotFound, err
		case errors.Is(err, model.ErrMalformedResponse):
			return ReasonMalformedResponse, err
		case model.IsTransient(err), errors.Is(err, context.DeadlineExceeded):
			return ReasonUnreachable, err
		default:
			return ReasonError, err
		}
	}
	if out.quote.AmountOut == nil || out.quote.AmountOut.Sign() <= 0 {
		return ReasonZeroOutput, nil
	}
	if o.cfg.MinLiquidity != nil && out.quote.ActiveLiquidity != nil && out.quote.ActiveLiquidity.Cmp(o.cfg.MinLiquidity) < 0 {
		return ReasonThinLiquidity, nil
	}
	return "", nil
}

// better orders by output desc, then hops asc, then aggregate fee asc.
func better(a, b model.Quote) bool {
	if c := a.AmountOut.Cmp(b.AmountOut); c != 0 {
		return c > 0
	}
	if a.Route.Hops() != b.Route.Hops() {
		return a.Route.Hops() < b.Route.Hops()
	}
	return a.Route.TotalFee() < b.Route.TotalFee()
}

func pathString(path []common.Address) string {
	parts := make([]string, len(path))
	for i, token := range path {
		parts[i] = token.Hex()
	}
	return strings.Join(parts, ">")
}
