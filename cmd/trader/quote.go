package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/route"
	"github.com/WouterSls/evm-trading-engine/internal/strategy"
)

type exclusionOutput struct {
	Venue  string      `json:"venue"`
	Route  model.Route `json:"route"`
	Reason string      `json:"reason"`
	Error  string      `json:"error,omitempty"`
}

type quoteOutput struct {
	AmountIn           string            `json:"amount_in"`
	AmountOutFormatted string            `json:"amount_out_formatted"`
	Best               model.Quote       `json:"best"`
	Quotes             []model.Quote     `json:"quotes"`
	Excluded           []exclusionOutput `json:"excluded,omitempty"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadCommand(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	tokenInFlag, _ := cmd.Flags().GetString("token-in")
	tokenOutFlag, _ := cmd.Flags().GetString("token-out")
	amount, _ := cmd.Flags().GetString("amount")
	venue, _ := cmd.Flags().GetString("venue")

	tokenIn, err := parseToken(tokenInFlag)
	if err != nil {
		return fmt.Errorf("token-in: %w", err)
	}
	tokenOut, err := parseToken(tokenOutFlag)
	if err != nil {
		return fmt.Errorf("token-out: %w", err)
	}
	kinds, err := parseVenues(venue)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer e.Close()

	inMeta, err := e.tokens.Resolve(ctx, tokenIn)
	if err != nil {
		return fmt.Errorf("token-in metadata: %w", err)
	}
	outMeta, err := e.tokens.Resolve(ctx, tokenOut)
	if err != nil {
		return fmt.Errorf("token-out metadata: %w", err)
	}
	amountIn, err := model.ParseUnits(amount, inMeta.Decimals)
	if err != nil {
		return err
	}

	var candidates []route.Candidate
	for _, kind := range kinds {
		s, err := e.strategy(kind)
		if err != nil {
			return err
		}
		source, ok := s.(strategy.CandidateSource)
		if !ok {
			continue
		}
		candidates = append(candidates, source.Candidates(source.VenueToken(tokenIn), source.VenueToken(tokenOut))...)
	}

	logger.Info("route search start",
		zap.String("token_in", tokenIn.Hex()),
		zap.String("token_out", tokenOut.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.Int("candidates", len(candidates)),
	)
	result, err := e.optimizer.BestRoute(ctx, tokenIn, tokenOut, amountIn, candidates)
	if err != nil {
		return err
	}

	out := quoteOutput{
		AmountIn:           amountIn.String(),
		AmountOutFormatted: outMeta.Format(result.Best.AmountOut),
		Best:               result.Best,
		Quotes:             result.Quotes,
	}
	for _, ex := range result.Excluded {
		item := exclusionOutput{Venue: ex.Venue, Route: ex.Route, Reason: ex.Reason}
		if ex.Err != nil {
			item.Error = ex.Err.Error()
		}
		out.Excluded = append(out.Excluded, item)
	}
	if err := writeJSON(out); err != nil {
		return err
	}
	if result.Best.Route.IsEmpty() {
		return model.ErrNoRouteFound
	}
	return nil
}

func parseVenues(value string) ([]strategy.Kind, error) {
	if value == "" || value == "all" {
		return strategy.AllKinds(), nil
	}
	kind, err := strategy.ParseKind(value)
	if err != nil {
		return nil, err
	}
	return []strategy.Kind{kind}, nil
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
