package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/chain"
	"github.com/WouterSls/evm-trading-engine/internal/config"
	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/storage"
	"github.com/WouterSls/evm-trading-engine/internal/storage/postgres"
	"github.com/WouterSls/evm-trading-engine/internal/strategy"
	"github.com/WouterSls/evm-trading-engine/internal/trade"
)

// session is everything a buy or sell needs; Close releases it.
type session struct {
	engine *engine
	coord  *trade.Coordinator
	owner  common.Address
	pg     *postgres.Store
}

func openSession(ctx context.Context, cmd *cobra.Command, cfg config.Config, logger *zap.Logger) (*session, error) {
	venue, _ := cmd.Flags().GetString("venue")
	kind, err := strategy.ParseKind(venue)
	if err != nil {
		return nil, err
	}

	e, err := newEngine(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s := &session{engine: e}

	strat, err := e.strategy(kind)
	if err != nil {
		s.Close()
		return nil, err
	}

	var executor trade.Executor
	switch {
	case cfg.PrivateKey != "":
		exec, err := chain.NewExecutor(e.client, cfg.PrivateKey, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		executor = exec
		s.owner = exec.From()
	case cfg.DryRun:
		from, _ := cmd.Flags().GetString("from")
		if !common.IsHexAddress(from) {
			s.Close()
			return nil, fmt.Errorf("--from or TRADER_PRIVATE_KEY is required for a dry run")
		}
		s.owner = common.HexToAddress(from)
	default:
		s.Close()
		return nil, fmt.Errorf("TRADER_PRIVATE_KEY is required to execute trades")
	}

	sinks := storage.Multi{storage.NewJsonlStorage(cfg.Out)}
	if cfg.PGDSN != "" {
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pg = pg
		if err := pg.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		sinks = append(sinks, pg)
	}

	coord, err := trade.NewCoordinator(trade.Config{
		MaxPriceImpact: cfg.Trading.MaxPriceImpact,
		MaxRetries:     cfg.Trading.MaxRetries,
		RetryBackoff:   cfg.Trading.RetryBackoff,
	}, trade.Deps{
		Strategy: strat,
		Executor: executor,
		Network:  e.client,
		Tokens:   e.tokens,
		Storage:  sinks,
		Logger:   logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.coord = coord
	return s, nil
}

func (s *session) Close() {
	if s.pg != nil {
		s.pg.Close()
	}
	s.engine.Close()
}

func runBuy(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadCommand(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	inputType, _ := cmd.Flags().GetString("input-type")
	inputToken, _ := cmd.Flags().GetString("input-token")
	outputToken, _ := cmd.Flags().GetString("output-token")
	amount, _ := cmd.Flags().GetString("amount")

	req := model.BuyRequest{
		ChainID:     cfg.ChainID,
		InputType:   model.InputType(strings.ToUpper(strings.TrimSpace(inputType))),
		InputAmount: amount,
	}
	switch req.InputType {
	case model.InputETH, model.InputUSD, model.InputToken:
	default:
		return fmt.Errorf("unknown input type %q (expected eth, usd or token)", inputType)
	}
	if inputToken != "" {
		if req.InputToken, err = parseToken(inputToken); err != nil {
			return fmt.Errorf("input-token: %w", err)
		}
	}
	if req.OutputToken, err = parseToken(outputToken); err != nil {
		return fmt.Errorf("output-token: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.DryRun {
		planned, err := s.coord.PlanBuy(ctx, s.owner, req)
		if err != nil {
			return err
		}
		return writeJSON(planned)
	}
	confirmation, err := s.coord.Buy(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(confirmation)
}

func runSell(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadCommand(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	inputToken, _ := cmd.Flags().GetString("input-token")
	outputType, _ := cmd.Flags().GetString("output")
	outputToken, _ := cmd.Flags().GetString("output-token")
	amount, _ := cmd.Flags().GetString("amount")
	tradingPrice, _ := cmd.Flags().GetString("trading-price")

	req := model.SellRequest{
		ChainID:      cfg.ChainID,
		InputAmount:  amount,
		OutputType:   model.OutputType(strings.ToUpper(strings.TrimSpace(outputType))),
		TradingPrice: tradingPrice,
	}
	switch req.OutputType {
	case model.OutputETH, model.OutputUSDC, model.OutputWETH, model.OutputToken:
	default:
		return fmt.Errorf("unknown output type %q (expected ETH, USDC, WETH or TOKEN)", outputType)
	}
	if req.InputToken, err = parseToken(inputToken); err != nil {
		return fmt.Errorf("input-token: %w", err)
	}
	if outputToken != "" {
		if req.OutputToken, err = parseToken(outputToken); err != nil {
			return fmt.Errorf("output-token: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.DryRun {
		planned, err := s.coord.PlanSell(ctx, s.owner, req)
		if err != nil {
			return err
		}
		return writeJSON(planned)
	}
	confirmation, err := s.coord.Sell(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(confirmation)
}
