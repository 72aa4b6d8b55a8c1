package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/chain"
	"github.com/WouterSls/evm-trading-engine/internal/config"
	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/registry"
	"github.com/WouterSls/evm-trading-engine/internal/route"
	"github.com/WouterSls/evm-trading-engine/internal/strategy"
)

// engine wires the node client, registry and venue strategies for one command run.
type engine struct {
	cfg       config.Config
	client    *chain.Client
	chain     registry.Chain
	tokens    *dex.TokenRegistry
	optimizer *route.Optimizer
	logger    *zap.Logger
	metrics   *http.Server
}

func loadCommand(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newEngine(ctx context.Context, cfg config.Config, logger *zap.Logger) (*engine, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	chainCfg, err := registry.Lookup(cfg.ChainID)
	if err != nil {
		return nil, err
	}
	chainCfg, err = chainCfg.WithOverrides(cfg.Contracts)
	if err != nil {
		return nil, err
	}

	client, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCRPS)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}
	if err := client.ValidateNetwork(ctx, cfg.ChainID); err != nil {
		client.Close()
		return nil, err
	}

	tokens, err := dex.NewTokenRegistry(client, 0, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	e := &engine{
		cfg:    cfg,
		client: client,
		chain:  chainCfg,
		tokens: tokens,
		optimizer: route.NewOptimizer(route.Config{
			MaxRetries:   cfg.Trading.MaxRetries,
			RetryBackoff: cfg.Trading.RetryBackoff,
			QuoteTimeout: cfg.Trading.QuoteTimeout,
			MinLiquidity: cfg.Trading.MinLiquidity,
		}, logger),
		logger: logger,
	}
	if cfg.MetricsAddr != "" {
		e.metrics = serveMetrics(cfg.MetricsAddr, logger)
	}

	logger.Info("engine ready",
		zap.String("chain", chainCfg.Name),
		zap.Uint64("chain_id", chainCfg.ID),
		zap.Int("rpc_rps", cfg.RPCRPS),
	)
	return e, nil
}

func (e *engine) Close() {
	if e.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.metrics.Shutdown(ctx)
	}
	e.client.Close()
}

func (e *engine) strategyConfig() (strategy.Config, error) {
	intermediates, err := parseAddresses(e.cfg.Trading.Intermediates)
	if err != nil {
		return strategy.Config{}, err
	}
	return strategy.Config{
		SlippageTolerance: e.cfg.Trading.SlippageTolerance,
		MaxPriceImpact:    e.cfg.Trading.MaxPriceImpact,
		InfiniteApproval:  e.cfg.Trading.InfiniteApproval,
		Deadline:          e.cfg.Trading.Deadline,
		ProbeAmount:       e.cfg.Trading.ProbeAmount,
		Intermediates:     intermediates,
	}, nil
}

func (e *engine) strategy(kind strategy.Kind) (strategy.Strategy, error) {
	cfg, err := e.strategyConfig()
	if err != nil {
		return nil, err
	}
	return strategy.New(kind, strategy.Deps{
		Caller:    e.client,
		Chain:     e.chain,
		Tokens:    e.tokens,
		Optimizer: e.optimizer,
		Config:    cfg,
		Logger:    e.logger,
	})
}

func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("metrics listening", zap.String("addr", addr))
	return server
}

// parseToken accepts a hex address or "eth" for the native asset.
func parseToken(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if strings.EqualFold(input, "eth") {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// parseAddresses converts string addresses into common.Address.
func parseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}
