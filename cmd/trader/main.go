package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "trader",
		Short:        "Multi-venue DEX routing and trade execution",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Find the best route for an exact-input swap",
		RunE:  runQuote,
	}
	addNodeFlags(quoteCmd.Flags())
	addTradingFlags(quoteCmd.Flags())
	quoteCmd.Flags().String("token-in", "", "input token address (eth for the native asset)")
	quoteCmd.Flags().String("token-out", "", "output token address (eth for the native asset)")
	quoteCmd.Flags().String("amount", "", "input amount in token units")
	quoteCmd.Flags().String("venue", "all", "venue to search (v2, v3, v4, all)")
	root.AddCommand(quoteCmd)

	buyCmd := &cobra.Command{
		Use:   "buy",
		Short: "Buy a token with ETH, a USD amount of ETH, or another token",
		RunE:  runBuy,
	}
	addNodeFlags(buyCmd.Flags())
	addTradingFlags(buyCmd.Flags())
	addSinkFlags(buyCmd.Flags())
	buyCmd.Flags().String("input-type", "eth", "input type (eth, usd, token)")
	buyCmd.Flags().String("input-token", "", "input token address, only for --input-type token")
	buyCmd.Flags().String("amount", "", "input amount")
	buyCmd.Flags().String("output-token", "", "token to buy")
	buyCmd.Flags().String("venue", "v3", "venue (v2, v3, v4)")
	root.AddCommand(buyCmd)

	sellCmd := &cobra.Command{
		Use:   "sell",
		Short: "Sell a token for ETH, USDC, WETH, or another token",
		RunE:  runSell,
	}
	addNodeFlags(sellCmd.Flags())
	addTradingFlags(sellCmd.Flags())
	addSinkFlags(sellCmd.Flags())
	sellCmd.Flags().String("input-token", "", "token to sell")
	sellCmd.Flags().String("amount", "", "amount to sell in token units")
	sellCmd.Flags().String("output", "ETH", "output type (ETH, USDC, WETH, TOKEN)")
	sellCmd.Flags().String("output-token", "", "output token address, only for --output TOKEN")
	sellCmd.Flags().String("trading-price", "", "reference USD price per input token for the impact check")
	sellCmd.Flags().String("venue", "v3", "venue (v2, v3, v4)")
	root.AddCommand(sellCmd)

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Encode or decode multi-hop swap paths",
	}
	pathEncodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode tokens and fee tiers into a packed path",
		RunE:  runPathEncode,
	}
	pathEncodeCmd.Flags().StringSlice("tokens", nil, "token addresses in hop order (comma-separated)")
	pathEncodeCmd.Flags().UintSlice("fees", nil, "fee tier per hop (comma-separated)")
	pathDecodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode a packed path",
		RunE:  runPathDecode,
	}
	pathDecodeCmd.Flags().String("hex", "", "0x-prefixed packed path")
	pathCmd.AddCommand(pathEncodeCmd, pathDecodeCmd)
	root.AddCommand(pathCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded state of a trade",
		RunE:  runStatus,
	}
	statusCmd.Flags().String("id", "", "trade id")
	statusCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	statusCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(statusCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addNodeFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.Uint64("chain-id", 8453, "chain id the RPC must serve")
	flags.Int("rpc-rps", 25, "eth_call rate limit per second, 0 disables")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addTradingFlags(flags *pflag.FlagSet) {
	flags.String("slippage-tolerance", "0.02", "accepted fraction below the quoted output")
	flags.String("max-price-impact", "5", "maximum price impact in percent, 0 disables")
	flags.Bool("infinite-approval", true, "approve the maximum amount once instead of per trade")
	flags.Int("max-retries", 3, "retries for transient quote failures and approvals")
	flags.Duration("retry-backoff", 250*time.Millisecond, "initial retry backoff")
	flags.Duration("deadline", 20*time.Minute, "swap deadline offset")
	flags.String("price-impact-amount-in", "0.000001", "probe size used to read v4 spot prices")
	flags.Duration("quote-timeout", 10*time.Second, "timeout per venue quote")
	flags.String("min-liquidity", "", "drop quotes from pools with liquidity L below this (raw units)")
	flags.StringSlice("intermediates", nil, "extra hop tokens (comma-separated)")
}

func addSinkFlags(flags *pflag.FlagSet) {
	flags.Bool("dry-run", false, "quote and build without submitting")
	flags.String("from", "", "sender address for --dry-run without a private key")
	flags.String("out", "./data/trades.jsonl", "output JSONL path")
	flags.String("pg-dsn", "", "optional Postgres DSN")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
