package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TRADER"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL      string
	ChainID     uint64
	RPCRPS      int
	Out         string
	PGDSN       string
	MetricsAddr string
	LogLevel    string
	PrivateKey  string
	DryRun      bool
	// Contracts overrides registry addresses, e.g. "universal-router=0x...".
	Contracts map[string]string
	Trading   Trading
}

// Trading holds the policy applied to every trade.
type Trading struct {
	SlippageTolerance decimal.Decimal
	MaxPriceImpact    decimal.Decimal
	InfiniteApproval  bool
	MaxRetries        int
	RetryBackoff      time.Duration
	Deadline          time.Duration
	ProbeAmount       decimal.Decimal
	QuoteTimeout      time.Duration
	Intermediates     []string
	// MinLiquidity is the pool liquidity L below which a quote is dropped as thin; nil disables it.
	MinLiquidity *big.Int
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("chain-id", uint64(8453))
	v.SetDefault("rpc-rps", 25)
	v.SetDefault("out", "./data/trades.jsonl")
	v.SetDefault("log-level", "info")
	v.SetDefault("dry-run", false)
	v.SetDefault("slippage-tolerance", "0.02")
	v.SetDefault("max-price-impact", "5")
	v.SetDefault("infinite-approval", true)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 250*time.Millisecond)
	v.SetDefault("deadline", 20*time.Minute)
	v.SetDefault("price-impact-amount-in", "0.000001")
	v.SetDefault("quote-timeout", 10*time.Second)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if err := readConfig(v, cfgFile); err != nil {
		return Config{}, err
	}

	trading, err := loadTrading(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:      v.GetString("rpc"),
		ChainID:     v.GetUint64("chain-id"),
		RPCRPS:      v.GetInt("rpc-rps"),
		Out:         v.GetString("out"),
		PGDSN:       v.GetString("pg-dsn"),
		MetricsAddr: v.GetString("metrics-addr"),
		LogLevel:    v.GetString("log-level"),
		PrivateKey:  v.GetString("private-key"),
		DryRun:      v.GetBool("dry-run"),
		Contracts:   getContracts(v, "contracts"),
		Trading:     trading,
	}

	return cfg, nil
}

func loadTrading(v *viper.Viper) (Trading, error) {
	slippage, err := getDecimal(v, "slippage-tolerance")
	if err != nil {
		return Trading{}, err
	}
	if slippage.IsNegative() || slippage.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Trading{}, fmt.Errorf("slippage-tolerance must be in [0, 1), got %s", slippage)
	}
	maxImpact, err := getDecimal(v, "max-price-impact")
	if err != nil {
		return Trading{}, err
	}
	if maxImpact.IsNegative() {
		return Trading{}, fmt.Errorf("max-price-impact must not be negative, got %s", maxImpact)
	}
	probe, err := getDecimal(v, "price-impact-amount-in")
	if err != nil {
		return Trading{}, err
	}
	if !probe.IsPositive() {
		return Trading{}, fmt.Errorf("price-impact-amount-in must be positive, got %s", probe)
	}

	minLiquidity, err := getBigInt(v, "min-liquidity")
	if err != nil {
		return Trading{}, err
	}

	return Trading{
		SlippageTolerance: slippage,
		MaxPriceImpact:    maxImpact,
		InfiniteApproval:  v.GetBool("infinite-approval"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		Deadline:          v.GetDuration("deadline"),
		ProbeAmount:       probe,
		QuoteTimeout:      v.GetDuration("quote-timeout"),
		Intermediates:     getStringSlice(v, "intermediates"),
		MinLiquidity:      minLiquidity,
	}, nil
}

func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: invalid decimal %q", key, raw)
	}
	return d, nil
}

// getBigInt parses a non-negative integer option. Empty or zero yields nil.
func getBigInt(v *viper.Viper, key string) (*big.Int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return nil, nil
	}
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() < 0 {
		return nil, fmt.Errorf("%s: invalid non-negative integer %q", key, raw)
	}
	if n.Sign() == 0 {
		return nil, nil
	}
	return n, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// getContracts reads registry overrides given as a map or as "key=0x...,key=0x...".
// Keys are lower-cased to match registry names.
func getContracts(v *viper.Viper, key string) map[string]string {
	out := make(map[string]string)
	if !v.IsSet(key) {
		return out
	}

	add := func(name, addr string) {
		name = strings.ToLower(strings.TrimSpace(name))
		addr = strings.TrimSpace(addr)
		if name != "" && addr != "" {
			out[name] = addr
		}
	}
	switch typed := v.Get(key).(type) {
	case map[string]string:
		for name, addr := range typed {
			add(name, addr)
		}
	case map[string]interface{}:
		for name, addr := range typed {
			add(name, fmt.Sprintf("%v", addr))
		}
	case string:
		for _, pair := range splitAndClean(typed) {
			name, addr, ok := strings.Cut(pair, "=")
			if ok {
				add(name, addr)
			}
		}
	}
	return out
}
