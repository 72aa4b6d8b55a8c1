package config

import (
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 8453 || cfg.RPCRPS != 25 || cfg.LogLevel != "info" || cfg.DryRun {
		t.Fatalf("unexpected infra defaults %+v", cfg)
	}
	tr := cfg.Trading
	if tr.SlippageTolerance.String() != "0.02" || tr.MaxPriceImpact.String() != "5" {
		t.Fatalf("unexpected trading defaults slippage=%s impact=%s", tr.SlippageTolerance, tr.MaxPriceImpact)
	}
	if !tr.InfiniteApproval || tr.MaxRetries != 3 || tr.RetryBackoff != 250*time.Millisecond {
		t.Fatalf("unexpected retry/approval defaults %+v", tr)
	}
	if tr.Deadline != 20*time.Minute || tr.QuoteTimeout != 10*time.Second || tr.ProbeAmount.String() != "0.000001" {
		t.Fatalf("unexpected timing defaults %+v", tr)
	}
	if tr.MinLiquidity != nil {
		t.Fatalf("thin-pool filter should be off by default, got %s", tr.MinLiquidity)
	}
}

func TestLoadMinLiquidity(t *testing.T) {
	t.Setenv("TRADER_MIN_LIQUIDITY", "340282366920938463463374607431768211455")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	if cfg.Trading.MinLiquidity == nil || cfg.Trading.MinLiquidity.Cmp(want) != 0 {
		t.Fatalf("unexpected min liquidity %v", cfg.Trading.MinLiquidity)
	}

	t.Setenv("TRADER_MIN_LIQUIDITY", "0")
	cfg, err = Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Trading.MinLiquidity != nil {
		t.Fatalf("zero should disable the filter, got %s", cfg.Trading.MinLiquidity)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("TRADER_MAX_PRICE_IMPACT", "3.5")
	t.Setenv("TRADER_PRIVATE_KEY", "0xabc")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Uint64("chain-id", 0, "")
	flags.String("intermediates", "", "")
	if err := flags.Parse([]string{"--rpc", "http://node:8545", "--chain-id", "1", "--intermediates", "0x01, 0x02,"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCURL != "http://node:8545" || cfg.ChainID != 1 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.PrivateKey != "0xabc" || cfg.Trading.MaxPriceImpact.String() != "3.5" {
		t.Fatalf("env not applied: key=%q impact=%s", cfg.PrivateKey, cfg.Trading.MaxPriceImpact)
	}
	if !reflect.DeepEqual(cfg.Trading.Intermediates, []string{"0x01", "0x02"}) {
		t.Fatalf("unexpected intermediates %v", cfg.Trading.Intermediates)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trader.yaml")
	body := "slippage-tolerance: \"0.005\"\ninfinite-approval: false\ncontracts:\n  universal-router: \"0x0000000000000000000000000000000000000001\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Trading.SlippageTolerance.String() != "0.005" || cfg.Trading.InfiniteApproval {
		t.Fatalf("file values not applied: %+v", cfg.Trading)
	}
	if cfg.Contracts["universal-router"] != "0x0000000000000000000000000000000000000001" {
		t.Fatalf("unexpected contracts %v", cfg.Contracts)
	}
}

func TestLoadRejectsBadTradingValues(t *testing.T) {
	cases := map[string]string{
		"TRADER_SLIPPAGE_TOLERANCE":     "1.5",
		"TRADER_MAX_PRICE_IMPACT":       "-1",
		"TRADER_PRICE_IMPACT_AMOUNT_IN": "0",
		"TRADER_MIN_LIQUIDITY":          "-5",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load("", nil); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}

func TestContractsFromEnv(t *testing.T) {
	t.Setenv("TRADER_CONTRACTS", "WETH=0x1, usdc = 0x2,broken,=0x3")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]string{"weth": "0x1", "usdc": "0x2"}
	if !reflect.DeepEqual(cfg.Contracts, want) {
		t.Fatalf("unexpected contracts %v", cfg.Contracts)
	}
}
