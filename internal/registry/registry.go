package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// Chain holds the contract addresses and well-known tokens of one network.
type Chain struct {
	ID             uint64
	Name           string
	NativeDecimals uint8

	WETH         common.Address
	USDC         common.Address
	USDCDecimals uint8

	UniversalRouter common.Address
	Permit2         common.Address
	V2Router        common.Address
	V2Factory       common.Address
	V3Factory       common.Address
	V3QuoterV2      common.Address
	V4PoolManager   common.Address
	V4Quoter        common.Address
	V4StateView     common.Address
}

var permit2 = common.HexToAddress("0x000000000022D473030F116dDEE9F6B43aC78BA3")

var chains = map[uint64]Chain{
	1: {
		ID:              1,
		Name:            "ethereum",
		NativeDecimals:  18,
		WETH:            common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		USDC:            common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		USDCDecimals:    6,
		UniversalRouter: common.HexToAddress("0x66a9893cC07D91D95644AEDD05D03f95e1dBA8Af"),
		Permit2:         permit2,
		V2Router:        common.HexToAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"),
		V2Factory:       common.HexToAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f"),
		V3Factory:       common.HexToAddress("0x1F98431c8aD98523631AE4a59f267346ea31F984"),
		V3QuoterV2:      common.HexToAddress("0x61fFE014bA17989E743c5F6cB21bF9697530B21e"),
		V4PoolManager:   common.HexToAddress("0x000000000004444c5dc75cB358380D2e3dE08A90"),
		V4Quoter:        common.HexToAddress("0x52F0E24D1c21C8A0cB1e5a5dD6198556BD9E1203"),
		V4StateView:     common.HexToAddress("0x7fFE42C4a5DEeA5b0feC41C94C136Cf115597227"),
	},
	8453: {
		ID:              8453,
		Name:            "base",
		NativeDecimals:  18,
		WETH:            common.HexToAddress("0x4200000000000000000000000000000000000006"),
		USDC:            common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"),
		USDCDecimals:    6,
		UniversalRouter: common.HexToAddress("0x6fF5693b99212Da76ad316178A184AB56D299b43"),
		Permit2:         permit2,
		V2Router:        common.HexToAddress("0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24"),
		V2Factory:       common.HexToAddress("0x8909Dc15e40173Ff4699343b6eB8132c65e18eC6"),
		V3Factory:       common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD"),
		V3QuoterV2:      common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a"),
		V4PoolManager:   common.HexToAddress("0x498581fF718922c3f8e6A244956aF099B2652b2b"),
		V4Quoter:        common.HexToAddress("0x0d5e0F971ED27FBfF6c2837bf31316121532048D"),
		V4StateView:     common.HexToAddress("0xA3c0c9b65baD0b08107Aa264b0f3dB444b867A71"),
	},
}

// Lookup returns the registered configuration of a chain.
func Lookup(chainID uint64) (Chain, error) {
	c, ok := chains[chainID]
	if !ok {
		return Chain{}, fmt.Errorf("%w: %d", model.ErrUnsupportedChain, chainID)
	}
	return c, nil
}

// SupportedChainIDs lists every registered chain.
func SupportedChainIDs() []uint64 {
	ids := make([]uint64, 0, len(chains))
	for id := range chains {
		ids = append(ids, id)
	}
	return ids
}

// Intermediates are the tokens multi-hop routes may pass through.
func (c Chain) Intermediates() []common.Address {
	return []common.Address{c.WETH, c.USDC}
}

// WithOverrides replaces contract addresses by key, e.g. "universal-router=0x...".
func (c Chain) WithOverrides(overrides map[string]string) (Chain, error) {
	for key, value := range overrides {
		if !common.IsHexAddress(value) {
			return Chain{}, fmt.Errorf("invalid address for %s: %s", key, value)
		}
		addr := common.HexToAddress(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "weth":
			c.WETH = addr
		case "usdc":
			c.USDC = addr
		case "universal-router":
			c.UniversalRouter = addr
		case "permit2":
			c.Permit2 = addr
		case "v2-router":
			c.V2Router = addr
		case "v2-factory":
			c.V2Factory = addr
		case "v3-factory":
			c.V3Factory = addr
		case "v3-quoter":
			c.V3QuoterV2 = addr
		case "v4-pool-manager":
			c.V4PoolManager = addr
		case "v4-quoter":
			c.V4Quoter = addr
		case "v4-state-view":
			c.V4StateView = addr
		default:
			return Chain{}, fmt.Errorf("unknown contract override: %s", key)
		}
	}
	return c, nil
}
