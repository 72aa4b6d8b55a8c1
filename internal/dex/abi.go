package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const v3PoolABIJSON = `[
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fee", "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "tickSpacing", "outputs": [{"internalType": "int24", "name": "", "type": "int24"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "liquidity", "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "slot0", "outputs": [
    {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
    {"internalType": "int24", "name": "tick", "type": "int24"},
    {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
    {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
    {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
    {"internalType": "bool", "name": "unlocked", "type": "bool"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "int24", "name": "tick", "type": "int24"}], "name": "ticks", "outputs": [
    {"internalType": "uint128", "name": "liquidityGross", "type": "uint128"},
    {"internalType": "int128", "name": "liquidityNet", "type": "int128"},
    {"internalType": "uint256", "name": "feeGrowthOutside0X128", "type": "uint256"},
    {"internalType": "uint256", "name": "feeGrowthOutside1X128", "type": "uint256"},
    {"internalType": "int56", "name": "tickCumulativeOutside", "type": "int56"},
    {"internalType": "uint160", "name": "secondsPerLiquidityOutsideX128", "type": "uint160"},
    {"internalType": "uint32", "name": "secondsOutside", "type": "uint32"},
    {"internalType": "bool", "name": "initialized", "type": "bool"}
  ], "stateMutability": "view", "type": "function"}
]`

const v3FactoryABIJSON = `[
  {"inputs": [
    {"internalType": "address", "name": "tokenA", "type": "address"},
    {"internalType": "address", "name": "tokenB", "type": "address"},
    {"internalType": "uint24", "name": "fee", "type": "uint24"}
  ], "name": "getPool", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

const quoterV2ABIJSON = `[
  {"inputs": [
    {"internalType": "bytes", "name": "path", "type": "bytes"},
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"}
  ], "name": "quoteExactInput", "outputs": [
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
    {"internalType": "uint160[]", "name": "sqrtPriceX96AfterList", "type": "uint160[]"},
    {"internalType": "uint32[]", "name": "initializedTicksCrossedList", "type": "uint32[]"},
    {"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"components": [
    {"internalType": "address", "name": "tokenIn", "type": "address"},
    {"internalType": "address", "name": "tokenOut", "type": "address"},
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
    {"internalType": "uint24", "name": "fee", "type": "uint24"},
    {"internalType": "uint160", "name": "sqrtPriceLimitX96", "type": "uint160"}
  ], "internalType": "struct IQuoterV2.QuoteExactInputSingleParams", "name": "params", "type": "tuple"}],
  "name": "quoteExactInputSingle", "outputs": [
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
    {"internalType": "uint160", "name": "sqrtPriceX96After", "type": "uint160"},
    {"internalType": "uint32", "name": "initializedTicksCrossed", "type": "uint32"},
    {"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"}
]`

const v4QuoterABIJSON = `[
  {"inputs": [{"components": [
    {"components": [
      {"internalType": "Currency", "name": "currency0", "type": "address"},
      {"internalType": "Currency", "name": "currency1", "type": "address"},
      {"internalType": "uint24", "name": "fee", "type": "uint24"},
      {"internalType": "int24", "name": "tickSpacing", "type": "int24"},
      {"internalType": "contract IHooks", "name": "hooks", "type": "address"}
    ], "internalType": "struct PoolKey", "name": "poolKey", "type": "tuple"},
    {"internalType": "bool", "name": "zeroForOne", "type": "bool"},
    {"internalType": "uint128", "name": "exactAmount", "type": "uint128"},
    {"internalType": "bytes", "name": "hookData", "type": "bytes"}
  ], "internalType": "struct IV4Quoter.QuoteExactSingleParams", "name": "params", "type": "tuple"}],
  "name": "quoteExactInputSingle", "outputs": [
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
    {"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"components": [
    {"internalType": "Currency", "name": "exactCurrency", "type": "address"},
    {"components": [
      {"internalType": "Currency", "name": "intermediateCurrency", "type": "address"},
      {"internalType": "uint24", "name": "fee", "type": "uint24"},
      {"internalType": "int24", "name": "tickSpacing", "type": "int24"},
      {"internalType": "contract IHooks", "name": "hooks", "type": "address"},
      {"internalType": "bytes", "name": "hookData", "type": "bytes"}
    ], "internalType": "struct PathKey[]", "name": "path", "type": "tuple[]"},
    {"internalType": "uint128", "name": "exactAmount", "type": "uint128"}
  ], "internalType": "struct IV4Quoter.QuoteExactParams", "name": "params", "type": "tuple"}],
  "name": "quoteExactInput", "outputs": [
    {"internalType": "uint256", "name": "amountOut", "type": "uint256"},
    {"internalType": "uint256", "name": "gasEstimate", "type": "uint256"}
  ], "stateMutability": "nonpayable", "type": "function"}
]`

const stateViewABIJSON = `[
  {"inputs": [{"internalType": "PoolId", "name": "poolId", "type": "bytes32"}], "name": "getSlot0", "outputs": [
    {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
    {"internalType": "int24", "name": "tick", "type": "int24"},
    {"internalType": "uint24", "name": "protocolFee", "type": "uint24"},
    {"internalType": "uint24", "name": "lpFee", "type": "uint24"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [{"internalType": "PoolId", "name": "poolId", "type": "bytes32"}], "name": "getLiquidity", "outputs": [
    {"internalType": "uint128", "name": "liquidity", "type": "uint128"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"internalType": "PoolId", "name": "poolId", "type": "bytes32"},
    {"internalType": "int24", "name": "tick", "type": "int24"}
  ], "name": "getTickInfo", "outputs": [
    {"internalType": "uint128", "name": "liquidityGross", "type": "uint128"},
    {"internalType": "int128", "name": "liquidityNet", "type": "int128"},
    {"internalType": "uint256", "name": "feeGrowthOutside0X128", "type": "uint256"},
    {"internalType": "uint256", "name": "feeGrowthOutside1X128", "type": "uint256"}
  ], "stateMutability": "view", "type": "function"}
]`

const v2RouterABIJSON = `[
  {"inputs": [
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
    {"internalType": "address[]", "name": "path", "type": "address[]"}
  ], "name": "getAmountsOut", "outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
    {"internalType": "address[]", "name": "path", "type": "address[]"},
    {"internalType": "address", "name": "to", "type": "address"},
    {"internalType": "uint256", "name": "deadline", "type": "uint256"}
  ], "name": "swapExactETHForTokens", "outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}], "stateMutability": "payable", "type": "function"},
  {"inputs": [
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
    {"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
    {"internalType": "address[]", "name": "path", "type": "address[]"},
    {"internalType": "address", "name": "to", "type": "address"},
    {"internalType": "uint256", "name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForTokens", "outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"internalType": "uint256", "name": "amountIn", "type": "uint256"},
    {"internalType": "uint256", "name": "amountOutMin", "type": "uint256"},
    {"internalType": "address[]", "name": "path", "type": "address[]"},
    {"internalType": "address", "name": "to", "type": "address"},
    {"internalType": "uint256", "name": "deadline", "type": "uint256"}
  ], "name": "swapExactTokensForETH", "outputs": [{"internalType": "uint256[]", "name": "amounts", "type": "uint256[]"}], "stateMutability": "nonpayable", "type": "function"}
]`

const v2FactoryABIJSON = `[
  {"inputs": [
    {"internalType": "address", "name": "tokenA", "type": "address"},
    {"internalType": "address", "name": "tokenB", "type": "address"}
  ], "name": "getPair", "outputs": [{"internalType": "address", "name": "pair", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

const v2PairABIJSON = `[
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getReserves", "outputs": [
    {"internalType": "uint112", "name": "reserve0", "type": "uint112"},
    {"internalType": "uint112", "name": "reserve1", "type": "uint112"},
    {"internalType": "uint32", "name": "blockTimestampLast", "type": "uint32"}
  ], "stateMutability": "view", "type": "function"}
]`

const permit2ABIJSON = `[
  {"inputs": [
    {"internalType": "address", "name": "user", "type": "address"},
    {"internalType": "address", "name": "token", "type": "address"},
    {"internalType": "address", "name": "spender", "type": "address"}
  ], "name": "allowance", "outputs": [
    {"internalType": "uint160", "name": "amount", "type": "uint160"},
    {"internalType": "uint48", "name": "expiration", "type": "uint48"},
    {"internalType": "uint48", "name": "nonce", "type": "uint48"}
  ], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "token", "type": "address"},
    {"internalType": "address", "name": "spender", "type": "address"},
    {"internalType": "uint160", "name": "amount", "type": "uint160"},
    {"internalType": "uint48", "name": "expiration", "type": "uint48"}
  ], "name": "approve", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

// lazyABI parses an ABI JSON definition once on first use.
type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	v3PoolABI    = &lazyABI{json: v3PoolABIJSON}
	v3FactoryABI = &lazyABI{json: v3FactoryABIJSON}
	quoterV2ABI  = &lazyABI{json: quoterV2ABIJSON}
	v4QuoterABI  = &lazyABI{json: v4QuoterABIJSON}
	stateViewABI = &lazyABI{json: stateViewABIJSON}
	v2RouterABI  = &lazyABI{json: v2RouterABIJSON}
	v2FactoryABI = &lazyABI{json: v2FactoryABIJSON}
	v2PairABI    = &lazyABI{json: v2PairABIJSON}
	permit2ABI   = &lazyABI{json: permit2ABIJSON}
)

func V3PoolABI() (abi.ABI, error)    { return v3PoolABI.get() }
func V3FactoryABI() (abi.ABI, error) { return v3FactoryABI.get() }
func QuoterV2ABI() (abi.ABI, error)  { return quoterV2ABI.get() }
func V4QuoterABI() (abi.ABI, error)  { return v4QuoterABI.get() }
func StateViewABI() (abi.ABI, error) { return stateViewABI.get() }
func V2RouterABI() (abi.ABI, error)  { return v2RouterABI.get() }
func V2FactoryABI() (abi.ABI, error) { return v2FactoryABI.get() }
func V2PairABI() (abi.ABI, error)    { return v2PairABI.get() }
func Permit2ABI() (abi.ABI, error)   { return permit2ABI.get() }
