package dex

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

const defaultTokenCacheSize = 1024

// TokenRegistry resolves token metadata, caching results. Metadata never changes, quotes are not stored here.
type TokenRegistry struct {
	caller Caller
	cache  *lru.Cache[common.Address, model.TokenMeta]
	logger *zap.Logger
}

func NewTokenRegistry(caller Caller, size int, logger *zap.Logger) (*TokenRegistry, error) {
	if size <= 0 {
		size = defaultTokenCacheSize
	}
	cache, err := lru.New[common.Address, model.TokenMeta](size)
	if err != nil {
		return nil, fmt.Errorf("create token cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenRegistry{caller: caller, cache: cache, logger: logger}, nil
}

// Set seeds the cache, used for well-known tokens.
func (r *TokenRegistry) Set(meta model.TokenMeta) {
	r.cache.Add(meta.Address, meta)
}

// Resolve returns metadata for token; the zero address is the native asset.
func (r *TokenRegistry) Resolve(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if token == (common.Address{}) {
		return model.NativeTokenMeta(), nil
	}
	if meta, ok := r.cache.Get(token); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, r.caller, token, r.logger)
	if err != nil {
		return model.TokenMeta{}, err
	}
	r.cache.Add(token, meta)
	return meta, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls, falling back to bytes32 symbol/name.
func FetchTokenMeta(ctx context.Context, caller Caller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token}

	stringABI, err := ERC20ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	call := func(method string, parsed abi.ABI) ([]interface{}, error) {
		return callMethod(ctx, caller, token, parsed, method)
	}

	values, err := call("decimals", stringABI)
	if err != nil {
		return meta, fmt.Errorf("token %s: %w", token.Hex(), err)
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := call("symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := call("symbol", bytes32ABI); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := call("name", stringABI); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := call("name", bytes32ABI); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
