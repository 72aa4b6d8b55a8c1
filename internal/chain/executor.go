package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

const defaultPollInterval = 2 * time.Second

// Backend is the node surface the executor signs and submits against.
// *Client implements it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
}

var _ Backend = (*Client)(nil)

// Executor signs transaction requests with a single key and tracks them until mined.
type Executor struct {
	backend      Backend
	key          *ecdsa.PrivateKey
	from         common.Address
	pollInterval time.Duration
	logger       *zap.Logger
}

func NewExecutor(backend Backend, privateKeyHex string, logger *zap.Logger) (*Executor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Executor{
		backend:      backend,
		key:          key,
		from:         crypto.PubkeyToAddress(key.PublicKey),
		pollInterval: defaultPollInterval,
		logger:       logger,
	}, nil
}

// From returns the signing address.
func (e *Executor) From() common.Address {
	return e.from
}

// Submit prices, signs and broadcasts req as an EIP-1559 transaction.
func (e *Executor) Submit(ctx context.Context, req model.TransactionRequest) (common.Hash, error) {
	if req.IsEmpty() || req.To == nil {
		return common.Hash{}, fmt.Errorf("%w: empty transaction", model.ErrInvalidRequest)
	}

	chainID, err := e.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}
	nonce, err := e.backend.PendingNonceAt(ctx, e.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}
	tip, err := e.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas tip: %w", err)
	}
	head, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	gas, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  e.from,
		To:    req.To,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}

	gas = padGas(gas)
	maxFee := feeCap(head.BaseFee, tip)
	if err := e.checkBalance(ctx, gas, maxFee, value); err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gas,
		To:        req.To,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), e.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send: %w", err)
	}

	e.logger.Info("transaction submitted",
		zap.String("hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", signed.Gas()),
	)
	return signed.Hash(), nil
}

// WaitMined polls for the receipt of hash until it is mined or ctx ends.
func (e *Executor) WaitMined(ctx context.Context, hash common.Hash) (model.ExecutionResult, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return model.ExecutionResult{}, ctx.Err()
		case <-timer.C:
		}

		receipt, err := e.backend.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return e.result(ctx, receipt)
		case errors.Is(err, ethereum.NotFound):
		default:
			e.logger.Warn("receipt lookup failed", zap.String("hash", hash.Hex()), zap.Error(err))
		}
		timer.Reset(e.pollInterval)
	}
}

// checkBalance fails when the sender cannot cover value plus the worst-case gas bill.
func (e *Executor) checkBalance(ctx context.Context, gas uint64, maxFee, value *big.Int) error {
	balance, err := e.backend.BalanceAt(ctx, e.from)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	need := new(big.Int).Mul(new(big.Int).SetUint64(gas), maxFee)
	need.Add(need, value)
	if balance == nil || balance.Cmp(need) < 0 {
		return fmt.Errorf("%w: have %v wei, need %s wei", model.ErrInsufficientFunds, balance, need)
	}
	return nil
}

// result converts a mined receipt. A missing block timestamp leaves BlockTime zero;
// the transaction is mined either way and must not be reported as failed.
func (e *Executor) result(ctx context.Context, receipt *types.Receipt) (model.ExecutionResult, error) {
	res := model.ExecutionResult{
		TxHash:            receipt.TxHash,
		GasUsed:           receipt.GasUsed,
		EffectiveGasPrice: receipt.EffectiveGasPrice,
		Success:           receipt.Status == types.ReceiptStatusSuccessful,
		Logs:              receipt.Logs,
	}
	if receipt.BlockNumber != nil {
		res.BlockNumber = receipt.BlockNumber.Uint64()
		ts, err := e.backend.BlockTimestamp(ctx, res.BlockNumber)
		if err != nil {
			e.logger.Warn("block timestamp lookup failed",
				zap.String("hash", receipt.TxHash.Hex()),
				zap.Uint64("block", res.BlockNumber),
				zap.Error(err),
			)
		} else {
			res.BlockTime = ts
		}
	}
	return res, nil
}

// padGas adds a 20% margin to an estimate.
func padGas(estimate uint64) uint64 {
	return estimate + estimate/5
}

// feeCap allows the base fee to double before the transaction stops being includable.
func feeCap(baseFee, tip *big.Int) *big.Int {
	if baseFee == nil {
		return new(big.Int).Set(tip)
	}
	out := new(big.Int).Mul(baseFee, big.NewInt(2))
	return out.Add(out, tip)
}
