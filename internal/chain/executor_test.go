package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeBackend struct {
	chainID  *big.Int
	nonce    uint64
	tip      *big.Int
	baseFee  *big.Int
	gas      uint64
	sent     []*types.Transaction
	receipts []receiptResult
	polls    int
	ts       uint64
	tsErr    error
	balance  *big.Int
}

type receiptResult struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return f.chainID, nil }
func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return f.nonce, nil
}
func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return f.tip, nil }
func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: f.baseFee}, nil
}
func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return f.gas, nil
}
func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.sent = append(f.sent, tx)
	return nil
}
func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	r := f.receipts[f.polls]
	if f.polls < len(f.receipts)-1 {
		f.polls++
	}
	return r.receipt, r.err
}
func (f *fakeBackend) BlockTimestamp(context.Context, uint64) (uint64, error) {
	return f.ts, f.tsErr
}
func (f *fakeBackend) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	return f.balance, nil
}

func newTestExecutor(t *testing.T, backend Backend) *Executor {
	t.Helper()
	exec, err := NewExecutor(backend, "0x"+testKey, nil)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	exec.pollInterval = time.Millisecond
	return exec
}

func TestNewExecutorDerivesAddress(t *testing.T) {
	key, _ := crypto.HexToECDSA(testKey)
	exec := newTestExecutor(t, &fakeBackend{})
	if exec.From() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("unexpected from address %s", exec.From().Hex())
	}
	if _, err := NewExecutor(&fakeBackend{}, "not-a-key", nil); err == nil {
		t.Fatalf("expected error for malformed key")
	}
}

func TestSubmitSignsDynamicFeeTx(t *testing.T) {
	backend := &fakeBackend{
		chainID: big.NewInt(8453),
		nonce:   7,
		tip:     big.NewInt(1_000_000),
		baseFee: big.NewInt(50_000_000),
		gas:     100_000,
		balance: big.NewInt(1e18),
	}
	exec := newTestExecutor(t, backend)
	to := common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD")

	hash, err := exec.Submit(context.Background(), model.TransactionRequest{
		To:    &to,
		Data:  []byte{0x35, 0x93, 0x56, 0x4c},
		Value: big.NewInt(42),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one transaction, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Hash() != hash {
		t.Fatalf("hash mismatch")
	}
	if tx.Type() != types.DynamicFeeTxType {
		t.Fatalf("unexpected tx type %d", tx.Type())
	}
	if tx.Gas() != 120_000 {
		t.Fatalf("expected padded gas 120000, got %d", tx.Gas())
	}
	if tx.Nonce() != 7 || tx.Value().Int64() != 42 || *tx.To() != to {
		t.Fatalf("unexpected tx fields nonce=%d value=%s to=%s", tx.Nonce(), tx.Value(), tx.To().Hex())
	}
	if tx.GasFeeCap().Int64() != 101_000_000 {
		t.Fatalf("unexpected fee cap %s", tx.GasFeeCap())
	}
	sender, err := types.Sender(types.LatestSignerForChainID(backend.chainID), tx)
	if err != nil {
		t.Fatalf("recover sender: %v", err)
	}
	if sender != exec.From() {
		t.Fatalf("sender mismatch: %s", sender.Hex())
	}
}

func TestSubmitRejectsEmptyRequest(t *testing.T) {
	exec := newTestExecutor(t, &fakeBackend{})
	_, err := exec.Submit(context.Background(), model.TransactionRequest{})
	if !errors.Is(err, model.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestWaitMinedPollsUntilReceipt(t *testing.T) {
	hash := common.HexToHash("0xabc")
	backend := &fakeBackend{
		ts: 1_700_000_000,
		receipts: []receiptResult{
			{err: ethereum.NotFound},
			{err: errors.New("connection reset")},
			{receipt: &types.Receipt{
				TxHash:            hash,
				Status:            types.ReceiptStatusSuccessful,
				BlockNumber:       big.NewInt(19_000_000),
				GasUsed:           150_000,
				EffectiveGasPrice: big.NewInt(30_000_000),
			}},
		},
	}
	exec := newTestExecutor(t, backend)

	res, err := exec.WaitMined(context.Background(), hash)
	if err != nil {
		t.Fatalf("WaitMined: %v", err)
	}
	if !res.Success || res.BlockNumber != 19_000_000 || res.GasUsed != 150_000 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.BlockTime != 1_700_000_000 {
		t.Fatalf("unexpected block time %d", res.BlockTime)
	}
	if backend.polls != 2 {
		t.Fatalf("expected 3 receipt lookups, got index %d", backend.polls)
	}
}

func TestSubmitRejectsInsufficientBalance(t *testing.T) {
	backend := &fakeBackend{
		chainID: big.NewInt(8453),
		tip:     big.NewInt(1_000_000),
		baseFee: big.NewInt(50_000_000),
		gas:     100_000,
		// 120000 gas at 101000000 wei plus value 42, one wei short.
		balance: big.NewInt(12_120_000_000_041),
	}
	exec := newTestExecutor(t, backend)
	to := common.HexToAddress("0x3fC91A3afd70395Cd496C647d5a6CC9D4B2b7FAD")

	_, err := exec.Submit(context.Background(), model.TransactionRequest{To: &to, Data: []byte{0x01}, Value: big.NewInt(42)})
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if len(backend.sent) != 0 {
		t.Fatalf("nothing should be sent, got %d", len(backend.sent))
	}

	backend.balance = big.NewInt(12_120_000_000_042)
	if _, err := exec.Submit(context.Background(), model.TransactionRequest{To: &to, Data: []byte{0x01}, Value: big.NewInt(42)}); err != nil {
		t.Fatalf("exact balance should be enough: %v", err)
	}
}

func TestWaitMinedKeepsSuccessWithoutBlockTime(t *testing.T) {
	hash := common.HexToHash("0xdef")
	backend := &fakeBackend{
		tsErr: errors.New("header not found"),
		receipts: []receiptResult{{receipt: &types.Receipt{
			TxHash:            hash,
			Status:            types.ReceiptStatusSuccessful,
			BlockNumber:       big.NewInt(19_000_001),
			GasUsed:           90_000,
			EffectiveGasPrice: big.NewInt(1),
		}}},
	}
	exec := newTestExecutor(t, backend)

	res, err := exec.WaitMined(context.Background(), hash)
	if err != nil {
		t.Fatalf("a mined transaction must not fail on a timestamp lookup: %v", err)
	}
	if !res.Success || res.BlockNumber != 19_000_001 || res.BlockTime != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestWaitMinedHonoursContext(t *testing.T) {
	backend := &fakeBackend{receipts: []receiptResult{{err: ethereum.NotFound}}}
	exec := newTestExecutor(t, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := exec.WaitMined(ctx, common.Hash{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCheckChainID(t *testing.T) {
	if err := checkChainID(big.NewInt(1), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := checkChainID(big.NewInt(8453), 1); !errors.Is(err, model.ErrNetworkMismatch) {
		t.Fatalf("expected ErrNetworkMismatch, got %v", err)
	}
	if err := checkChainID(nil, 1); !errors.Is(err, model.ErrNetworkMismatch) {
		t.Fatalf("expected ErrNetworkMismatch for nil id, got %v", err)
	}
}

func TestFeeCapWithoutBaseFee(t *testing.T) {
	if got := feeCap(nil, big.NewInt(5)); got.Int64() != 5 {
		t.Fatalf("expected tip as fee cap, got %s", got)
	}
}
