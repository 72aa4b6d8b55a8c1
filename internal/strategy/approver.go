package strategy

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/WouterSls/evm-trading-engine/internal/dex"
	"github.com/WouterSls/evm-trading-engine/internal/model"
)

const exactPermitTTL = 30 * 24 * time.Hour

var (
	maxUint160 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
	maxUint48  = uint64(1<<48 - 1)
)

type approvalKey struct {
	owner   common.Address
	token   common.Address
	spender common.Address
}

// Approver decides whether an allowance must be granted before a swap.
// With the infinite policy it approves the maximum once and, after reading a
// sufficient allowance on chain, skips later checks for that owner, token and
// spender. With the exact policy it approves only the amount needed and
// re-reads the allowance every time. An approval that was returned but never
// mined is not remembered.
type Approver struct {
	caller   dex.Caller
	permit2  common.Address
	infinite bool
	now      func() time.Time

	mu      sync.Mutex
	granted map[approvalKey]struct{}
}

func NewApprover(caller dex.Caller, permit2 common.Address, infinite bool, now func() time.Time) *Approver {
	if now == nil {
		now = time.Now
	}
	return &Approver{
		caller:   caller,
		permit2:  permit2,
		infinite: infinite,
		now:      now,
		granted:  make(map[approvalKey]struct{}),
	}
}

func (a *Approver) Infinite() bool { return a.infinite }

// EnsureApproval checks the ERC20 allowance of spender directly.
func (a *Approver) EnsureApproval(ctx context.Context, owner, token common.Address, amount *big.Int, spender common.Address) (*model.TransactionRequest, error) {
	if token == (common.Address{}) {
		return nil, nil
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: approval amount must be positive", model.ErrInvalidRequest)
	}
	key := approvalKey{owner: owner, token: token, spender: spender}
	if a.isGranted(key) {
		return nil, nil
	}

	allowance, err := dex.Allowance(ctx, a.caller, token, owner, spender)
	if err != nil {
		return nil, fmt.Errorf("read allowance: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		a.grant(key)
		return nil, nil
	}

	value := amount
	if a.infinite {
		value = math.MaxBig256
	}
	data, err := dex.PackApprove(spender, value)
	if err != nil {
		return nil, fmt.Errorf("pack approve: %w", err)
	}
	to := token
	return &model.TransactionRequest{To: &to, Data: data}, nil
}

// EnsurePermit2Approval walks the two allowances a Permit2-based router needs:
// the token must approve Permit2, then Permit2 must allow spender. It returns
// the first missing step; call again after executing it.
func (a *Approver) EnsurePermit2Approval(ctx context.Context, owner, token common.Address, amount *big.Int, spender common.Address) (*model.TransactionRequest, error) {
	if token == (common.Address{}) {
		return nil, nil
	}
	tx, err := a.EnsureApproval(ctx, owner, token, amount, a.permit2)
	if err != nil || tx != nil {
		return tx, err
	}

	key := approvalKey{owner: owner, token: token, spender: spender}
	if a.isGranted(key) {
		return nil, nil
	}
	now := uint64(a.now().Unix())
	current, err := dex.ReadPermit2Allowance(ctx, a.caller, a.permit2, owner, token, spender)
	if err != nil {
		return nil, fmt.Errorf("read permit2 allowance: %w", err)
	}
	if current.Amount.Cmp(amount) >= 0 && current.Expiration > now {
		a.grant(key)
		return nil, nil
	}

	value, expiration := amount, now+uint64(exactPermitTTL/time.Second)
	if a.infinite {
		value, expiration = maxUint160, maxUint48
	}
	data, err := dex.PackPermit2Approve(token, spender, value, expiration)
	if err != nil {
		return nil, fmt.Errorf("pack permit2 approve: %w", err)
	}
	to := a.permit2
	return &model.TransactionRequest{To: &to, Data: data}, nil
}

func (a *Approver) isGranted(key approvalKey) bool {
	if !a.infinite {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.granted[key]
	return ok
}

func (a *Approver) grant(key approvalKey) {
	if !a.infinite {
		return
	}
	a.mu.Lock()
	a.granted[key] = struct{}{}
	a.mu.Unlock()
}
