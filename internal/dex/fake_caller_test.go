package dex

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type callHandler func(to common.Address, args []interface{}) ([]interface{}, error)

type callEntry struct {
	method abi.Method
	fn     callHandler
}

// fakeCaller answers eth_calls by selector, packing handler results with the method outputs.
// Unknown selectors revert.
type fakeCaller struct {
	mu       sync.Mutex
	handlers map[[4]byte]callEntry
	calls    map[string]int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{handlers: make(map[[4]byte]callEntry), calls: make(map[string]int)}
}

func (f *fakeCaller) on(t *testing.T, parsed abi.ABI, name string, fn callHandler) {
	t.Helper()
	method, ok := parsed.Methods[name]
	if !ok {
		t.Fatalf("method %s not in abi", name)
	}
	var selector [4]byte
	copy(selector[:], method.ID)
	f.mu.Lock()
	f.handlers[selector] = callEntry{method: method, fn: fn}
	f.mu.Unlock()
}

func (f *fakeCaller) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errors.New("short calldata")
	}
	var selector [4]byte
	copy(selector[:], msg.Data[:4])

	f.mu.Lock()
	entry, ok := f.handlers[selector]
	if ok {
		f.calls[entry.method.Name]++
	}
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("execution reverted")
	}

	args, err := entry.method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := entry.fn(*msg.To, args)
	if err != nil {
		return nil, err
	}
	return entry.method.Outputs.Pack(out...)
}

func returns(values ...interface{}) callHandler {
	return func(common.Address, []interface{}) ([]interface{}, error) {
		return values, nil
	}
}

func fails(err error) callHandler {
	return func(common.Address, []interface{}) ([]interface{}, error) {
		return nil, err
	}
}

// tupleField reads a field of an unpacked tuple argument.
func tupleField(v interface{}, name string) interface{} {
	return reflect.ValueOf(v).FieldByName(name).Interface()
}

func mustABI(t *testing.T, get func() (abi.ABI, error)) abi.ABI {
	t.Helper()
	parsed, err := get()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return parsed
}
