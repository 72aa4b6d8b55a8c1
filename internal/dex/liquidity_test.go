package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// tickBook serves initialized ticks from a map and records the ticks read.
type tickBook struct {
	net  map[int32]int64
	read []int32
}

func (b *tickBook) info(_ context.Context, tick int32) (model.TickInfo, error) {
	b.read = append(b.read, tick)
	net, ok := b.net[tick]
	if !ok {
		return model.TickInfo{Tick: tick, LiquidityGross: big.NewInt(0), LiquidityNet: big.NewInt(0)}, nil
	}
	return model.TickInfo{Tick: tick, LiquidityGross: big.NewInt(1), LiquidityNet: big.NewInt(net), Initialized: true}, nil
}

func TestLiquidityAhead(t *testing.T) {
	state := model.PoolState{Tick: -73890, TickSpacing: 60, Liquidity: big.NewInt(1000)}
	cases := []struct {
		name     string
		down     bool
		net      map[int32]int64
		want     int64
		wantRead []int32
	}{
		{
			name:     "down crosses a lower bound",
			down:     true,
			net:      map[int32]int64{-73920: 600},
			want:     400,
			wantRead: []int32{-73920},
		},
		{
			name:     "up skips empty ticks",
			net:      map[int32]int64{-73800: -700},
			want:     300,
			wantRead: []int32{-73860, -73800},
		},
		{
			name:     "deeper range keeps in-range liquidity",
			down:     true,
			net:      map[int32]int64{-73920: -500},
			want:     1000,
			wantRead: []int32{-73920},
		},
		{
			name:     "nothing initialized within the walk",
			net:      map[int32]int64{-73500: -900},
			want:     1000,
			wantRead: []int32{-73860, -73800, -73740, -73680},
		},
	}
	for _, tc := range cases {
		book := &tickBook{net: tc.net}
		got, err := liquidityAhead(context.Background(), state, tc.down, book.info)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got.Int64() != tc.want {
			t.Fatalf("%s: liquidity %s != %d", tc.name, got, tc.want)
		}
		if len(book.read) != len(tc.wantRead) {
			t.Fatalf("%s: read ticks %v, want %v", tc.name, book.read, tc.wantRead)
		}
		for i := range tc.wantRead {
			if book.read[i] != tc.wantRead[i] {
				t.Fatalf("%s: read ticks %v, want %v", tc.name, book.read, tc.wantRead)
			}
		}
	}
}

func TestLiquidityAheadErrors(t *testing.T) {
	book := &tickBook{net: map[int32]int64{-73920: 5000}}
	state := model.PoolState{Tick: -73890, TickSpacing: 60, Liquidity: big.NewInt(1000)}
	if _, err := liquidityAhead(context.Background(), state, true, book.info); !errors.Is(err, model.ErrMalformedResponse) {
		t.Fatalf("crossing below zero liquidity should be malformed, got %v", err)
	}

	state.Liquidity = nil
	if _, err := liquidityAhead(context.Background(), state, true, book.info); !errors.Is(err, model.ErrMalformedResponse) {
		t.Fatalf("missing liquidity should be malformed, got %v", err)
	}

	state = model.PoolState{Tick: 10, TickSpacing: 0, Liquidity: big.NewInt(1)}
	if _, err := liquidityAhead(context.Background(), state, false, book.info); !errors.Is(err, model.ErrMalformedResponse) {
		t.Fatalf("zero spacing should be malformed, got %v", err)
	}
}
