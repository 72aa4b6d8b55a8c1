package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Route is an ordered hop path with one fee tier per hop.
type Route struct {
	Path        []common.Address `json:"path"`
	Fees        []uint32         `json:"fees"`
	EncodedPath hexutil.Bytes    `json:"encoded_path,omitempty"`
	PoolKey     *PoolKey         `json:"pool_key,omitempty"`
}

// EmptyRoute is returned when no venue produced a usable quote.
func EmptyRoute() Route {
	return Route{Path: []common.Address{}, Fees: []uint32{}}
}

func (r Route) IsEmpty() bool {
	return len(r.Path) == 0
}

func (r Route) Hops() int {
	if len(r.Path) < 2 {
		return 0
	}
	return len(r.Path) - 1
}

func (r Route) TokenIn() common.Address {
	if len(r.Path) == 0 {
		return common.Address{}
	}
	return r.Path[0]
}

func (r Route) TokenOut() common.Address {
	if len(r.Path) == 0 {
		return common.Address{}
	}
	return r.Path[len(r.Path)-1]
}

// TotalFee sums the fee tiers of every hop.
func (r Route) TotalFee() uint64 {
	var total uint64
	for _, fee := range r.Fees {
		total += uint64(fee)
	}
	return total
}

// Validate checks the structural invariants of a non-empty route.
func (r Route) Validate() error {
	if len(r.Path) < 2 {
		return fmt.Errorf("route path needs at least two tokens, got %d", len(r.Path))
	}
	if len(r.Fees) != len(r.Path)-1 {
		return fmt.Errorf("route has %d fees for %d hops", len(r.Fees), len(r.Path)-1)
	}
	if (r.PoolKey != nil) != (r.Hops() == 1) {
		return fmt.Errorf("route pool key must be set exactly for single-hop routes")
	}
	return nil
}
