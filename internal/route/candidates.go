package route

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/tickmath"
)

// Candidates lists every route quoter should price for the pair: one direct route per
// fee tier and one two-hop route per intermediate and fee combination.
func Candidates(quoter Quoter, tokenIn, tokenOut common.Address, intermediates []common.Address, fees []uint32) []Candidate {
	if tokenIn == tokenOut || len(fees) == 0 {
		return nil
	}
	var out []Candidate
	for _, fee := range fees {
		key, err := tickmath.NewPoolKey(tokenIn, tokenOut, fee, common.Address{})
		if err != nil {
			continue
		}
		out = append(out, Candidate{
			Quoter: quoter,
			Route: model.Route{
				Path:    []common.Address{tokenIn, tokenOut},
				Fees:    []uint32{fee},
				PoolKey: &key,
			},
		})
	}

	seen := make(map[common.Address]struct{}, len(intermediates))
	for _, mid := range intermediates {
		if mid == tokenIn || mid == tokenOut {
			continue
		}
		if _, ok := seen[mid]; ok {
			continue
		}
		seen[mid] = struct{}{}
		for _, first := range fees {
			for _, second := range fees {
				out = append(out, Candidate{
					Quoter: quoter,
					Route: model.Route{
						Path: []common.Address{tokenIn, mid, tokenOut},
						Fees: []uint32{first, second},
					},
				})
			}
		}
	}
	return out
}
