package encoder

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	addressLength = common.AddressLength
	feeLength     = 3
	hopLength     = addressLength + feeLength
	maxFee        = 1<<24 - 1
)

// EncodePath packs token, fee, token, ... as the v3 router expects:
// 20-byte addresses interleaved with 3-byte big-endian fees.
func EncodePath(tokens []common.Address, fees []uint32) ([]byte, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("path needs at least two tokens, got %d", len(tokens))
	}
	if len(fees) != len(tokens)-1 {
		return nil, fmt.Errorf("path has %d fees for %d tokens", len(fees), len(tokens))
	}

	out := make([]byte, 0, addressLength+len(fees)*hopLength)
	for i, token := range tokens {
		out = append(out, token.Bytes()...)
		if i == len(fees) {
			break
		}
		fee := fees[i]
		if fee > maxFee {
			return nil, fmt.Errorf("fee %d does not fit uint24", fee)
		}
		out = append(out, byte(fee>>16), byte(fee>>8), byte(fee))
	}
	return out, nil
}

// DecodePath is the inverse of EncodePath.
func DecodePath(path []byte) ([]common.Address, []uint32, error) {
	if len(path) < addressLength+hopLength || (len(path)-addressLength)%hopLength != 0 {
		return nil, nil, fmt.Errorf("invalid path length %d", len(path))
	}
	hops := (len(path) - addressLength) / hopLength
	tokens := make([]common.Address, 0, hops+1)
	fees := make([]uint32, 0, hops)

	offset := 0
	for i := 0; i < hops; i++ {
		tokens = append(tokens, common.BytesToAddress(path[offset:offset+addressLength]))
		offset += addressLength
		fee := uint32(path[offset])<<16 | uint32(path[offset+1])<<8 | uint32(path[offset+2])
		fees = append(fees, fee)
		offset += feeLength
	}
	tokens = append(tokens, common.BytesToAddress(path[offset:offset+addressLength]))
	return tokens, fees, nil
}
