package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/WouterSls/evm-trading-engine/internal/encoder"
	"github.com/WouterSls/evm-trading-engine/internal/tickmath"
)

type pathOutput struct {
	Path   hexutil.Bytes    `json:"path"`
	Tokens []common.Address `json:"tokens"`
	Fees   []uint32         `json:"fees"`
}

func runPathEncode(cmd *cobra.Command, _ []string) error {
	tokenFlags, _ := cmd.Flags().GetStringSlice("tokens")
	feeFlags, _ := cmd.Flags().GetUintSlice("fees")

	tokens, err := parseAddresses(tokenFlags)
	if err != nil {
		return err
	}
	fees := make([]uint32, 0, len(feeFlags))
	for _, fee := range feeFlags {
		if _, err := tickmath.TickSpacingFor(uint32(fee)); err != nil {
			return err
		}
		fees = append(fees, uint32(fee))
	}

	path, err := encoder.EncodePath(tokens, fees)
	if err != nil {
		return err
	}
	return writeJSON(pathOutput{Path: path, Tokens: tokens, Fees: fees})
}

func runPathDecode(cmd *cobra.Command, _ []string) error {
	raw, _ := cmd.Flags().GetString("hex")
	path, err := hexutil.Decode(raw)
	if err != nil {
		return fmt.Errorf("invalid path hex: %w", err)
	}
	tokens, fees, err := encoder.DecodePath(path)
	if err != nil {
		return err
	}
	return writeJSON(pathOutput{Path: path, Tokens: tokens, Fees: fees})
}
