package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/WouterSls/evm-trading-engine/internal/storage/postgres"
)

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadCommand(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	id, _ := cmd.Flags().GetString("id")
	if id == "" {
		return fmt.Errorf("trade id is required")
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	state, ok, err := store.TradeState(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("trade %s not found", id)
	}
	return writeJSON(state)
}
