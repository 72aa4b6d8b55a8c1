package storage

import (
	"context"
	"errors"

	"github.com/WouterSls/evm-trading-engine/internal/model"
)

// Storage defines a sink for trade lifecycle records.
type Storage interface {
	PutConfirmation(ctx context.Context, confirmation model.TradeConfirmation) error
	RecordTransition(ctx context.Context, transition model.TradeTransition) error
}

// Multi fans records out to every sink and joins their errors.
type Multi []Storage

func (m Multi) PutConfirmation(ctx context.Context, confirmation model.TradeConfirmation) error {
	var errs []error
	for _, s := range m {
		if err := s.PutConfirmation(ctx, confirmation); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RecordTransition(ctx context.Context, transition model.TradeTransition) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordTransition(ctx, transition); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
