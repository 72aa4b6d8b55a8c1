package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WouterSls/evm-trading-engine/internal/model"
	"github.com/WouterSls/evm-trading-engine/internal/storage"
)

var _ storage.Storage = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	trade_id   TEXT PRIMARY KEY,
	side       TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	state      TEXT NOT NULL,
	tx_hash    TEXT,
	error      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS trade_transitions (
	id       BIGSERIAL PRIMARY KEY,
	trade_id TEXT NOT NULL,
	state    TEXT NOT NULL,
	tx_hash  TEXT,
	error    TEXT,
	at       TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS trade_confirmations (
	trade_id                  TEXT PRIMARY KEY,
	side                      TEXT NOT NULL,
	strategy                  TEXT NOT NULL,
	chain_id                  BIGINT NOT NULL,
	tx_hash                   TEXT NOT NULL,
	confirmed_block           BIGINT NOT NULL,
	gas_cost                  NUMERIC NOT NULL,
	eth_price_usd             NUMERIC,
	token_spent               TEXT NOT NULL,
	amount_spent_raw          NUMERIC NOT NULL,
	amount_spent_formatted    TEXT NOT NULL,
	token_received            TEXT NOT NULL,
	amount_received_raw       NUMERIC NOT NULL,
	amount_received_formatted TEXT NOT NULL,
	path                      TEXT[] NOT NULL,
	confirmed_at              TEXT NOT NULL,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for trades.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the trade tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// RecordTransition appends the transition and moves the trade row to its state.
func (s *Store) RecordTransition(ctx context.Context, t model.TradeTransition) error {
	if t.TradeID == "" {
		return fmt.Errorf("trade id required")
	}
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO trade_transitions (trade_id, state, tx_hash, error, at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)
	`, t.TradeID, string(t.State), t.TxHash, t.Error, t.At)
	batch.Queue(`
		INSERT INTO trades (trade_id, side, strategy, state, tx_hash, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $7)
		ON CONFLICT (trade_id) DO UPDATE SET
			state = EXCLUDED.state,
			tx_hash = COALESCE(EXCLUDED.tx_hash, trades.tx_hash),
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`, t.TradeID, string(t.Side), t.Strategy, string(t.State), t.TxHash, t.Error, t.At)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutConfirmation inserts or updates a trade confirmation.
func (s *Store) PutConfirmation(ctx context.Context, c model.TradeConfirmation) error {
	path := make([]string, len(c.Path))
	for i, token := range c.Path {
		path[i] = token.Hex()
	}
	var ethPrice *string
	if c.EthPriceUSD != "" {
		ethPrice = &c.EthPriceUSD
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trade_confirmations (
			trade_id, side, strategy, chain_id, tx_hash, confirmed_block, gas_cost, eth_price_usd,
			token_spent, amount_spent_raw, amount_spent_formatted,
			token_received, amount_received_raw, amount_received_formatted,
			path, confirmed_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,now(),now())
		ON CONFLICT (trade_id)
		DO UPDATE SET
			tx_hash = EXCLUDED.tx_hash,
			confirmed_block = EXCLUDED.confirmed_block,
			gas_cost = EXCLUDED.gas_cost,
			eth_price_usd = EXCLUDED.eth_price_usd,
			amount_spent_raw = EXCLUDED.amount_spent_raw,
			amount_spent_formatted = EXCLUDED.amount_spent_formatted,
			amount_received_raw = EXCLUDED.amount_received_raw,
			amount_received_formatted = EXCLUDED.amount_received_formatted,
			confirmed_at = EXCLUDED.confirmed_at,
			updated_at = now()
	`,
		c.TradeID,
		string(c.Side),
		c.Strategy,
		int64(c.ChainID),
		c.TransactionHash.Hex(),
		int64(c.ConfirmedBlock),
		c.GasCost,
		ethPrice,
		c.TokenSpent.Hex(),
		c.AmountSpentRaw,
		c.AmountSpentFormatted,
		c.TokenReceived.Hex(),
		c.AmountReceivedRaw,
		c.AmountReceivedFormatted,
		path,
		c.ConfirmedAt,
	)
	return err
}

// TradeState returns the last recorded state of a trade.
func (s *Store) TradeState(ctx context.Context, tradeID string) (model.TradeTransition, bool, error) {
	if tradeID == "" {
		return model.TradeTransition{}, false, fmt.Errorf("trade id required")
	}
	var (
		t            model.TradeTransition
		side, state  string
		txHash, errs *string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT trade_id, side, strategy, state, tx_hash, error, updated_at
		FROM trades WHERE trade_id=$1
	`, tradeID)
	if err := row.Scan(&t.TradeID, &side, &t.Strategy, &state, &txHash, &errs, &t.At); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TradeTransition{}, false, nil
		}
		return model.TradeTransition{}, false, err
	}
	t.Side = model.Side(side)
	t.State = model.TradeState(state)
	if txHash != nil {
		t.TxHash = *txHash
	}
	if errs != nil {
		t.Error = *errs
	}
	return t, true, nil
}
