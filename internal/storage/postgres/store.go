package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexArb/internal/model"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store persists decision records to Postgres.
type Store struct {
	db DB
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{db: pool}, nil
}

// NewStoreWithDB wraps an existing pool.
func NewStoreWithDB(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

const createDecisionsTable = `
	CREATE TABLE IF NOT EXISTS arbitrage_decisions (
		id BIGSERIAL PRIMARY KEY,
		block_number BIGINT NOT NULL,
		outcome TEXT NOT NULL,
		asset TEXT,
		symbol TEXT,
		direction TEXT,
		profit NUMERIC,
		expected NUMERIC,
		gas_cost NUMERIC,
		amount_other NUMERIC,
		tx_hash TEXT,
		error TEXT,
		decided_at TIMESTAMPTZ NOT NULL
	)`

// EnsureSchema creates the decisions table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createDecisionsTable); err != nil {
		return fmt.Errorf("create arbitrage_decisions: %w", err)
	}
	return nil
}

const insertDecision = `
	INSERT INTO arbitrage_decisions (
		block_number, outcome, asset, symbol, direction, profit, expected,
		gas_cost, amount_other, tx_hash, error, decided_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

// PutDecisions inserts a batch of decisions in one transaction.
func (s *Store) PutDecisions(ctx context.Context, decisions []model.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	for _, d := range decisions {
		_, err := tx.Exec(ctx, insertDecision,
			int64(d.BlockNumber),
			string(d.Outcome),
			nullable(d.Asset),
			nullable(d.Symbol),
			nullable(d.Direction),
			nullable(d.Profit),
			nullable(d.Expected),
			nullable(d.GasCost),
			nullable(d.AmountOther),
			nullable(d.TxHash),
			nullable(d.Error),
			d.DecidedAt,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return fmt.Errorf("insert decision for block %d: %w", d.BlockNumber, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
