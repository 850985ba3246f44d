package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tellerdesk/tellerdesk/internal/db/sqlc"
)

// Store is the query set plus transactions. InTx commits when fn returns nil and rolls
// back otherwise; fn must only use the Querier it is given.
type Store interface {
	sqlc.Querier
	InTx(ctx context.Context, fn func(q sqlc.Querier) error) error
}

// PoolStore runs queries on a pgx pool.
type PoolStore struct {
	*sqlc.Queries
	pool *pgxpool.Pool
}

var _ Store = (*PoolStore)(nil)

func NewStore(pool *pgxpool.Pool) *PoolStore {
	return &PoolStore{Queries: sqlc.New(pool), pool: pool}
}

func (s *PoolStore) InTx(ctx context.Context, fn func(q sqlc.Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(s.Queries.WithTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
