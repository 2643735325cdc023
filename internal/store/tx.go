package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the subset of pgxpool.Pool and pgx.Tx that the per-row helpers
// need. Passing it instead of *pgxpool.Pool directly lets the same insert/
// update logic run either standalone or inside a caller-managed transaction,
// per spec.md §4.7: "each message is one DB transaction; failure rolls back
// and the worker returns false".
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTx runs fn inside a single transaction: fn's error (or a panic)
// rolls the transaction back, a nil return commits it. Callers that need
// more than one statement to succeed-or-fail atomically — the ingest
// worker's per-message writes — should use this rather than issuing
// independent pool.Exec calls.
func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once Commit has succeeded

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
