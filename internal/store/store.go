package store

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a thin wrapper over a pgx connection pool. Every write uses a
// short-lived transaction or a single statement with ON CONFLICT for
// idempotency; there is no application-level locking, per spec.md §5.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses dsn, attaches the OTel pgx tracer (as discovery-service does
// for its own pool), and verifies connectivity with a ping.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool. Safe to call once during shutdown.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pgxpool for components (e.g. migrations) that
// need raw access. Most callers should prefer the typed methods below.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }
