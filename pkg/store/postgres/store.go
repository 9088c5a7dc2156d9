package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bridgit-ai/bridgit/pkg/history"
	"github.com/bridgit-ai/bridgit/pkg/ledger"
)

// Compile-time interface checks.
var (
	_ history.Recorder = (*SessionsImpl)(nil)
	_ ledger.Ledger    = (*CreditsImpl)(nil)
)

// Store is the central PostgreSQL-backed store. It holds a single
// [pgxpool.Pool] and exposes the two persistence layers:
//
//   - [Store.Sessions] returns a [SessionsImpl] implementing [history.Recorder]
//   - [Store.Credits] returns a [CreditsImpl] implementing [ledger.Ledger]
//
// All operations are safe for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	sessions *SessionsImpl
	credits  *CreditsImpl
}

// NewStore creates a new Store, establishes a connection pool to the
// PostgreSQL database at dsn, and runs [Migrate] to ensure all required
// tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}

	return &Store{
		pool:     pool,
		sessions: &SessionsImpl{pool: pool},
		credits:  &CreditsImpl{pool: pool},
	}, nil
}

// Sessions returns the session history implementation which satisfies
// [history.Recorder].
func (s *Store) Sessions() *SessionsImpl { return s.sessions }

// Credits returns the credit ledger implementation which satisfies
// [ledger.Ledger].
func (s *Store) Credits() *CreditsImpl { return s.credits }

// Ping verifies database connectivity. Used by health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying connection pool.
// It should be called when the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}
