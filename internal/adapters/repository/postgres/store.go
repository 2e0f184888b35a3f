// Package postgres provides PostgreSQL storage for cupping sessions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/okian/cupping/internal/adapters/repository"
	"github.com/okian/cupping/pkg/metrics"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store implements repository.Store using PostgreSQL. Every unit of work is
// one database transaction; read-write units lock the session row.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL session store over an open pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to dsn using the lib/pq driver and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// Views read the session, its tests and its results from one snapshot.
var viewTxOptions = sql.TxOptions{ReadOnly: true, Isolation: sql.LevelRepeatableRead}

// Update implements repository.Store.Update.
func (s *Store) Update(ctx context.Context, _ string, fn repository.TxFunc) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("update", float64(time.Since(start).Milliseconds())) }()
	return s.run(ctx, nil, true, fn)
}

// View implements repository.Store.View.
func (s *Store) View(ctx context.Context, _ string, fn repository.TxFunc) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("view", float64(time.Since(start).Milliseconds())) }()
	return s.run(ctx, &viewTxOptions, false, fn)
}

func (s *Store) run(ctx context.Context, opts *sql.TxOptions, writable bool, fn repository.TxFunc) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &pgTx{tx: tx, writable: writable}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Stats implements repository.Store.Stats. Counts are -1 when the query fails.
func (s *Store) Stats(ctx context.Context) repository.Stats {
	st := repository.Stats{Backend: "postgres", Sessions: -1, Tests: -1, Results: -1}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cupping_sessions),
			(SELECT COUNT(*) FROM cupping_tests),
			(SELECT COUNT(*) FROM cupping_results)
	`).Scan(&st.Sessions, &st.Tests, &st.Results)
	if err != nil {
		return repository.Stats{Backend: "postgres", Sessions: -1, Tests: -1, Results: -1}
	}
	return st
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// mapError translates driver errors into repository kinds.
func mapError(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
