// Package database is the PostgreSQL implementation of the core
// repositories. Queries run against a DBTX, which is either the pool
// (autocommit) or an open pgx.Tx.
package database

import (
	"context"
	_ "embed"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/routeimport/internal/core"
)

//go:embed schema.sql
var schema string

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries implements core.Repository over a DBTX.
type Queries struct {
	db DBTX
}

var _ core.Repository = (*Queries)(nil)

// New returns Queries over db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// Store is a core.Store backed by a connection pool.
type Store struct {
	*Queries
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// NewStore returns a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Queries: New(pool), pool: pool}
}

// Begin opens a read-committed transaction. Uniqueness races surface as
// core.ErrConflict or *core.DuplicateNameError from the unique indexes.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, mapError(err, "begin transaction")
	}
	return &Tx{Queries: New(tx), tx: tx}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Tx is a core.Tx over a pgx transaction.
type Tx struct {
	*Queries
	tx pgx.Tx
}

// Commit commits the transaction. Serialization failures map to core.ErrConflict.
func (t *Tx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return mapError(err, "commit")
	}
	return nil
}

// Rollback aborts the transaction. It is a no-op once the transaction has ended.
func (t *Tx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return errors.Wrap(err, "rollback")
}
