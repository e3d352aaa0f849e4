// Package store provides the data access layer. Queries are built with
// squirrel and executed through database/sql so the same code serves both
// supported drivers: Postgres (pgxpool wrapped by the pgx stdlib adapter)
// and SQLite (mattn/go-sqlite3, used for single-node installs and tests).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// Store is the central data access object.
type Store struct {
	pool    *pgxpool.Pool // nil for SQLite
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

// New creates a Store backed by a Postgres pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:    pool,
		db:      stdlib.OpenDBFromPool(pool),
		dialect: DialectPostgres,
		sb:      DialectPostgres.Builder(),
	}
}

// NewSQLite creates a Store backed by an open SQLite database.
func NewSQLite(db *sql.DB) *Store {
	return &Store{
		db:      db,
		dialect: DialectSQLite,
		sb:      DialectSQLite.Builder(),
	}
}

// OpenSQLite opens the SQLite database at path with foreign keys enforced.
// SQLite allows one writer at a time, so the pool is capped at one connection.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports which SQL dialect the store speaks.
func (s *Store) Dialect() Dialect { return s.dialect }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return s.db.PingContext(ctx)
}

// withTx runs fn inside a database/sql transaction. The transaction is
// committed if fn returns nil, rolled back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ErrNotFound is returned by update methods when no row matches.
var ErrNotFound = errors.New("not found")
