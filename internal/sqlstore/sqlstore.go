// Package sqlstore stores users, polls and vote events in PostgreSQL or
// SQLite through sqlx. Vote writes run inside one database transaction.
package sqlstore

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store is a SQL-backed user, poll and vote store.
type Store struct {
	db     *sqlx.DB
	driver string
	sb     sq.StatementBuilderType
	// lock is appended to the poll read that opens a vote transaction.
	lock string
}

// Open connects to dsn with driver ("postgres" or "sqlite"), verifies the
// connection and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection serializes writers and keeps in-memory databases alive.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s, err := New(db, driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database.
func New(db *sqlx.DB, driver string) (*Store, error) {
	s := &Store{db: db, driver: driver}
	switch driver {
	case DriverPostgres:
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
		s.lock = " FOR UPDATE"
	case DriverSQLite:
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	return s, nil
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates all tables. Safe to call repeatedly.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// runInTx executes fn in a transaction: commit on nil, rollback on error or
// panic.
func (s *Store) runInTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// execer is satisfied by *sqlx.DB and *sqlx.Tx.
type execer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

func exec(ctx context.Context, q execer, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	_, err = q.ExecContext(ctx, query, args...)
	return err
}

func get(ctx context.Context, q execer, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return q.GetContext(ctx, dest, query, args...)
}

func selectRows(ctx context.Context, q execer, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return q.SelectContext(ctx, dest, query, args...)
}
