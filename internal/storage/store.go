// Package storage persists the ledger in a local SQLite database.
//
// Queries is a thin hand-written query layer in the usual generated style;
// Store adds connection setup, migrations and transaction management. Every
// balance mutation goes through Store.InTx so the transaction row and its
// account deltas commit or roll back as one unit.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type Store struct {
	db      *sql.DB
	queries *Queries
}

// NewStore opens (creating if needed) the SQLite database at dbPath and
// brings the schema up to date.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// A single connection serializes writers. Engine transactions start as
	// DEFERRED, so on a pooled connection a concurrent writer would read under
	// a WAL snapshot and then fail its read-to-write upgrade with SQLITE_BUSY;
	// the busy timeout cannot wait out a stale snapshot.
	db.SetMaxOpenConns(1)

	// WAL lets readers proceed while a write transaction is open.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, queries: New(db)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Queries returns the query layer bound to the plain connection, for reads
// that do not need transactional isolation.
func (s *Store) Queries() *Queries {
	return s.queries
}

// InTx runs fn inside a single database transaction. If fn returns an error
// the transaction is rolled back and the error returned unchanged, so domain
// sentinel errors survive the round trip.
func (s *Store) InTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(s.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
