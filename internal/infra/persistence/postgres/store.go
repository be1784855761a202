// Package postgres stores atlas content in normalized Postgres tables through
// the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"fungiatlas/internal/content"
	"fungiatlas/internal/infra/persistence/tables"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/fungiatlas?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store reads and replaces the atlas document held in Postgres. It implements
// content.Source.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN)
// and ensures the atlas tables exist.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := tables.Apply(ctx, db, tables.Schema()); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Name implements content.Source.
func (s *Store) Name() string { return "postgres" }

// Fetch implements content.Source. It returns content.ErrNoContent when the
// database holds no atlas yet.
func (s *Store) Fetch(ctx context.Context) (content.Document, error) {
	doc, err := tables.Read(ctx, s.db)
	if err != nil {
		return content.Document{}, fmt.Errorf("postgres: %w", err)
	}
	return doc, nil
}

// Save replaces the stored atlas with doc in a single transaction.
func (s *Store) Save(ctx context.Context, doc content.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := tables.Write(ctx, tx, tables.Postgres, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
