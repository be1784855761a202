// Package sqlite stores atlas content in normalized SQLite tables.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"fungiatlas/internal/content"
	"fungiatlas/internal/infra/persistence/tables"
)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "fungiatlas.db"

// Store reads and replaces the atlas document held in a SQLite file. It
// implements content.Source.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if needed) the database at path and ensures the
// atlas tables exist.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := tables.Apply(ctx, db, tables.Schema()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Name implements content.Source.
func (s *Store) Name() string { return "sqlite:" + s.path }

// Fetch implements content.Source. It returns content.ErrNoContent when the
// database holds no atlas yet.
func (s *Store) Fetch(ctx context.Context) (content.Document, error) {
	doc, err := tables.Read(ctx, s.db)
	if err != nil {
		return content.Document{}, fmt.Errorf("sqlite %s: %w", s.path, err)
	}
	return doc, nil
}

// Save replaces the stored atlas with doc in a single transaction.
func (s *Store) Save(ctx context.Context, doc content.Document) (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if err := tables.Write(ctx, tx, tables.SQLite, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
