// Package memory provides an in-process atlas content store, used for tests
// and for running without external storage.
package memory

import (
	"context"
	"sync"
	"time"

	"fungiatlas/internal/content"
)

// Store keeps the last saved document in memory. It implements content.Source.
type Store struct {
	mu      sync.RWMutex
	doc     content.Document
	saved   bool
	savedAt time.Time
	now     func() time.Time
}

// NewStore constructs an empty store. Seed documents, when given, are merged
// and saved immediately.
func NewStore(seed ...content.Document) *Store {
	s := &Store{now: time.Now}
	if len(seed) > 0 {
		s.doc = content.Merge(seed...).Clone()
		s.saved = true
		s.savedAt = s.now().UTC()
	}
	return s
}

// Name implements content.Source.
func (s *Store) Name() string { return "memory" }

// Fetch implements content.Source. It returns content.ErrNoContent until a
// document has been saved.
func (s *Store) Fetch(ctx context.Context) (content.Document, error) {
	if err := ctx.Err(); err != nil {
		return content.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return content.Document{}, content.ErrNoContent
	}
	return s.doc.Clone(), nil
}

// Save replaces the stored document.
func (s *Store) Save(ctx context.Context, doc content.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc.Clone()
	s.saved = true
	s.savedAt = s.now().UTC()
	return nil
}

// SavedAt reports when the current document was saved; zero when empty.
func (s *Store) SavedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.savedAt
}
