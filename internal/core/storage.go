package core

import (
	"context"
	"errors"
	"fmt"
	"io"

	"fungiatlas/internal/atlasdata"
	"fungiatlas/internal/blob"
	"fungiatlas/internal/config"
	"fungiatlas/internal/content"
	"fungiatlas/internal/infra/persistence/memory"
	"fungiatlas/internal/infra/persistence/postgres"
	"fungiatlas/internal/infra/persistence/sqlite"
)

// ContentDriver identifies a concrete content store implementation.
type ContentDriver = config.ContentDriver

const (
	ContentEmbedded = config.ContentEmbedded
	ContentMemory   = config.ContentMemory
	ContentFile     = config.ContentFile
	ContentBlob     = config.ContentBlob
	ContentSQLite   = config.ContentSQLite
	ContentPostgres = config.ContentPostgres
)

// OpenContentSource selects the content backend named by cfg.ContentDriver.
// Stores that have not been given a document yet serve the embedded atlas.
// Sources holding connections implement io.Closer; see CloseSource.
func OpenContentSource(ctx context.Context, cfg config.Config) (content.Source, error) {
	switch cfg.ContentDriver {
	case ContentEmbedded, "":
		return atlasdata.Source{}, nil
	case ContentMemory:
		doc, err := atlasdata.Default()
		if err != nil {
			return nil, err
		}
		return memory.NewStore(doc), nil
	case ContentFile:
		paths := cfg.ContentPaths()
		if len(paths) == 0 {
			return nil, fmt.Errorf("file content driver needs %s", config.EnvContentPath)
		}
		return FileSource(paths), nil
	case ContentBlob:
		store, err := blob.Open(ctx, cfg.Blob)
		if err != nil {
			return nil, fmt.Errorf("open blob store: %w", err)
		}
		return seeded(blob.NewSnapshots(store, blob.WithSnapshotPrefix(cfg.Blob.SnapshotPrefix))), nil
	case ContentSQLite:
		store, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return seeded(store), nil
	case ContentPostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return seeded(store), nil
	default:
		return nil, fmt.Errorf("unknown content driver %s", cfg.ContentDriver)
	}
}

// FileSource reads a single document, or layers several in the order given.
func FileSource(paths []string) content.Source {
	if len(paths) == 1 {
		return content.File{Path: paths[0]}
	}
	layers := make([]content.Source, 0, len(paths))
	for _, p := range paths {
		layers = append(layers, content.File{Path: p})
	}
	return content.NewLayered(layers...)
}

// CloseSource releases src when it holds resources.
func CloseSource(src content.Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// seededSource serves the embedded atlas until its store holds a document.
type seededSource struct {
	store    content.Source
	fallback content.Source
}

func seeded(store content.Source) *seededSource {
	return &seededSource{store: store, fallback: atlasdata.Source{}}
}

func (s *seededSource) Name() string { return s.store.Name() }

func (s *seededSource) Fetch(ctx context.Context) (content.Document, error) {
	doc, err := s.store.Fetch(ctx)
	if errors.Is(err, content.ErrNoContent) {
		return s.fallback.Fetch(ctx)
	}
	return doc, err
}

func (s *seededSource) Save(ctx context.Context, doc content.Document) error {
	w, ok := s.store.(ContentWriter)
	if !ok {
		return ErrReadOnlySource
	}
	return w.Save(ctx, doc)
}

func (s *seededSource) Close() error { return CloseSource(s.store) }
