package content

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Source supplies atlas documents. Implementations live next to their
// storage backend; the dataset loader is the only consumer.
type Source interface {
	// Name identifies the source in logs and errors.
	Name() string
	// Fetch returns the current document.
	Fetch(ctx context.Context) (Document, error)
}

// Static is a Source over a fixed document.
type Static struct {
	Label string
	Doc   Document
}

// Name implements Source.
func (s Static) Name() string {
	if s.Label == "" {
		return "static"
	}
	return s.Label
}

// Fetch implements Source.
func (s Static) Fetch(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	return s.Doc, nil
}

// File reads a YAML or JSON document from the local filesystem on every Fetch.
type File struct {
	Path string
}

// Name implements Source.
func (f File) Name() string { return "file:" + f.Path }

// Fetch implements Source.
func (f File) Fetch(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	// #nosec G304 -- content path comes from operator configuration
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Document{}, fmt.Errorf("read content file: %w", err)
	}
	doc, err := DecodeBytes(data, FormatForPath(f.Path))
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", f.Path, err)
	}
	return doc, nil
}

// Layered fetches several sources concurrently and merges their documents in
// declaration order, so a regional overlay can add species and edges to a
// base atlas.
type Layered struct {
	Sources []Source
}

// NewLayered returns a Layered source over sources.
func NewLayered(sources ...Source) Layered {
	return Layered{Sources: sources}
}

// Name implements Source.
func (l Layered) Name() string {
	names := make([]string, 0, len(l.Sources))
	for _, s := range l.Sources {
		names = append(names, s.Name())
	}
	return "layered[" + strings.Join(names, ",") + "]"
}

// Fetch implements Source. Any failing layer fails the whole fetch.
func (l Layered) Fetch(ctx context.Context) (Document, error) {
	docs := make([]Document, len(l.Sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range l.Sources {
		g.Go(func() error {
			doc, err := src.Fetch(gctx)
			if err != nil {
				return fmt.Errorf("layer %s: %w", src.Name(), err)
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Document{}, err
	}
	return Merge(docs...), nil
}
