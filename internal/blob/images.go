package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"fungiatlas/internal/content"
)

// ImagePrefix is the key prefix for species images.
const ImagePrefix = "images/"

// ImageKey returns the storage key of an image belonging to a species.
func ImageKey(speciesID, name string) string {
	return SpeciesImagePrefix(speciesID) + path.Base(name)
}

// SpeciesImagePrefix returns the key prefix holding every image of a species.
func SpeciesImagePrefix(speciesID string) string {
	return ImagePrefix + content.Slugify(speciesID) + "/"
}

// ImageLinks resolves species image keys to links through a Store.
type ImageLinks struct {
	store  Store
	expiry time.Duration
}

// NewImageLinks returns a resolver whose links expire after expiry (the
// driver default when zero).
func NewImageLinks(store Store, expiry time.Duration) *ImageLinks {
	return &ImageLinks{store: store, expiry: expiry}
}

// ImageURLs returns one link per stored key, in order. Keys missing from the
// store are skipped. Drivers that cannot sign URLs yield the key itself.
func (l *ImageLinks) ImageURLs(ctx context.Context, keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, err := l.store.Head(ctx, key); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		link, err := l.store.PresignURL(ctx, key, SignedURLOptions{Method: "GET", Expiry: l.expiry})
		switch {
		case errors.Is(err, ErrUnsupported):
			link = key
		case err != nil:
			return nil, fmt.Errorf("sign image %s: %w", key, err)
		}
		out = append(out, link)
	}
	return out, nil
}

// SpeciesImageURLs returns links for the declared keys of a species followed
// by any other images stored under its prefix.
func (l *ImageLinks) SpeciesImageURLs(ctx context.Context, speciesID string, declared []string) ([]string, error) {
	stored, err := l.store.List(ctx, SpeciesImagePrefix(speciesID))
	if err != nil {
		return nil, fmt.Errorf("list images of %s: %w", speciesID, err)
	}
	seen := make(map[string]struct{}, len(declared)+len(stored))
	keys := make([]string, 0, len(declared)+len(stored))
	for _, key := range declared {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	for _, info := range stored {
		if _, ok := seen[info.Key]; !ok {
			seen[info.Key] = struct{}{}
			keys = append(keys, info.Key)
		}
	}
	return l.ImageURLs(ctx, keys)
}

// PutSpeciesImage stores an image for a species and returns its key.
func (l *ImageLinks) PutSpeciesImage(ctx context.Context, speciesID, name string, r io.Reader, contentType string) (string, error) {
	info, err := l.PutImage(ctx, speciesID, name, r, contentType)
	if err != nil {
		return "", err
	}
	return info.Key, nil
}

// PutImage stores an image for a species and returns its info.
func (l *ImageLinks) PutImage(ctx context.Context, speciesID, name string, r io.Reader, contentType string) (Info, error) {
	return l.store.Put(ctx, ImageKey(speciesID, name), r, PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"species-id": speciesID},
	})
}
