// Package blob is the entry point to blob storage for the rest of fungiatlas.
// It re-exports the storage contract, selects a driver from configuration, and
// layers atlas snapshots and species image links on top of any Store.
package blob

import (
	"context"
	"fmt"

	"fungiatlas/internal/blob/core"
	"fungiatlas/internal/config"
	"fungiatlas/internal/infra/blob/fs"
	memorystore "fungiatlas/internal/infra/blob/memory"
	infraS3 "fungiatlas/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is implemented by every blob backend.
	Store = core.Store
	// S3Config configures the S3 driver.
	S3Config = infraS3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrNotFound    = core.ErrNotFound
	ErrExists      = core.ErrExists
)

// Open builds the store selected by cfg.Driver (fs when empty).
func Open(ctx context.Context, cfg config.Blob) (Store, error) {
	switch Driver(cfg.Driver) {
	case DriverFilesystem, "":
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewFilesystem returns a store rooted at root.
func NewFilesystem(root string) (Store, error) {
	return fs.New(root)
}

// NewMemory returns a store held in process memory.
func NewMemory() Store { return memorystore.New() }

// NewS3 returns a store on an S3 compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return infraS3.New(ctx, cfg)
}

// NewMockS3ForTests returns an S3 store backed by a fake in-memory bucket.
func NewMockS3ForTests() Store { return infraS3.NewMockForTests() }
