// Package config reads fungiatlas settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ContentDriver names a content store backend.
type ContentDriver string

// Supported content drivers.
const (
	ContentEmbedded ContentDriver = "embedded" // atlas compiled into the binary
	ContentMemory   ContentDriver = "memory"   // in-process, seeded with the embedded atlas
	ContentFile     ContentDriver = "file"     // YAML or JSON document on disk
	ContentBlob     ContentDriver = "blob"     // latest snapshot in a blob store
	ContentSQLite   ContentDriver = "sqlite"   // embedded sqlite file
	ContentPostgres ContentDriver = "postgres" // PostgreSQL server
)

// Environment variable names.
const (
	EnvContentDriver = "FUNGIATLAS_CONTENT_DRIVER"
	EnvContentPath   = "FUNGIATLAS_CONTENT_PATH"
	EnvBlobDriver    = "FUNGIATLAS_BLOB_DRIVER"
	EnvBlobFSRoot    = "FUNGIATLAS_BLOB_FS_ROOT"
	EnvS3Bucket      = "FUNGIATLAS_BLOB_S3_BUCKET"
	EnvS3Region      = "FUNGIATLAS_BLOB_S3_REGION"
	EnvS3Endpoint    = "FUNGIATLAS_BLOB_S3_ENDPOINT"
	EnvS3PathStyle   = "FUNGIATLAS_BLOB_S3_PATH_STYLE"
	EnvSnapshots     = "FUNGIATLAS_BLOB_SNAPSHOT_PREFIX"
	EnvSQLitePath    = "FUNGIATLAS_SQLITE_PATH"
	EnvPostgresDSN   = "FUNGIATLAS_POSTGRES_DSN"
	EnvLogLevel      = "FUNGIATLAS_LOG_LEVEL"
	EnvLogFormat     = "FUNGIATLAS_LOG_FORMAT"
	EnvWatch         = "FUNGIATLAS_WATCH"
)

// Defaults applied when a variable is unset.
const (
	DefaultSQLitePath = "./fungiatlas.db"
	DefaultBlobFSRoot = "./blobdata"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Blob holds blob store settings.
type Blob struct {
	Driver         string
	FSRoot         string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3PathStyle    bool
	SnapshotPrefix string
}

// Config is the resolved runtime configuration.
type Config struct {
	ContentDriver ContentDriver
	ContentPath   string
	Blob          Blob
	SQLitePath    string
	PostgresDSN   string
	LogLevel      string
	LogFormat     string
	Watch         bool
}

// Load reads an optional .env file from the working directory and then the
// process environment. Variables already set in the environment win over the
// file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup resolves a Config through lookup, which has the shape of
// os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}
	cfg := Config{
		ContentDriver: ContentDriver(strings.ToLower(get(EnvContentDriver, string(ContentEmbedded)))),
		ContentPath:   get(EnvContentPath, ""),
		Blob: Blob{
			Driver:         strings.ToLower(get(EnvBlobDriver, "fs")),
			FSRoot:         get(EnvBlobFSRoot, DefaultBlobFSRoot),
			S3Bucket:       get(EnvS3Bucket, ""),
			S3Region:       get(EnvS3Region, ""),
			S3Endpoint:     get(EnvS3Endpoint, ""),
			SnapshotPrefix: get(EnvSnapshots, ""),
		},
		SQLitePath:  get(EnvSQLitePath, DefaultSQLitePath),
		PostgresDSN: get(EnvPostgresDSN, ""),
		LogLevel:    strings.ToLower(get(EnvLogLevel, DefaultLogLevel)),
		LogFormat:   strings.ToLower(get(EnvLogFormat, DefaultLogFormat)),
	}
	var err error
	if cfg.Blob.S3PathStyle, err = parseBool(EnvS3PathStyle, get(EnvS3PathStyle, "false")); err != nil {
		return Config{}, err
	}
	if cfg.Watch, err = parseBool(EnvWatch, get(EnvWatch, "false")); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	switch c.ContentDriver {
	case ContentEmbedded, ContentMemory, ContentBlob, ContentSQLite:
	case ContentFile:
		if len(c.ContentPaths()) == 0 {
			return fmt.Errorf("%s is required for the file content driver", EnvContentPath)
		}
	case ContentPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%s is required for the postgres content driver", EnvPostgresDSN)
		}
	default:
		return fmt.Errorf("unknown content driver %q", c.ContentDriver)
	}
	switch c.Blob.Driver {
	case "", "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.ContentDriver == ContentBlob && c.Blob.Driver == "s3" && c.Blob.S3Bucket == "" {
		return fmt.Errorf("%s is required for the s3 blob driver", EnvS3Bucket)
	}
	if c.Watch && c.ContentDriver != ContentFile {
		return fmt.Errorf("%s requires the file content driver", EnvWatch)
	}
	return nil
}

// ContentPaths splits ContentPath on the OS path list separator. More than
// one path layers the documents in order.
func (c Config) ContentPaths() []string {
	var out []string
	for _, p := range filepath.SplitList(c.ContentPath) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(key, value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
