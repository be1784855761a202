package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fungiatlas/internal/content"
)

// SnapshotPrefix is where atlas documents are published by default.
const SnapshotPrefix = "atlas/snapshots/"

const snapshotTimeLayout = "20060102T150405.000000000Z"

// Snapshots stores immutable, timestamped atlas documents in a blob store.
// Keys sort in publish order, so the newest snapshot is the last key under the
// prefix. Snapshots implements content.Source by serving the newest one.
type Snapshots struct {
	store  Store
	prefix string
	format content.Format
	now    func() time.Time
}

// SnapshotOption configures Snapshots.
type SnapshotOption func(*Snapshots)

// WithSnapshotPrefix overrides SnapshotPrefix.
func WithSnapshotPrefix(prefix string) SnapshotOption {
	return func(s *Snapshots) {
		if prefix != "" {
			s.prefix = strings.TrimSuffix(prefix, "/") + "/"
		}
	}
}

// WithSnapshotFormat selects the encoding of newly published snapshots.
func WithSnapshotFormat(format content.Format) SnapshotOption {
	return func(s *Snapshots) {
		if format != "" {
			s.format = format
		}
	}
}

// WithSnapshotClock overrides the clock used to name snapshots.
func WithSnapshotClock(now func() time.Time) SnapshotOption {
	return func(s *Snapshots) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSnapshots returns a snapshot store over store.
func NewSnapshots(store Store, opts ...SnapshotOption) *Snapshots {
	s := &Snapshots{store: store, prefix: SnapshotPrefix, format: content.FormatYAML, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements content.Source.
func (s *Snapshots) Name() string {
	return "blob:" + string(s.store.Driver()) + "/" + s.prefix
}

// Fetch implements content.Source.
func (s *Snapshots) Fetch(ctx context.Context) (content.Document, error) {
	_, doc, err := s.Latest(ctx)
	return doc, err
}

// Publish encodes doc and writes it as a new snapshot.
func (s *Snapshots) Publish(ctx context.Context, doc content.Document) (Info, error) {
	data, err := content.EncodeBytes(doc, s.format)
	if err != nil {
		return Info{}, err
	}
	id := uuid.NewString()
	key := s.prefix + s.now().UTC().Format(snapshotTimeLayout) + "-" + id + s.format.Ext()
	meta := map[string]string{"snapshot-id": id}
	if doc.Version != "" {
		meta["atlas-version"] = doc.Version
	}
	info, err := s.store.Put(ctx, key, bytes.NewReader(data), PutOptions{
		ContentType: s.format.ContentType(),
		Metadata:    meta,
	})
	if err != nil {
		return Info{}, fmt.Errorf("publish snapshot: %w", err)
	}
	return info, nil
}

// Save publishes doc as a new snapshot.
func (s *Snapshots) Save(ctx context.Context, doc content.Document) error {
	_, err := s.Publish(ctx, doc)
	return err
}

// List returns the stored snapshots, oldest first.
func (s *Snapshots) List(ctx context.Context) ([]Info, error) {
	infos, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, content.FormatYAML.Ext()) || strings.HasSuffix(info.Key, content.FormatJSON.Ext()) {
			out = append(out, info)
		}
	}
	return out, nil
}

// Latest returns the newest snapshot and its decoded document.
func (s *Snapshots) Latest(ctx context.Context) (Info, content.Document, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return Info{}, content.Document{}, err
	}
	if len(infos) == 0 {
		return Info{}, content.Document{}, fmt.Errorf("no atlas snapshot under %s: %w: %w", s.prefix, ErrNotFound, content.ErrNoContent)
	}
	latest := infos[len(infos)-1]
	doc, err := s.Load(ctx, latest.Key)
	if err != nil {
		return Info{}, content.Document{}, err
	}
	return latest, doc, nil
}

// Load reads and decodes the snapshot stored at key.
func (s *Snapshots) Load(ctx context.Context, key string) (content.Document, error) {
	_, rc, err := s.store.Get(ctx, key)
	if err != nil {
		return content.Document{}, fmt.Errorf("read snapshot: %w", err)
	}
	defer func() { _ = rc.Close() }()
	doc, err := content.Decode(rc, content.FormatForPath(key))
	if err != nil {
		return content.Document{}, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return doc, nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted keys.
func (s *Snapshots) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		return nil, fmt.Errorf("prune must keep at least one snapshot, got %d", keep)
	}
	infos, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(infos) <= keep {
		return nil, nil
	}
	var deleted []string
	for _, info := range infos[:len(infos)-keep] {
		ok, err := s.store.Delete(ctx, info.Key)
		if err != nil {
			return deleted, fmt.Errorf("prune snapshot %s: %w", info.Key, err)
		}
		if ok {
			deleted = append(deleted, info.Key)
		}
	}
	return deleted, nil
}
