package postgres

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"testing"

	"fungiatlas/internal/atlasdata"
	"fungiatlas/internal/content"
	"fungiatlas/internal/infra/persistence/postgres/testutil"
)

func newStubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)
	store, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store, conn
}

func defaultDoc(t *testing.T) content.Document {
	t.Helper()
	doc, err := atlasdata.Default()
	if err != nil {
		t.Fatalf("default atlas: %v", err)
	}
	return content.Normalize(doc)
}

func TestNewStoreAppliesSchema(t *testing.T) {
	_, conn := newStubStore(t)
	var created int
	for _, stmt := range conn.Execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			created++
		}
	}
	if created != 10 {
		t.Fatalf("expected 10 CREATE TABLE statements, got %d: %v", created, conn.Execs)
	}
}

func TestNewStorePingFailure(t *testing.T) {
	db, conn := testutil.NewStubDB()
	conn.FailExec = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), "postgres://example"); err == nil || !strings.Contains(err.Error(), "ping") {
		t.Fatalf("expected ping error, got %v", err)
	}
}

func TestNewStoreOpenFailure(t *testing.T) {
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
}

func TestFetchEmpty(t *testing.T) {
	store, _ := newStubStore(t)
	if _, err := store.Fetch(context.Background()); !errors.Is(err, content.ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestSaveFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, conn := newStubStore(t)
	want := defaultDoc(t)
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := len(conn.Rows("species")); got != len(want.Species) {
		t.Fatalf("expected %d species rows, got %d", len(want.Species), got)
	}
	if got := len(conn.Rows("edges")); got != len(want.Edges) {
		t.Fatalf("expected %d edge rows, got %d", len(want.Edges), got)
	}
	got, err := store.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}

	// A second save replaces rather than appends.
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if got := len(conn.Rows("species")); got != len(want.Species) {
		t.Fatalf("expected species rows replaced, got %d", got)
	}
}

func TestSaveFailures(t *testing.T) {
	ctx := context.Background()
	doc := defaultDoc(t)

	store, conn := newStubStore(t)
	conn.FailBegin = true
	if err := store.Save(ctx, doc); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin error, got %v", err)
	}
	conn.FailBegin = false

	conn.FailTables = map[string]bool{"edge_features": true}
	if err := store.Save(ctx, doc); err == nil || !strings.Contains(err.Error(), "edge_features") {
		t.Fatalf("expected table failure, got %v", err)
	}
	conn.FailTables = nil

	conn.FailCommit = true
	if err := store.Save(ctx, doc); err == nil || !strings.Contains(err.Error(), "commit") {
		t.Fatalf("expected commit error, got %v", err)
	}
}

func TestFetchQueryFailure(t *testing.T) {
	store, conn := newStubStore(t)
	conn.FailTables = map[string]bool{"species": true}
	if _, err := store.Fetch(context.Background()); err == nil || !strings.Contains(err.Error(), "select species") {
		t.Fatalf("expected select failure, got %v", err)
	}
}
