package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"fungiatlas/internal/atlasdata"
	"fungiatlas/internal/blob"
)

// isolate points every setting at a temporary directory so no .env file or
// local database is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("FUNGIATLAS_CONTENT_DRIVER", "embedded")
	t.Setenv("FUNGIATLAS_BLOB_DRIVER", "fs")
	t.Setenv("FUNGIATLAS_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("FUNGIATLAS_SQLITE_PATH", filepath.Join(dir, "atlas.db"))
	t.Setenv("FUNGIATLAS_LOG_LEVEL", "error")
	return dir
}

func writeAtlas(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "atlas.yaml")
	if err := os.WriteFile(path, atlasdata.Raw(), 0o600); err != nil {
		t.Fatalf("write atlas: %v", err)
	}
	return path
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := cli(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestMainUsesExitFunc(t *testing.T) {
	isolate(t)
	got := -1
	exitFunc = func(code int) { got = code }
	args := os.Args
	t.Cleanup(func() {
		exitFunc = os.Exit
		os.Args = args
	})
	os.Args = []string{"atlas-check", "validate"}
	main()
	if got != 0 {
		t.Fatalf("expected exit 0, got %d", got)
	}
}

func TestValidateEmbedded(t *testing.T) {
	isolate(t)
	code, out, errOut := run("validate")
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, errOut)
	}
	if !strings.Contains(out, `embedded: version "2024.1", 15 species, 12 edges, 13 features`) {
		t.Fatalf("unexpected summary %q", out)
	}
	if !strings.Contains(out, "no findings") {
		t.Fatalf("expected no findings, got %q", out)
	}
}

func TestValidateFileJSONAndStrict(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tiny.yaml")
	doc := `features:
  - name: cap_color
    values: [red, brown]
  - name: gill_color
    values: [white]
species:
  - scientific_name: Alpha one
    edibility: edible
    features: {cap_color: red, gill_color: white}
    season: {from: 6, to: 9}
  - scientific_name: Beta two
    edibility: poisonous
    features: {cap_color: brown, gill_color: white}
    season: {from: 6, to: 9}
edges:
  - a: alpha-one
    b: beta-two
    features: [gill_color, cap_color]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	code, out, errOut := run("validate", "--json", path)
	if code != 0 {
		t.Fatalf("expected success, got %d: %s", code, errOut)
	}
	var s summary
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if s.Species != 2 || s.Edges != 1 || len(s.Violations) != 1 || s.Violations[0].Rule != "edge_feature_discriminates" {
		t.Fatalf("unexpected summary %+v", s)
	}

	code, _, errOut = run("validate", "--strict", path)
	if code != 1 || !strings.Contains(errOut, "1 content warnings") {
		t.Fatalf("expected strict failure, got %d %q", code, errOut)
	}
}

func TestValidateRejectsBrokenDocument(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("species:\n  - scientific_name: X\n    edibility: tasty\n"), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	code, _, errOut := run("validate", path)
	if code != 1 || !strings.Contains(errOut, "Edibility") {
		t.Fatalf("expected validation failure, got %d %q", code, errOut)
	}
}

func TestPublishBlobSnapshots(t *testing.T) {
	dir := isolate(t)
	path := writeAtlas(t, dir)
	for i := 0; i < 3; i++ {
		if code, _, errOut := run("publish", "--keep", "2", path); code != 0 {
			t.Fatalf("publish %d failed: %s", i, errOut)
		}
	}
	store, err := blob.NewFilesystem(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	snaps := blob.NewSnapshots(store)
	list, err := snaps.List(context.Background())
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 snapshots after pruning, got %d %v", len(list), err)
	}

	t.Setenv("FUNGIATLAS_CONTENT_DRIVER", "blob")
	code, out, errOut := run("validate")
	if code != 0 || !strings.Contains(out, "15 species") {
		t.Fatalf("expected blob content to validate, got %d %q %q", code, out, errOut)
	}
}

func TestPublishStoreTarget(t *testing.T) {
	dir := isolate(t)
	path := writeAtlas(t, dir)
	t.Setenv("FUNGIATLAS_CONTENT_DRIVER", "sqlite")
	code, out, errOut := run("publish", "--target", "store", path)
	if code != 0 {
		t.Fatalf("publish failed: %s", errOut)
	}
	if !strings.HasPrefix(out, "sqlite:") {
		t.Fatalf("unexpected output %q", out)
	}
	if code, _, _ := run("publish", "--target", "nowhere", path); code != 1 {
		t.Fatalf("expected unknown target failure")
	}
	t.Setenv("FUNGIATLAS_CONTENT_DRIVER", "embedded")
	if code, _, errOut := run("publish", "--target", "store", path); code != 1 || !strings.Contains(errOut, "read-only") {
		t.Fatalf("expected read-only failure, got %d %q", code, errOut)
	}
}

func TestImagesUploadAndList(t *testing.T) {
	dir := isolate(t)
	img := filepath.Join(dir, "cap.jpg")
	if err := os.WriteFile(img, []byte("jpeg"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	code, out, errOut := run("images", "amanita-pantherina", "--upload", img)
	if code != 0 || strings.TrimSpace(out) != "images/amanita-pantherina/cap.jpg" {
		t.Fatalf("upload failed: %d %q %q", code, out, errOut)
	}
	code, out, errOut = run("images", "Amanita pantherina")
	if code != 0 {
		t.Fatalf("list failed: %s", errOut)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "file://") || !strings.HasSuffix(lines[0], "images/amanita-pantherina/cap.jpg") {
		t.Fatalf("expected one file link, got %q", out)
	}
	if code, _, _ := run("images", "boletus-edulis"); code != 1 {
		t.Fatalf("expected unknown species failure")
	}
}

func TestImagesUploadUsesCanonicalSpecies(t *testing.T) {
	dir := isolate(t)
	t.Setenv("FUNGIATLAS_LOG_LEVEL", "info")
	img := filepath.Join(dir, "gills.jpg")
	if err := os.WriteFile(img, []byte("jpeg"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}

	code, out, errOut := run("images", "panaeolus-cinctulus", "--upload", img)
	if code != 0 || strings.TrimSpace(out) != "images/panaeolus-cinctulus/gills.jpg" {
		t.Fatalf("upload failed: %d %q %q", code, out, errOut)
	}
	if !strings.Contains(errOut, "command=images") {
		t.Fatalf("expected command-scoped log line, got %q", errOut)
	}
	code, out, errOut = run("images", "panaeolus-cinctulus")
	if code != 0 || !strings.HasSuffix(strings.TrimSpace(out), "images/panaeolus-cinctulus/gills.jpg") {
		t.Fatalf("expected the upload to be listed: %d %q %q", code, out, errOut)
	}

	code, out, errOut = run("images", "Amanita spissa", "--upload", img)
	if code != 0 || strings.TrimSpace(out) != "images/amanita-excelsa/gills.jpg" {
		t.Fatalf("synonym upload should use the species id: %d %q %q", code, out, errOut)
	}

	code, out, errOut = run("images", "boletus-edulis", "--upload", img)
	if code != 1 || out != "" || !strings.Contains(errOut, "boletus-edulis") {
		t.Fatalf("expected unknown species to be rejected: %d %q %q", code, out, errOut)
	}
	if _, err := os.Stat(filepath.Join(dir, "blobs", "images", "boletus-edulis")); !os.IsNotExist(err) {
		t.Fatalf("nothing should be stored for an unknown species: %v", err)
	}
}

// lockedBuffer lets the test read output while the command is still writing.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestValidateWatchesConfiguredFiles(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tiny.yaml")
	tiny := `features:
  - name: cap_color
    values: [red, brown]
species:
  - scientific_name: Alpha one
    edibility: edible
    features: {cap_color: red}
edges: []
`
	if err := os.WriteFile(path, []byte(tiny), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	t.Setenv("FUNGIATLAS_CONTENT_DRIVER", "file")
	t.Setenv("FUNGIATLAS_CONTENT_PATH", path)
	t.Setenv("FUNGIATLAS_WATCH", "true")

	var stdout, stderr lockedBuffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs([]string{"validate"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	waitFor := func(want string) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for !strings.Contains(stdout.String(), want) {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %q, got %q (stderr %q)", want, stdout.String(), stderr.String())
			}
			if want == "15 species" {
				_ = os.WriteFile(path, atlasdata.Raw(), 0o600)
			}
			time.Sleep(50 * time.Millisecond)
		}
	}
	waitFor("1 species")
	waitFor("15 species")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("validate in watch mode: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("validate did not stop")
	}
}

func TestBadConfiguration(t *testing.T) {
	isolate(t)
	t.Setenv("FUNGIATLAS_CONTENT_DRIVER", "ftp")
	code, _, errOut := run("validate")
	if code != 1 || !strings.Contains(errOut, "unknown content driver") {
		t.Fatalf("expected config failure, got %d %q", code, errOut)
	}
}
