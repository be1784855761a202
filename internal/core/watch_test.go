package core

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fungiatlas/internal/content"
)

func writeDoc(t *testing.T, path string, doc content.Document) {
	t.Helper()
	data, err := content.EncodeBytes(doc, content.FormatYAML)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestContentWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atlas.yaml")
	writeDoc(t, path, tinyDoc())

	svc := NewService(content.File{Path: path})
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, svc.Dataset().Len())

	var mu sync.Mutex
	var reloadErrs []error
	logger := &captureLogger{}
	watcher := NewContentWatcher(svc, []string{path},
		WithWatchDebounce(10*time.Millisecond),
		WithWatchLogger(logger),
		WithReloadHook(func(_ *Dataset, err error) {
			mu.Lock()
			defer mu.Unlock()
			reloadErrs = append(reloadErrs, err)
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	full, err := content.EncodeBytes(defaultDoc(t), content.FormatYAML)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, full, 0o600)
		return svc.Dataset().Len() == 15
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("features: [\n"), 0o600))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloadErrs) > 0 && reloadErrs[len(reloadErrs)-1] != nil
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, 15, svc.Dataset().Len())
	_, ok := logger.find("warn", "content reload after change failed")
	assert.True(t, ok)

	// Changes to other files in the directory are ignored.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	before := len(reloadErrs)
	mu.Unlock()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	assert.Len(t, reloadErrs, before)
	mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestContentWatcherMissingDirectory(t *testing.T) {
	svc := NewService(content.Static{Doc: tinyDoc()})
	watcher := NewContentWatcher(svc, []string{filepath.Join(t.TempDir(), "missing", "atlas.yaml")})
	assert.Error(t, watcher.Run(context.Background()))
	assert.Error(t, NewContentWatcher(svc, nil).Run(context.Background()))
}

func TestContentWatcherFollowsEveryLayer(t *testing.T) {
	full := tinyDoc()
	base := full.Clone()
	base.Species = base.Species[:2]
	base.Edges = base.Edges[:1]
	overlay := content.Document{Species: full.Clone().Species[2:]}

	basePath := filepath.Join(t.TempDir(), "base.yaml")
	overlayPath := filepath.Join(t.TempDir(), "overlay.yaml")
	writeDoc(t, basePath, base)
	writeDoc(t, overlayPath, content.Document{})

	svc := NewService(content.NewLayered(content.File{Path: basePath}, content.File{Path: overlayPath}))
	_, err := svc.Reload(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, svc.Dataset().Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	watcher := NewContentWatcher(svc, []string{basePath, overlayPath}, WithWatchDebounce(10*time.Millisecond))
	go func() { done <- watcher.Run(ctx) }()

	data, err := content.EncodeBytes(overlay, content.FormatYAML)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_ = os.WriteFile(overlayPath, data, 0o600)
		return svc.Dataset().Len() == 3
	}, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, []string{"alpha-one", "beta-two", "gamma-three"}, svc.Dataset().SpeciesIDs())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
