package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIndexer struct {
	indexed []string
	removed []string
}

func (f *fakeIndexer) IndexFiles(ctx context.Context, paths []string) error {
	f.indexed = append(f.indexed, paths...)
	return nil
}

func (f *fakeIndexer) RemoveFile(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func newTestWatcher(t *testing.T, indexer Indexer) *Watcher {
	t.Helper()
	w, err := New(indexer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestFlushPartitionsRemovalsAndChanges(t *testing.T) {
	idx := &fakeIndexer{}
	w := newTestWatcher(t, idx)

	dir := t.TempDir()
	changed := filepath.Join(dir, "Changed.java")
	require.NoError(t, os.WriteFile(changed, []byte("class Changed {}"), 0o644))
	gone := filepath.Join(dir, "Gone.java")

	w.flush(context.Background(), map[string]fsnotify.Op{
		changed: fsnotify.Write,
		gone:    fsnotify.Remove,
	})

	assert.Equal(t, []string{changed}, idx.indexed)
	assert.Equal(t, []string{gone}, idx.removed)
}

// A rename where the file still exists (moved into place by an editor's
// atomic save) reindexes instead of removing.
func TestFlushRenameOfExistingFileReindexes(t *testing.T) {
	idx := &fakeIndexer{}
	w := newTestWatcher(t, idx)

	dir := t.TempDir()
	path := filepath.Join(dir, "Saved.java")
	require.NoError(t, os.WriteFile(path, []byte("class Saved {}"), 0o644))

	w.flush(context.Background(), map[string]fsnotify.Op{
		path: fsnotify.Rename | fsnotify.Create,
	})

	assert.Equal(t, []string{path}, idx.indexed)
	assert.Empty(t, idx.removed)
}

func TestFlushEmptyBatchDoesNothing(t *testing.T) {
	idx := &fakeIndexer{}
	w := newTestWatcher(t, idx)

	w.flush(context.Background(), map[string]fsnotify.Op{})

	assert.Empty(t, idx.indexed)
	assert.Empty(t, idx.removed)
}

func TestAddSkipsBuildDirectories(t *testing.T) {
	w := newTestWatcher(t, &fakeIndexer{})

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "main"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target", "classes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))

	require.NoError(t, w.Add(dir))
	assert.ElementsMatch(t,
		[]string{dir, filepath.Join(dir, "src"), filepath.Join(dir, "src", "main")},
		w.fsw.WatchList())
}

func TestSkipDir(t *testing.T) {
	assert.True(t, skipDir(".git"))
	assert.True(t, skipDir("target"))
	assert.True(t, skipDir("build"))
	assert.True(t, skipDir("node_modules"))
	assert.False(t, skipDir("src"))
	assert.False(t, skipDir("main"))
}
