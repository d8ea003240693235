// Package watch keeps the index in sync with the filesystem. It watches
// workspace folders recursively and reindexes Java sources as they change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow batches rapid event bursts (editors often write a file
// several times in quick succession) into one reindex pass.
const debounceWindow = 250 * time.Millisecond

// Indexer is the subset of the engine the watcher drives.
type Indexer interface {
	IndexFiles(ctx context.Context, paths []string) error
	RemoveFile(path string) error
}

// Watcher reindexes Java files under the watched folders as they change.
type Watcher struct {
	indexer Indexer
	logger  *slog.Logger
	fsw     *fsnotify.Watcher
}

// New builds a watcher around an indexer. A nil logger falls back to
// slog.Default.
func New(indexer Indexer, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{indexer: indexer, logger: logger, fsw: fsw}, nil
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Add watches dir and all of its subdirectories.
func (w *Watcher) Add(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDir(d.Name()) && path != dir {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// Run processes filesystem events until ctx is cancelled or the watcher
// is closed.
func (w *Watcher) Run(ctx context.Context) error {
	pending := make(map[string]fsnotify.Op)
	timer := time.NewTimer(debounceWindow)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			pending[event.Name] |= event.Op
			timer.Reset(debounceWindow)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		case <-timer.C:
			w.flush(ctx, pending)
			pending = make(map[string]fsnotify.Op)
		}
	}
}

// relevant filters events down to Java sources, and starts watching
// directories created under a watched tree.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !skipDir(filepath.Base(event.Name)) {
				if err := w.Add(event.Name); err != nil {
					w.logger.Warn("watching new directory failed", "dir", event.Name, "err", err)
				}
			}
			return false
		}
	}
	return strings.HasSuffix(event.Name, ".java")
}

// flush applies one debounced batch of changes to the index.
func (w *Watcher) flush(ctx context.Context, pending map[string]fsnotify.Op) {
	var changed []string
	for path, op := range pending {
		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := w.indexer.RemoveFile(path); err != nil {
					w.logger.Warn("removing file from index failed", "path", path, "err", err)
				}
				continue
			}
		}
		changed = append(changed, path)
	}
	if len(changed) == 0 {
		return
	}
	if err := w.indexer.IndexFiles(ctx, changed); err != nil {
		w.logger.Warn("reindexing changed files failed", "err", err)
		return
	}
	w.logger.Debug("reindexed changed files", "count", len(changed))
}

// skipDir matches directories never worth watching.
func skipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch name {
	case "target", "build", "node_modules":
		return true
	}
	return false
}
