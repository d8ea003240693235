package chels

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bdshadow/che-ls-jdt/internal/extract"
	"github.com/bdshadow/che-ls-jdt/internal/store"
)

// Engine wires the pipeline together: file discovery, change detection,
// tree-sitter extraction, and file-structure queries over the SQLite index.
type Engine struct {
	store     *store.Store
	extractor *extract.Extractor
	model     DeclarationModel
	outliner  *Outliner
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("chels: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("chels: migrate: %w", err)
	}

	model := NewDeclarationModel(s)
	return &Engine{
		store:     s,
		extractor: extract.New(),
		model:     model,
		outliner:  NewOutliner(model),
	}, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Model returns the declaration model reading from the Engine's store.
func (e *Engine) Model() DeclarationModel {
	return e.model
}

// FileStructure builds the symbol tree for an indexed source file. See
// [Outliner.FileStructure].
func (e *Engine) FileStructure(ctx context.Context, fileURI string, showInherited bool) ([]*SymbolNode, error) {
	return e.outliner.FileStructure(ctx, fileURI, showInherited)
}

// IndexFiles indexes the given file paths serially.
//
// For each file:
//  1. Skip non-Java files
//  2. Skip unchanged files (same content hash)
//  3. Delete stale data for previously indexed files
//  4. Extract declarations and commit them in one transaction
//
// Errors on individual files abort with the first error wrapped; the
// context is polled between files so long indexing runs cancel promptly.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.indexFile(ctx, path); err != nil {
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) indexFile(ctx context.Context, path string) error {
	if !strings.HasSuffix(path, ".java") {
		return nil // unsupported extension
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(content))

	existing, err := e.store.FileByPath(abs)
	if err != nil {
		return fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		return nil // unchanged
	}

	result, err := e.extractor.ExtractSource(ctx, abs, content)
	if err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	if existing != nil {
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return fmt.Errorf("delete old data: %w", err)
		}
	}

	data := &store.FileData{
		File: store.File{
			Path:        abs,
			Package:     result.Package,
			Hash:        hash,
			LastIndexed: time.Now(),
		},
		Declarations: result.Declarations,
		Supertypes:   result.Supertypes,
	}
	if _, err := e.store.CommitFile(data); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// IndexDirectory walks root and indexes every Java source file beneath it,
// skipping hidden directories and common build output.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || name == "target" || name == "build" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".java") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	return e.IndexFiles(ctx, paths)
}

// RemoveFile drops all indexed data for one file. Unindexed paths are a
// no-op.
func (e *Engine) RemoveFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	f, err := e.store.FileByPath(abs)
	if err != nil {
		return fmt.Errorf("lookup file: %w", err)
	}
	if f == nil {
		return nil
	}
	if err := e.store.DeleteFileData(f.ID); err != nil {
		return fmt.Errorf("remove %s: %w", abs, err)
	}
	return nil
}

// RemoveDirectory drops all indexed data for files under root.
func (e *Engine) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	files, err := e.store.FilesUnder(abs)
	if err != nil {
		return fmt.Errorf("files under %s: %w", abs, err)
	}
	for _, f := range files {
		if err := e.store.DeleteFileData(f.ID); err != nil {
			return fmt.Errorf("remove %s: %w", f.Path, err)
		}
	}
	return nil
}

// Severity classifies the outcome of a workspace update job.
type Severity string

const (
	SeverityOK      Severity = "ok"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityCancel  Severity = "cancel"
)

// JobResult is the outcome of a workspace update.
type JobResult struct {
	Severity   Severity `json:"severity"`
	ResultCode int      `json:"resultCode"`
	Message    string   `json:"message"`
}

// UpdateWorkspace applies a workspace-folder change: data for removed
// project URIs is dropped and added project URIs are indexed. Cancellation
// observed before or during the work yields a cancel result; the first
// failure stops the update and is reported as an error result.
func (e *Engine) UpdateWorkspace(ctx context.Context, addedURIs, removedURIs []string) JobResult {
	if err := ctx.Err(); err != nil {
		return JobResult{Severity: SeverityCancel, Message: "CANCELED"}
	}

	for _, u := range removedURIs {
		if err := e.RemoveDirectory(uriToPath(u)); err != nil {
			return JobResult{Severity: SeverityError, ResultCode: 1, Message: err.Error()}
		}
	}
	for _, u := range addedURIs {
		if err := e.IndexDirectory(ctx, uriToPath(u)); err != nil {
			if ctx.Err() != nil {
				return JobResult{Severity: SeverityCancel, Message: "CANCELED"}
			}
			return JobResult{Severity: SeverityError, ResultCode: 1, Message: err.Error()}
		}
	}
	return JobResult{Severity: SeverityOK, Message: "OK"}
}
