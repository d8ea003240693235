package store

import (
	"fmt"
)

// FileData is the full extraction output for one source file, buffered in
// memory before a single transactional commit. Declarations carry fake
// (negative) IDs assigned by the extractor; ParentID and
// Supertype.DeclarationID may reference those fake IDs.
type FileData struct {
	File         File
	Declarations []Declaration
	Supertypes   []Supertype
}

// CommitFile inserts one file's extraction output within a single
// transaction. Fake (negative) IDs are remapped to real (positive,
// AUTOINCREMENT) IDs, and all references within the batch are rewritten
// using the fakeToReal mapping. Declarations must be ordered so that a
// parent precedes its children.
//
// Insert order respects FK dependencies:
//  1. File row
//  2. Declarations (parent_id may be fake)
//  3. Supertypes (declaration_id is fake)
//
// Returns the real file ID.
func (s *Store) CommitFile(data *FileData) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("commit file: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		"INSERT INTO files (path, package, hash, last_indexed) VALUES (?, ?, ?, ?)",
		data.File.Path, data.File.Package, data.File.Hash, data.File.LastIndexed)
	if err != nil {
		return 0, fmt.Errorf("commit file: file %q: %w", data.File.Path, err)
	}
	fileID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("commit file: file id: %w", err)
	}

	fakeToReal := make(map[int64]int64)

	for i := range data.Declarations {
		d := data.Declarations[i]
		d.FileID = fileID
		if d.ParentID != nil && *d.ParentID < 0 {
			realID, ok := fakeToReal[*d.ParentID]
			if !ok {
				return 0, fmt.Errorf("commit file: declaration %q has parent_id=%d not yet committed", d.Name, *d.ParentID)
			}
			d.ParentID = &realID
		}
		res, err := tx.Exec(insertDeclarationSQL, declarationArgs(&d)...)
		if err != nil {
			return 0, fmt.Errorf("commit file: declaration %q: %w", d.Name, err)
		}
		realID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("commit file: declaration id: %w", err)
		}
		fakeToReal[data.Declarations[i].ID] = realID
	}

	for i := range data.Supertypes {
		st := data.Supertypes[i]
		if st.DeclarationID < 0 {
			realID, ok := fakeToReal[st.DeclarationID]
			if !ok {
				return 0, fmt.Errorf("commit file: supertype %q has declaration_id=%d not in batch", st.SuperName, st.DeclarationID)
			}
			st.DeclarationID = realID
		}
		if _, err := tx.Exec(
			"INSERT INTO supertypes (declaration_id, super_name, relation, ordinal) VALUES (?, ?, ?, ?)",
			st.DeclarationID, st.SuperName, st.Relation, st.Ordinal); err != nil {
			return 0, fmt.Errorf("commit file: supertype %q: %w", st.SuperName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit file: commit: %w", err)
	}
	return fileID, nil
}
