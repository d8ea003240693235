package store

import (
	"database/sql"
	"fmt"
)

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO files (path, package, hash, last_indexed) VALUES (?, ?, ?, ?)",
		f.Path, f.Package, f.Hash, f.LastIndexed)
	if err != nil {
		return 0, fmt.Errorf("insert file %q: %w", f.Path, err)
	}
	return res.LastInsertId()
}

func (s *Store) FileByPath(path string) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, package, hash, last_indexed FROM files WHERE path = ?", path).
		Scan(&f.ID, &f.Path, &f.Package, &f.Hash, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path %q: %w", path, err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f := &File{}
	err := s.db.QueryRow(
		"SELECT id, path, package, hash, last_indexed FROM files WHERE id = ?", id).
		Scan(&f.ID, &f.Path, &f.Package, &f.Hash, &f.LastIndexed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id %d: %w", id, err)
	}
	return f, nil
}

func (s *Store) Files() ([]*File, error) {
	rows, err := s.db.Query("SELECT id, path, package, hash, last_indexed FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Package, &f.Hash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// FilesUnder returns files whose path is prefix itself or lies below it.
func (s *Store) FilesUnder(prefix string) ([]*File, error) {
	rows, err := s.db.Query(
		"SELECT id, path, package, hash, last_indexed FROM files WHERE path = ? OR path LIKE ? ORDER BY path",
		prefix, prefix+"/%")
	if err != nil {
		return nil, fmt.Errorf("files under %q: %w", prefix, err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f := &File{}
		if err := rows.Scan(&f.ID, &f.Path, &f.Package, &f.Hash, &f.LastIndexed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

func (s *Store) InsertDeclaration(d *Declaration) (int64, error) {
	res, err := s.db.Exec(insertDeclarationSQL, declarationArgs(d)...)
	if err != nil {
		return 0, fmt.Errorf("insert declaration %q: %w", d.Name, err)
	}
	return res.LastInsertId()
}

const insertDeclarationSQL = `INSERT INTO declarations
  (file_id, parent_id, handle, signature, name, kind, label, qualified_label,
   modifiers, ordinal, has_location, start_line, start_col, end_line, end_col)
  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func declarationArgs(d *Declaration) []any {
	return []any{
		d.FileID, d.ParentID, d.Handle, d.Signature, d.Name, d.Kind, d.Label,
		d.QualifiedLabel, marshalModifiers(d.Modifiers), d.Ordinal, d.HasLocation,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	}
}

const selectDeclaration = `SELECT id, file_id, parent_id, handle, signature,
  name, kind, label, qualified_label, modifiers, ordinal, has_location,
  start_line, start_col, end_line, end_col FROM declarations`

func scanDeclaration(scanner interface{ Scan(...any) error }) (*Declaration, error) {
	d := &Declaration{}
	var modifiers string
	err := scanner.Scan(
		&d.ID, &d.FileID, &d.ParentID, &d.Handle, &d.Signature, &d.Name, &d.Kind,
		&d.Label, &d.QualifiedLabel, &modifiers, &d.Ordinal, &d.HasLocation,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol)
	if err != nil {
		return nil, err
	}
	d.Modifiers = unmarshalModifiers(modifiers)
	return d, nil
}

func (s *Store) queryDeclarations(query string, args ...any) ([]*Declaration, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query declarations: %w", err)
	}
	defer rows.Close()

	var decls []*Declaration
	for rows.Next() {
		d, err := scanDeclaration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan declaration: %w", err)
		}
		decls = append(decls, d)
	}
	return decls, rows.Err()
}

// DeclarationByID returns the declaration with the given ID, or nil.
func (s *Store) DeclarationByID(id int64) (*Declaration, error) {
	d, err := scanDeclaration(s.db.QueryRow(selectDeclaration+" WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("declaration by id %d: %w", id, err)
	}
	return d, nil
}

// DeclarationByHandle returns the declaration with the given handle, or nil.
func (s *Store) DeclarationByHandle(handle string) (*Declaration, error) {
	d, err := scanDeclaration(s.db.QueryRow(selectDeclaration+" WHERE handle = ?", handle))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("declaration by handle %q: %w", handle, err)
	}
	return d, nil
}

// TopLevelDeclarations returns a file's declarations that have no parent, in
// source order.
func (s *Store) TopLevelDeclarations(fileID int64) ([]*Declaration, error) {
	return s.queryDeclarations(
		selectDeclaration+" WHERE file_id = ? AND parent_id IS NULL ORDER BY ordinal", fileID)
}

// DeclarationChildren returns the direct children of a declaration in source
// order.
func (s *Store) DeclarationChildren(declID int64) ([]*Declaration, error) {
	return s.queryDeclarations(
		selectDeclaration+" WHERE parent_id = ? ORDER BY ordinal", declID)
}

// TypesByName returns all type-shaped declarations with the given simple
// name.
func (s *Store) TypesByName(name string) ([]*Declaration, error) {
	return s.queryDeclarations(
		selectDeclaration+` WHERE name = ? AND kind IN (?, ?, ?, ?) ORDER BY id`,
		name, KindClass, KindInterface, KindEnum, KindAnnotation)
}

func (s *Store) InsertSupertype(st *Supertype) (int64, error) {
	res, err := s.db.Exec(
		"INSERT INTO supertypes (declaration_id, super_name, relation, ordinal) VALUES (?, ?, ?, ?)",
		st.DeclarationID, st.SuperName, st.Relation, st.Ordinal)
	if err != nil {
		return 0, fmt.Errorf("insert supertype %q: %w", st.SuperName, err)
	}
	return res.LastInsertId()
}

// SupertypesOf returns the extends/implements edges declared on a type, with
// the extends edge (if any) first, then implements edges in source order.
func (s *Store) SupertypesOf(declID int64) ([]*Supertype, error) {
	rows, err := s.db.Query(
		`SELECT id, declaration_id, super_name, relation, ordinal FROM supertypes
		 WHERE declaration_id = ? ORDER BY ordinal`, declID)
	if err != nil {
		return nil, fmt.Errorf("supertypes of %d: %w", declID, err)
	}
	defer rows.Close()

	var supers []*Supertype
	for rows.Next() {
		st := &Supertype{}
		if err := rows.Scan(&st.ID, &st.DeclarationID, &st.SuperName, &st.Relation, &st.Ordinal); err != nil {
			return nil, fmt.Errorf("scan supertype: %w", err)
		}
		supers = append(supers, st)
	}
	return supers, rows.Err()
}
