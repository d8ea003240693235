package store

import "time"

// File is an indexed source file.
type File struct {
	ID          int64
	Path        string
	Package     string
	Hash        string
	LastIndexed time.Time
}

// Declaration kinds as stored in the declarations.kind column.
const (
	KindClass       = "class"
	KindInterface   = "interface"
	KindEnum        = "enum"
	KindAnnotation  = "annotation"
	KindMethod      = "method"
	KindConstructor = "constructor"
	KindField       = "field"
	KindEnumConst   = "enum_constant"
	KindInitializer = "initializer"
)

// Declaration is one named program construct: a type, method, constructor,
// field, enum constant, or initializer block. Handle is unique across the
// whole index; Signature is the dedup identity, shared by a member and the
// members it overrides (method signature, field name). Ordinal preserves
// source declaration order among siblings. HasLocation is false for
// synthetic declarations (implicit constructors, enum values()/valueOf()).
type Declaration struct {
	ID             int64
	FileID         int64
	ParentID       *int64
	Handle         string
	Signature      string
	Name           string
	Kind           string
	Label          string
	QualifiedLabel string
	Modifiers      []string
	Ordinal        int
	HasLocation    bool
	StartLine      int
	StartCol       int
	EndLine        int
	EndCol         int
}

// IsType reports whether kind names a type-shaped declaration (a container
// that can take part in a supertype hierarchy).
func IsType(kind string) bool {
	switch kind {
	case KindClass, KindInterface, KindEnum, KindAnnotation:
		return true
	}
	return false
}

// Supertype is one extends/implements edge recorded for a type declaration.
// SuperName is the type name as written in source; resolution against
// indexed declarations happens at query time.
type Supertype struct {
	ID            int64
	DeclarationID int64
	SuperName     string
	Relation      string // "extends" or "implements"
	Ordinal       int
}
