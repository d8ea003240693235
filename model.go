package chels

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/bdshadow/che-ls-jdt/internal/store"
)

// DeclarationKind classifies a declaration for tree construction. It is
// coarser than the UI presentation kind; see mapKind for that mapping.
type DeclarationKind int

const (
	KindOther DeclarationKind = iota
	KindClass
	KindInterface
	KindEnum
	KindAnnotation
	KindMethod
	KindConstructor
	KindField
	KindEnumConstant
	KindInitializer
)

// IsType reports whether the kind names a type-shaped declaration, the only
// shape that participates in supertype hierarchies and appears at the top
// level of a file structure.
func (k DeclarationKind) IsType() bool {
	switch k {
	case KindClass, KindInterface, KindEnum, KindAnnotation:
		return true
	}
	return false
}

func (k DeclarationKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindInterface:
		return "interface"
	case KindEnum:
		return "enum"
	case KindAnnotation:
		return "annotation"
	case KindMethod:
		return "method"
	case KindConstructor:
		return "constructor"
	case KindField:
		return "field"
	case KindEnumConstant:
		return "enum_constant"
	case KindInitializer:
		return "initializer"
	}
	return "other"
}

// Declaration is an opaque handle to one program declaration. Identity is
// the dedup key: an overriding member and the member it overrides share one
// identity, so the visited-set insertion order reproduces shadowing
// semantics without explicit override detection. Location returns nil for
// synthetic declarations (implicit constructors, enum values()/valueOf()).
type Declaration interface {
	Identity() string
	Kind() DeclarationKind
	IsContainer() bool
	Label(qualified bool) string
	Location() *protocol.Location
}

// DeclarationModel is the navigable-declaration capability the tree builder
// consumes. Implementations must be safe for concurrent readers; the model
// is read-only during a request.
type DeclarationModel interface {
	// ResolveRoot resolves a source-file URI to its root container
	// declaration. Returns an ErrNoRoot-wrapped error when the URI names no
	// indexed file.
	ResolveRoot(ctx context.Context, fileURI string) (Declaration, error)

	// Children returns the direct children of a container in source order.
	Children(ctx context.Context, d Declaration) ([]Declaration, error)

	// SupertypeChain returns all supertypes of a type-shaped declaration,
	// direct and transitive, ordered nearest ancestor first. Supertypes not
	// present in the index (library types) are omitted. The result is
	// finite even if the stored edges form a cycle.
	SupertypeChain(ctx context.Context, d Declaration) ([]Declaration, error)
}

// NewDeclarationModel returns a DeclarationModel reading from s.
func NewDeclarationModel(s *store.Store) DeclarationModel {
	return &storeModel{s: s}
}

type storeModel struct {
	s *store.Store
}

// rootDecl is the compilation-unit container a file URI resolves to. It is
// never emitted itself; only its type-shaped children are.
type rootDecl struct {
	fileID int64
	path   string
}

func (r *rootDecl) Identity() string           { return "unit:" + r.path }
func (r *rootDecl) Kind() DeclarationKind      { return KindOther }
func (r *rootDecl) IsContainer() bool          { return true }
func (r *rootDecl) Label(bool) string          { return filepath.Base(r.path) }
func (r *rootDecl) Location() *protocol.Location { return nil }

// storeDecl adapts one declarations row to the Declaration capability.
type storeDecl struct {
	row  *store.Declaration
	path string
}

func (d *storeDecl) Identity() string      { return d.row.Signature }
func (d *storeDecl) Kind() DeclarationKind { return kindFromStore(d.row.Kind) }

func (d *storeDecl) IsContainer() bool {
	return store.IsType(d.row.Kind)
}

func (d *storeDecl) Label(qualified bool) string {
	if qualified {
		return d.row.QualifiedLabel
	}
	return d.row.Label
}

func (d *storeDecl) Location() *protocol.Location {
	if !d.row.HasLocation {
		return nil
	}
	return &protocol.Location{
		URI: uri.File(d.path),
		Range: protocol.Range{
			Start: protocol.Position{Line: uint32(d.row.StartLine), Character: uint32(d.row.StartCol)},
			End:   protocol.Position{Line: uint32(d.row.EndLine), Character: uint32(d.row.EndCol)},
		},
	}
}

func kindFromStore(kind string) DeclarationKind {
	switch kind {
	case store.KindClass:
		return KindClass
	case store.KindInterface:
		return KindInterface
	case store.KindEnum:
		return KindEnum
	case store.KindAnnotation:
		return KindAnnotation
	case store.KindMethod:
		return KindMethod
	case store.KindConstructor:
		return KindConstructor
	case store.KindField:
		return KindField
	case store.KindEnumConst:
		return KindEnumConstant
	case store.KindInitializer:
		return KindInitializer
	}
	return KindOther
}

func (m *storeModel) ResolveRoot(ctx context.Context, fileURI string) (Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := uriToPath(fileURI)
	f, err := m.s.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", fileURI, err)
	}
	if f == nil {
		return nil, fmt.Errorf("resolve root %q: %w", fileURI, ErrNoRoot)
	}
	return &rootDecl{fileID: f.ID, path: f.Path}, nil
}

func (m *storeModel) Children(ctx context.Context, d Declaration) ([]Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch n := d.(type) {
	case *rootDecl:
		rows, err := m.s.TopLevelDeclarations(n.fileID)
		if err != nil {
			return nil, fmt.Errorf("children of %s: %w", n.path, err)
		}
		return m.wrap(rows, n.path), nil
	case *storeDecl:
		rows, err := m.s.DeclarationChildren(n.row.ID)
		if err != nil {
			return nil, fmt.Errorf("children of %s: %w", n.row.Handle, err)
		}
		return m.wrap(rows, n.path), nil
	}
	return nil, nil
}

func (m *storeModel) wrap(rows []*store.Declaration, path string) []Declaration {
	decls := make([]Declaration, len(rows))
	for i, row := range rows {
		decls[i] = &storeDecl{row: row, path: path}
	}
	return decls
}

// SupertypeChain walks the stored extends/implements edges breadth-first,
// which yields the nearest-first transitive order the tree builder's
// shadowing rule depends on. A seen-set over declaration IDs guarantees
// termination on cyclic edge data.
func (m *storeModel) SupertypeChain(ctx context.Context, d Declaration) ([]Declaration, error) {
	sd, ok := d.(*storeDecl)
	if !ok || !store.IsType(sd.row.Kind) {
		return nil, nil
	}

	var chain []Declaration
	seen := map[int64]bool{sd.row.ID: true}
	queue := []*store.Declaration{sd.row}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cur := queue[0]
		queue = queue[1:]

		edges, err := m.s.SupertypesOf(cur.ID)
		if err != nil {
			return nil, fmt.Errorf("supertype chain of %s: %w", sd.row.Handle, err)
		}
		for _, edge := range edges {
			super, err := m.resolveSuperName(cur, edge.SuperName)
			if err != nil {
				return nil, fmt.Errorf("supertype chain of %s: %w", sd.row.Handle, err)
			}
			if super == nil || seen[super.ID] {
				continue
			}
			seen[super.ID] = true
			path, err := m.filePath(super.FileID)
			if err != nil {
				return nil, fmt.Errorf("supertype chain of %s: %w", sd.row.Handle, err)
			}
			chain = append(chain, &storeDecl{row: super, path: path})
			queue = append(queue, super)
		}
	}
	return chain, nil
}

// resolveSuperName resolves a supertype name as written in source to an
// indexed type declaration. Candidates sharing the simple name are
// disambiguated by proximity: same file first, then same package, then any.
// Unresolvable names (library types such as java.lang.Object) yield nil.
func (m *storeModel) resolveSuperName(from *store.Declaration, superName string) (*store.Declaration, error) {
	simple := simpleTypeName(superName)
	if simple == "" {
		return nil, nil
	}
	candidates, err := m.s.TypesByName(simple)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	for _, c := range candidates {
		if c.FileID == from.FileID {
			return c, nil
		}
	}
	fromFile, err := m.s.FileByID(from.FileID)
	if err != nil {
		return nil, err
	}
	if fromFile != nil {
		for _, c := range candidates {
			cf, err := m.s.FileByID(c.FileID)
			if err != nil {
				return nil, err
			}
			if cf != nil && cf.Package == fromFile.Package {
				return c, nil
			}
		}
	}
	return candidates[0], nil
}

func (m *storeModel) filePath(fileID int64) (string, error) {
	f, err := m.s.FileByID(fileID)
	if err != nil {
		return "", err
	}
	if f == nil {
		return "", fmt.Errorf("file %d not found", fileID)
	}
	return f.Path, nil
}

// simpleTypeName strips a package qualifier and type arguments:
// "java.util.List<String>" -> "List".
func simpleTypeName(name string) string {
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSpace(name)
}

// uriToPath converts a file:// URI to a filesystem path. Plain paths pass
// through unchanged so CLI callers can hand paths in directly.
func uriToPath(s string) string {
	if !strings.HasPrefix(s, "file://") {
		return s
	}
	parsed, err := uri.Parse(s)
	if err != nil {
		return strings.TrimPrefix(s, "file://")
	}
	return parsed.Filename()
}
