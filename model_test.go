package chels

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdshadow/che-ls-jdt/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())
	return s
}

// typeData builds a single-type file commit: one top-level type with the
// given supertype edges, written as (relation, name) pairs.
func typeData(path, pkg, name string, edges ...[2]string) *store.FileData {
	qualified := name
	if pkg != "" {
		qualified = pkg + "." + name
	}
	data := &store.FileData{
		File: store.File{Path: path, Package: pkg, Hash: "h-" + path, LastIndexed: time.Now()},
		Declarations: []store.Declaration{{
			ID: -1, Handle: path + "|" + name, Signature: qualified,
			Name: name, Kind: store.KindClass, Label: name,
			QualifiedLabel: name + " - " + pkg, HasLocation: true,
		}},
	}
	for i, e := range edges {
		data.Supertypes = append(data.Supertypes, store.Supertype{
			DeclarationID: -1, SuperName: e[1], Relation: e[0], Ordinal: i,
		})
	}
	return data
}

func commit(t *testing.T, s *store.Store, data *store.FileData) {
	t.Helper()
	_, err := s.CommitFile(data)
	require.NoError(t, err)
}

func chainIdentities(t *testing.T, m DeclarationModel, fileURI string) []string {
	t.Helper()
	ctx := context.Background()
	root, err := m.ResolveRoot(ctx, fileURI)
	require.NoError(t, err)
	types, err := m.Children(ctx, root)
	require.NoError(t, err)
	require.NotEmpty(t, types)
	chain, err := m.SupertypeChain(ctx, types[0])
	require.NoError(t, err)
	out := make([]string, len(chain))
	for i, d := range chain {
		out[i] = d.Identity()
	}
	return out
}

func TestResolveRootMissingFile(t *testing.T) {
	m := NewDeclarationModel(newTestStore(t))
	_, err := m.ResolveRoot(context.Background(), "file:///ws/src/Missing.java")
	require.ErrorIs(t, err, ErrNoRoot)
}

func TestResolveRootAcceptsURIAndPath(t *testing.T) {
	s := newTestStore(t)
	commit(t, s, typeData("/ws/src/A.java", "p", "A"))
	m := NewDeclarationModel(s)

	for _, ref := range []string{"file:///ws/src/A.java", "/ws/src/A.java"} {
		root, err := m.ResolveRoot(context.Background(), ref)
		require.NoError(t, err, ref)
		children, err := m.Children(context.Background(), root)
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, "p.A", children[0].Identity())
	}
}

func TestChildrenSourceOrder(t *testing.T) {
	s := newTestStore(t)
	parentID := int64(-1)
	commit(t, s, &store.FileData{
		File: store.File{Path: "/ws/src/M.java", Package: "p", Hash: "h", LastIndexed: time.Now()},
		Declarations: []store.Declaration{
			{ID: -1, Handle: "/ws/src/M.java|M", Signature: "p.M", Name: "M", Kind: store.KindClass, Label: "M", HasLocation: true},
			{ID: -2, ParentID: &parentID, Handle: "/ws/src/M.java|M:b()", Signature: "b()", Name: "b", Kind: store.KindMethod, Label: "b() : void", Ordinal: 0, HasLocation: true},
			{ID: -3, ParentID: &parentID, Handle: "/ws/src/M.java|M:a()", Signature: "a()", Name: "a", Kind: store.KindMethod, Label: "a() : void", Ordinal: 1, HasLocation: true},
		},
	})
	m := NewDeclarationModel(s)

	root, err := m.ResolveRoot(context.Background(), "/ws/src/M.java")
	require.NoError(t, err)
	types, err := m.Children(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, types, 1)

	members, err := m.Children(context.Background(), types[0])
	require.NoError(t, err)
	require.Len(t, members, 2)
	// Ordinal order, not alphabetical.
	assert.Equal(t, "b()", members[0].Identity())
	assert.Equal(t, "a()", members[1].Identity())
}

func TestSupertypeChainNearestFirst(t *testing.T) {
	s := newTestStore(t)
	commit(t, s, typeData("/ws/src/C.java", "p", "C", [2]string{"extends", "B"}, [2]string{"implements", "I"}))
	commit(t, s, typeData("/ws/src/B.java", "p", "B", [2]string{"extends", "A"}))
	commit(t, s, typeData("/ws/src/I.java", "p", "I"))
	commit(t, s, typeData("/ws/src/A.java", "p", "A"))
	m := NewDeclarationModel(s)

	// Direct supertypes in declaration order, then their supertypes.
	assert.Equal(t, []string{"p.B", "p.I", "p.A"}, chainIdentities(t, m, "/ws/src/C.java"))
}

func TestSupertypeChainCycleTerminates(t *testing.T) {
	s := newTestStore(t)
	commit(t, s, typeData("/ws/src/A.java", "p", "A", [2]string{"extends", "B"}))
	commit(t, s, typeData("/ws/src/B.java", "p", "B", [2]string{"extends", "A"}))
	m := NewDeclarationModel(s)

	assert.Equal(t, []string{"p.B"}, chainIdentities(t, m, "/ws/src/A.java"))
}

func TestSupertypeChainUnresolvedOmitted(t *testing.T) {
	s := newTestStore(t)
	commit(t, s, typeData("/ws/src/A.java", "p", "A", [2]string{"extends", "Object"}))
	m := NewDeclarationModel(s)

	assert.Empty(t, chainIdentities(t, m, "/ws/src/A.java"))
}

func TestSupertypeResolutionPrefersSameFile(t *testing.T) {
	s := newTestStore(t)
	commit(t, s, &store.FileData{
		File: store.File{Path: "/ws/src/Sub.java", Package: "p", Hash: "h", LastIndexed: time.Now()},
		Declarations: []store.Declaration{
			{ID: -1, Handle: "/ws/src/Sub.java|Sub", Signature: "p.Sub", Name: "Sub", Kind: store.KindClass, Label: "Sub", Ordinal: 0, HasLocation: true},
			{ID: -2, Handle: "/ws/src/Sub.java|Base", Signature: "p.Base", Name: "Base", Kind: store.KindClass, Label: "Base", Ordinal: 1, HasLocation: true},
		},
		Supertypes: []store.Supertype{{DeclarationID: -1, SuperName: "Base", Relation: "extends"}},
	})
	commit(t, s, typeData("/ws/src/Other.java", "q", "Base"))
	m := NewDeclarationModel(s)

	assert.Equal(t, []string{"p.Base"}, chainIdentities(t, m, "/ws/src/Sub.java"))
}

func TestSupertypeResolutionPrefersSamePackage(t *testing.T) {
	s := newTestStore(t)
	commit(t, s, typeData("/ws/src/Sub.java", "p", "Sub", [2]string{"extends", "Base"}))
	commit(t, s, typeData("/ws/src/QBase.java", "q", "Base"))
	commit(t, s, typeData("/ws/src/PBase.java", "p", "Base"))
	m := NewDeclarationModel(s)

	assert.Equal(t, []string{"p.Base"}, chainIdentities(t, m, "/ws/src/Sub.java"))
}

func TestSupertypeChainGenericNameResolved(t *testing.T) {
	s := newTestStore(t)
	commit(t, s, typeData("/ws/src/Names.java", "p", "Names", [2]string{"extends", "java.util.ArrayList<String>"}))
	commit(t, s, typeData("/ws/src/ArrayList.java", "shadow", "ArrayList"))
	m := NewDeclarationModel(s)

	// The qualifier and type arguments are stripped before lookup.
	assert.Equal(t, []string{"shadow.ArrayList"}, chainIdentities(t, m, "/ws/src/Names.java"))
}

func TestSimpleTypeName(t *testing.T) {
	cases := map[string]string{
		"Base":                        "Base",
		"java.util.List<String>":      "List",
		"Map.Entry<K, V>":             "Entry",
		"p.Outer.Inner":               "Inner",
		"Comparable<Map<String,Int>>": "Comparable",
	}
	for in, want := range cases {
		assert.Equal(t, want, simpleTypeName(in), in)
	}
}
