// Package extract turns Java source files into declaration rows for the
// store: types, methods, constructors, fields, enum constants, initializer
// blocks, and the supertype edges between types. Parsing is tree-sitter;
// no name resolution happens here.
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/bdshadow/che-ls-jdt/internal/store"
)

// Result is one file's extraction output. Declarations carry fake
// (negative) IDs; parents precede children, so Store.CommitFile can remap
// them in one pass.
type Result struct {
	Package      string
	Declarations []store.Declaration
	Supertypes   []store.Supertype
}

// Extractor parses Java sources. Not safe for concurrent use; the engine
// indexes serially.
type Extractor struct {
	parser *sitter.Parser
}

// New creates an Extractor with a Java grammar loaded.
func New() *Extractor {
	p := sitter.NewParser()
	p.SetLanguage(java.GetLanguage())
	return &Extractor{parser: p}
}

// ExtractFile extracts all declarations from the file at path.
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return e.ExtractSource(ctx, path, source)
}

// ExtractSource extracts all declarations from source bytes. path is used
// only to build stable declaration handles.
func (e *Extractor) ExtractSource(ctx context.Context, path string, source []byte) (*Result, error) {
	tree, err := e.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	x := &extraction{source: source, path: path}
	x.program(tree.RootNode())

	return &Result{
		Package:      x.pkg,
		Declarations: x.decls,
		Supertypes:   x.supers,
	}, nil
}

// extraction accumulates one file's rows during the AST walk.
type extraction struct {
	source []byte
	path   string
	pkg    string
	nextID int64
	decls  []store.Declaration
	supers []store.Supertype
}

func (x *extraction) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(x.source)
}

// add assigns the next fake ID and buffers the declaration.
func (x *extraction) add(d store.Declaration) int64 {
	x.nextID--
	d.ID = x.nextID
	x.decls = append(x.decls, d)
	return d.ID
}

func (x *extraction) program(root *sitter.Node) {
	ordinal := 0
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "package_declaration":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				name := child.NamedChild(j)
				if name.Type() == "identifier" || name.Type() == "scoped_identifier" {
					x.pkg = x.text(name)
				}
			}
		case "class_declaration", "interface_declaration", "enum_declaration", "annotation_type_declaration", "record_declaration":
			x.typeDecl(child, nil, "", ordinal)
			ordinal++
		}
	}
}

func typeKind(nodeType string) string {
	switch nodeType {
	case "interface_declaration":
		return store.KindInterface
	case "enum_declaration":
		return store.KindEnum
	case "annotation_type_declaration":
		return store.KindAnnotation
	}
	return store.KindClass
}

// typeDecl extracts one type declaration, its supertype edges, and all of
// its members. typePath is the dot-joined enclosing type path, empty for
// top-level types.
func (x *extraction) typeDecl(node *sitter.Node, parentID *int64, typePath string, ordinal int) {
	name := x.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}
	path := name
	if typePath != "" {
		path = typePath + "." + name
	}
	qualified := path
	if x.pkg != "" {
		qualified = x.pkg + "." + path
	}

	label := name + x.text(node.ChildByFieldName("type_parameters"))
	kind := typeKind(node.Type())
	declaring := x.pkg
	if typePath != "" {
		declaring = typePath
		if x.pkg != "" {
			declaring = x.pkg + "." + typePath
		}
	}

	id := x.add(store.Declaration{
		ParentID:       parentID,
		Handle:         x.handle(path, ordinal, qualified),
		Signature:      qualified,
		Name:           name,
		Kind:           kind,
		Label:          label,
		QualifiedLabel: x.postQualify(label, declaring),
		Modifiers:      x.modifiers(node),
		Ordinal:        ordinal,
		HasLocation:    true,
		StartLine:      int(node.StartPoint().Row),
		StartCol:       int(node.StartPoint().Column),
		EndLine:        int(node.EndPoint().Row),
		EndCol:         int(node.EndPoint().Column),
	})

	x.supertypes(node, id)

	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}
	state := &memberState{typeID: id, typeName: name, typePath: path, qualified: qualified}
	x.members(body, state)

	switch kind {
	case store.KindClass:
		if !state.hasConstructor {
			x.implicitConstructor(state)
		}
	case store.KindEnum:
		x.implicitEnumMethods(state)
	}
}

// supertypes records the extends/implements edges as written in source. The
// extends edge (if any) gets ordinal 0 so the chain walk visits it first.
func (x *extraction) supertypes(node *sitter.Node, typeID int64) {
	ord := 0
	addEdge := func(typeNode *sitter.Node, relation string) {
		x.supers = append(x.supers, store.Supertype{
			DeclarationID: typeID,
			SuperName:     x.text(typeNode),
			Relation:      relation,
			Ordinal:       ord,
		})
		ord++
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "superclass":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				addEdge(child.NamedChild(j), "extends")
			}
		case "super_interfaces", "extends_interfaces":
			relation := "implements"
			if child.Type() == "extends_interfaces" {
				relation = "extends"
			}
			for j := 0; j < int(child.NamedChildCount()); j++ {
				list := child.NamedChild(j)
				if list.Type() != "type_list" {
					continue
				}
				for k := 0; k < int(list.NamedChildCount()); k++ {
					addEdge(list.NamedChild(k), relation)
				}
			}
		}
	}
}

// memberState tracks per-container extraction state across body walks
// (enum bodies nest members inside enum_body_declarations).
type memberState struct {
	typeID         int64
	typeName       string
	typePath       string
	qualified      string
	ordinal        int
	initializers   int
	hasConstructor bool
}

func (x *extraction) members(body *sitter.Node, st *memberState) {
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		switch member.Type() {
		case "field_declaration", "constant_declaration":
			x.fields(member, st)
		case "method_declaration":
			x.method(member, st)
		case "constructor_declaration":
			st.hasConstructor = true
			x.constructor(member, st)
		case "static_initializer":
			x.initializer(member, st, true)
		case "block":
			// A bare block directly in a class body is an instance
			// initializer.
			x.initializer(member, st, false)
		case "enum_constant":
			x.enumConstant(member, st)
		case "enum_body_declarations":
			x.members(member, st)
		case "annotation_type_element_declaration":
			x.annotationElement(member, st)
		case "class_declaration", "interface_declaration", "enum_declaration", "annotation_type_declaration", "record_declaration":
			x.typeDecl(member, &st.typeID, st.typePath, st.ordinal)
			st.ordinal++
		}
	}
}

// fields emits one declaration per variable declarator: "int a, b;" is two
// fields.
func (x *extraction) fields(node *sitter.Node, st *memberState) {
	fieldType := x.text(node.ChildByFieldName("type"))
	for i := 0; i < int(node.NamedChildCount()); i++ {
		decl := node.NamedChild(i)
		if decl.Type() != "variable_declarator" {
			continue
		}
		name := x.text(decl.ChildByFieldName("name"))
		if name == "" {
			continue
		}
		label := name + " : " + fieldType
		x.add(store.Declaration{
			ParentID:       &st.typeID,
			Handle:         x.handle(st.typePath, st.ordinal, name),
			Signature:      name,
			Name:           name,
			Kind:           store.KindField,
			Label:          label,
			QualifiedLabel: x.postQualify(label, st.qualified),
			Modifiers:      x.modifiers(node),
			Ordinal:        st.ordinal,
			HasLocation:    true,
			StartLine:      int(decl.StartPoint().Row),
			StartCol:       int(decl.StartPoint().Column),
			EndLine:        int(decl.EndPoint().Row),
			EndCol:         int(decl.EndPoint().Column),
		})
		st.ordinal++
	}
}

func (x *extraction) method(node *sitter.Node, st *memberState) {
	name := x.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}
	params := x.paramTypes(node.ChildByFieldName("parameters"))
	returnType := x.text(node.ChildByFieldName("type"))
	signature := name + "(" + strings.Join(params, ",") + ")"
	label := name + "(" + strings.Join(params, ", ") + ")"
	if returnType != "" {
		label += " : " + returnType
	}
	x.addMember(node, st, store.KindMethod, name, signature, label)
}

func (x *extraction) constructor(node *sitter.Node, st *memberState) {
	name := x.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}
	params := x.paramTypes(node.ChildByFieldName("parameters"))
	signature := name + "(" + strings.Join(params, ",") + ")"
	label := name + "(" + strings.Join(params, ", ") + ")"
	x.addMember(node, st, store.KindConstructor, name, signature, label)
}

func (x *extraction) initializer(node *sitter.Node, st *memberState, static bool) {
	st.initializers++
	var mods []string
	if static {
		mods = []string{"static"}
	}
	signature := fmt.Sprintf("%s#init%d", st.qualified, st.initializers)
	x.add(store.Declaration{
		ParentID:       &st.typeID,
		Handle:         x.handle(st.typePath, st.ordinal, signature),
		Signature:      signature,
		Name:           "{...}",
		Kind:           store.KindInitializer,
		Label:          "{...}",
		QualifiedLabel: x.postQualify("{...}", st.qualified),
		Modifiers:      mods,
		Ordinal:        st.ordinal,
		HasLocation:    true,
		StartLine:      int(node.StartPoint().Row),
		StartCol:       int(node.StartPoint().Column),
		EndLine:        int(node.EndPoint().Row),
		EndCol:         int(node.EndPoint().Column),
	})
	st.ordinal++
}

func (x *extraction) enumConstant(node *sitter.Node, st *memberState) {
	name := x.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}
	x.addMember(node, st, store.KindEnumConst, name, name, name)
}

// annotationElement handles "String value();" inside @interface bodies,
// which the grammar does not shape as a method_declaration.
func (x *extraction) annotationElement(node *sitter.Node, st *memberState) {
	name := x.text(node.ChildByFieldName("name"))
	if name == "" {
		return
	}
	signature := name + "()"
	label := signature
	if t := x.text(node.ChildByFieldName("type")); t != "" {
		label += " : " + t
	}
	x.addMember(node, st, store.KindMethod, name, signature, label)
}

func (x *extraction) addMember(node *sitter.Node, st *memberState, kind, name, signature, label string) {
	x.add(store.Declaration{
		ParentID:       &st.typeID,
		Handle:         x.handle(st.typePath, st.ordinal, signature),
		Signature:      signature,
		Name:           name,
		Kind:           kind,
		Label:          label,
		QualifiedLabel: x.postQualify(label, st.qualified),
		Modifiers:      x.modifiers(node),
		Ordinal:        st.ordinal,
		HasLocation:    true,
		StartLine:      int(node.StartPoint().Row),
		StartCol:       int(node.StartPoint().Column),
		EndLine:        int(node.EndPoint().Row),
		EndCol:         int(node.EndPoint().Column),
	})
	st.ordinal++
}

// implicitConstructor records the compiler-supplied default constructor of
// a class without one. It has no source location, so the outline drops it;
// it exists so the model mirrors what the type really has.
func (x *extraction) implicitConstructor(st *memberState) {
	signature := st.typeName + "()"
	x.add(store.Declaration{
		ParentID:       &st.typeID,
		Handle:         x.handle(st.typePath, st.ordinal, signature),
		Signature:      signature,
		Name:           st.typeName,
		Kind:           store.KindConstructor,
		Label:          signature,
		QualifiedLabel: x.postQualify(signature, st.qualified),
		Ordinal:        st.ordinal,
		HasLocation:    false,
	})
	st.ordinal++
}

// implicitEnumMethods records the values() and valueOf(String) methods the
// compiler adds to every enum. Like all synthetic members they carry no
// location.
func (x *extraction) implicitEnumMethods(st *memberState) {
	for _, m := range []struct{ signature, label string }{
		{"values()", "values() : " + st.typeName + "[]"},
		{"valueOf(String)", "valueOf(String) : " + st.typeName},
	} {
		x.add(store.Declaration{
			ParentID:       &st.typeID,
			Handle:         x.handle(st.typePath, st.ordinal, m.signature),
			Signature:      m.signature,
			Name:           strings.SplitN(m.signature, "(", 2)[0],
			Kind:           store.KindMethod,
			Label:          m.label,
			QualifiedLabel: x.postQualify(m.label, st.qualified),
			Modifiers:      []string{"public", "static"},
			Ordinal:        st.ordinal,
			HasLocation:    false,
		})
		st.ordinal++
	}
}

// paramTypes returns the parameter type texts as written, "..." suffixed
// for varargs. Receiver parameters are skipped.
func (x *extraction) paramTypes(params *sitter.Node) []string {
	if params == nil {
		return nil
	}
	var types []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "formal_parameter":
			types = append(types, x.text(p.ChildByFieldName("type")))
		case "spread_parameter":
			if p.NamedChildCount() > 0 {
				types = append(types, x.text(p.NamedChild(0))+"...")
			}
		}
	}
	return types
}

// modifiers collects keyword modifiers ("public", "static", ...) from a
// declaration, ignoring annotations.
func (x *extraction) modifiers(node *sitter.Node) []string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() != "modifiers" {
			continue
		}
		var mods []string
		for j := 0; j < int(child.ChildCount()); j++ {
			tok := child.Child(j)
			switch tok.Type() {
			case "marker_annotation", "annotation":
				continue
			}
			mods = append(mods, x.text(tok))
		}
		return mods
	}
	return nil
}

// handle builds the per-declaration unique key: file path, enclosing type
// path, sibling ordinal, and signature.
func (x *extraction) handle(typePath string, ordinal int, signature string) string {
	return fmt.Sprintf("%s|%s#%d:%s", x.path, typePath, ordinal, signature)
}

// postQualify renders the inherited-member label variant: the plain label
// followed by the declaring context, "f(int) : void - pkg.Parent".
func (x *extraction) postQualify(label, declaring string) string {
	if declaring == "" {
		return label
	}
	return label + " - " + declaring
}
