// Package chels implements the language-structure service behind the Che
// editor tooling for Java: given an indexed source file, it produces the
// nested symbol tree ("file structure") that editor front-ends render as
// outline and breadcrumb views, optionally augmented with members inherited
// from supertypes.
//
// # Pipeline
//
// The service operates in two phases:
//
//  1. Index: parse each .java file with tree-sitter, extract its
//     declarations (types, methods, constructors, fields, enum constants,
//     initializer blocks) and supertype edges, and write them to SQLite.
//
//  2. Query: resolve a file URI to its declaration root and build the
//     symbol tree, walking the supertype chain nearest-first when inherited
//     members are requested.
//
// # Usage
//
// Create an Engine, index a workspace, and request file structures:
//
//	e, err := chels.New("index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	nodes, err := e.FileStructure(ctx, "file:///path/to/project/src/Foo.java", true)
//
// The tree-building core is [Outliner], which depends only on the
// [DeclarationModel] capability interface; [Engine] wires it to the
// SQLite-backed model. Traversal is cooperatively cancellable through the
// request context: cancellation aborts the whole request, never yielding a
// partial tree.
//
// The internal/server package exposes the same operations to a language
// tooling host over JSON-RPC as the executeCommand commands
// che.jdt.ls.extension.fileStructure and che.jdt.ls.extension.updateWorkspace.
package chels
