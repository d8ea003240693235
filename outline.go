package chels

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"
)

// SymbolNode is one node of the file-structure tree returned to the caller:
// a rendered label, a presentation kind for icon selection, an optional
// source location, and the node's children in traversal order.
type SymbolNode struct {
	Name     string              `json:"name"`
	Kind     protocol.SymbolKind `json:"kind"`
	Location *protocol.Location  `json:"location,omitempty"`
	Children []*SymbolNode       `json:"children"`
}

// Outliner builds file-structure trees from a DeclarationModel. It holds no
// per-request state; one Outliner serves concurrent requests.
type Outliner struct {
	model DeclarationModel
}

// NewOutliner returns an Outliner reading declarations from model.
func NewOutliner(model DeclarationModel) *Outliner {
	return &Outliner{model: model}
}

// FileStructure resolves fileURI and builds the symbol tree for each
// type-shaped top-level declaration, in source order. When showInherited is
// set, each top-level type's children are merged with the members of its
// full supertype chain, nearest ancestor first; a member already seen via a
// closer declaration is not re-emitted.
//
// The traversal polls ctx before each unit of work. On cancellation the
// request aborts with ctx's error and no partial tree is returned. Any
// store fault likewise aborts the whole request.
func (o *Outliner) FileStructure(ctx context.Context, fileURI string, showInherited bool) ([]*SymbolNode, error) {
	root, err := o.model.ResolveRoot(ctx, fileURI)
	if err != nil {
		return nil, err
	}
	elements, err := o.model.Children(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("file structure %q: %w", fileURI, err)
	}

	nodes := make([]*SymbolNode, 0, len(elements))
	for _, el := range elements {
		if !el.Kind().IsType() {
			continue
		}
		node, err := o.buildNode(ctx, el, nil, el.Label(false), showInherited)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	return nodes, nil
}

// buildNode constructs the subtree rooted at element. parent is nil for
// top-level types and set for members; only top-level types have their
// supertype chain expanded, so an inherited member is never expanded for
// its own supertypes in turn.
//
// A nil return with a nil error means the element has no resolvable
// location: synthetic declarations are not navigable, so they and their
// would-be descendants are dropped before any children are computed.
func (o *Outliner) buildNode(ctx context.Context, element, parent Declaration, label string, showInherited bool) (*SymbolNode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	loc := element.Location()
	if loc == nil {
		return nil, nil
	}

	node := &SymbolNode{
		Name:     label,
		Kind:     mapKind(element),
		Location: loc,
		Children: []*SymbolNode{},
	}

	if element.IsContainer() {
		// One visited-set per container level, shared between own members
		// and the supertype walk: whoever claims an identity first owns it.
		found := make(map[string]bool)

		children, err := o.model.Children(ctx, element)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if found[child.Identity()] {
				continue
			}
			found[child.Identity()] = true
			built, err := o.buildNode(ctx, child, element, child.Label(false), showInherited)
			if err != nil {
				return nil, err
			}
			if built != nil {
				node.Children = append(node.Children, built)
			}
		}

		if showInherited && parent == nil && element.Kind().IsType() {
			supers, err := o.model.SupertypeChain(ctx, element)
			if err != nil {
				return nil, err
			}
			// The chain is contractually cycle-free and nearest-first; the
			// seen-set below keeps a malformed chain from looping.
			seenSupers := make(map[string]bool)
			for _, super := range supers {
				if seenSupers[super.Identity()] {
					continue
				}
				seenSupers[super.Identity()] = true

				members, err := o.model.Children(ctx, super)
				if err != nil {
					return nil, err
				}
				for _, member := range members {
					if member.Kind() == KindInitializer || found[member.Identity()] {
						continue
					}
					found[member.Identity()] = true
					built, err := o.buildNode(ctx, member, super, member.Label(true), showInherited)
					if err != nil {
						return nil, err
					}
					if built != nil {
						node.Children = append(node.Children, built)
					}
				}
			}
		}
	}

	return node, nil
}

// mapKind maps a declaration to the presentation kind used for outline
// icons. Method-shaped declarations, constructors included, always map to
// Method so icons stay consistent across hosts.
func mapKind(d Declaration) protocol.SymbolKind {
	switch d.Kind() {
	case KindMethod, KindConstructor:
		return protocol.SymbolKindMethod
	case KindClass, KindAnnotation:
		return protocol.SymbolKindClass
	case KindInterface:
		return protocol.SymbolKindInterface
	case KindEnum:
		return protocol.SymbolKindEnum
	case KindField:
		return protocol.SymbolKindField
	case KindEnumConstant:
		return protocol.SymbolKindEnumMember
	case KindInitializer:
		return protocol.SymbolKindConstructor
	default:
		return protocol.SymbolKindVariable
	}
}
