package visitor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
	"github.com/josephleblanc/crategraph/internal/rustsrc"
)

var primitiveNames = map[string]bool{
	"bool": true, "char": true, "str": true,
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true, "isize": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true, "usize": true,
	"f32": true, "f64": true,
}

var typeNodeKinds = map[string]bool{
	rustsrc.KindTypeIdentifier:       true,
	rustsrc.KindScopedTypeIdentifier: true,
	rustsrc.KindGenericType:          true,
	rustsrc.KindReferenceType:        true,
	rustsrc.KindPointerType:          true,
	rustsrc.KindTupleType:            true,
	rustsrc.KindArrayType:            true,
	rustsrc.KindSliceType:            true,
	rustsrc.KindFunctionType:         true,
	rustsrc.KindUnitType:             true,
	rustsrc.KindPrimitiveType:        true,
	rustsrc.KindDynamicType:          true,
	rustsrc.KindAbstractType:         true,
	rustsrc.KindNeverType:            true,
}

func normalizeTypeText(s string) string {
	return wsRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// internType interns the type under a node and returns its id. Identical
// type text yields the identical id within a crate, except for types that
// reference the enclosing definition scope (Self or an in-scope generic
// parameter), whose identity is additionally qualified by that scope.
func (v *fileVisitor) internType(n *tree_sitter.Node) ids.TypeID {
	id, _ := v.internTypeNode(n)
	return id
}

// internSelfType interns the implicit Self of a self parameter. Always
// scope-qualified.
func (v *fileVisitor) internSelfType() ids.TypeID {
	scope := v.currentScope()
	key := typeKey{text: "Self", scope: scope}
	if id, ok := v.typeCache[key]; ok {
		return id
	}
	shape := ids.TypeShape(string(graph.TypeNamed), "Self", nil, scope)
	id := ids.NewTypeID(v.job.CrateNS, shape)
	v.partial.Types.Insert(&graph.TypeNode{
		ID:   id,
		Kind: graph.TypeNamed,
		Path: []string{"Self"},
		Text: "Self",
	})
	v.typeCache[key] = id
	return id
}

// internTypeNode returns the type id and whether the type is
// scope-relative. Scope-relative types are cached per enclosing scope;
// everything else is cached file-wide under the bare text.
func (v *fileVisitor) internTypeNode(n *tree_sitter.Node) (ids.TypeID, bool) {
	text := normalizeTypeText(rustsrc.NodeText(n, v.source))
	scope := v.currentScope()
	if id, ok := v.typeCache[typeKey{text: text, scope: scope}]; ok {
		return id, true
	}
	// The unscoped cache cannot be consulted yet: whether this occurrence
	// is scope-relative depends on the enclosing generics, so the same
	// text may legitimately name two different types.

	var (
		kind    graph.TypeKind
		path    []string
		related []ids.TypeID
		scoped  bool
		mutable bool
	)

	recurse := func(c *tree_sitter.Node) {
		cid, cs := v.internTypeNode(c)
		related = append(related, cid)
		scoped = scoped || cs
	}

	switch n.Kind() {
	case rustsrc.KindTypeIdentifier, rustsrc.KindPrimitiveType, rustsrc.KindIdentifier:
		kind = graph.TypeNamed
		path = []string{text}
		scoped = text == "Self" || v.inScopeGeneric(text)

	case rustsrc.KindScopedTypeIdentifier:
		kind = graph.TypeNamed
		path = joinSegments(nil, text)
		scoped = len(path) > 0 && (path[0] == "Self" || v.inScopeGeneric(path[0]))

	case rustsrc.KindGenericType:
		kind = graph.TypeNamed
		if base := n.ChildByFieldName("type"); base != nil {
			path = joinSegments(nil, normalizeTypeText(rustsrc.NodeText(base, v.source)))
			scoped = len(path) > 0 && (path[0] == "Self" || v.inScopeGeneric(path[0]))
		}
		if args := n.ChildByFieldName("type_arguments"); args != nil {
			for _, a := range rustsrc.NamedChildren(args) {
				if typeNodeKinds[a.Kind()] {
					recurse(a)
				}
			}
		}

	case rustsrc.KindReferenceType:
		kind = graph.TypeReference
		mutable = hasMutableSpecifier(n)
		if elem := n.ChildByFieldName("type"); elem != nil {
			recurse(elem)
		}

	case rustsrc.KindPointerType:
		kind = graph.TypeRawPointer
		mutable = hasMutableSpecifier(n)
		if elem := n.ChildByFieldName("type"); elem != nil {
			recurse(elem)
		}

	case rustsrc.KindSliceType:
		kind = graph.TypeSlice
		if elem := n.ChildByFieldName("element"); elem != nil {
			recurse(elem)
		} else if elem := n.NamedChild(0); elem != nil {
			recurse(elem)
		}

	case rustsrc.KindArrayType:
		kind = graph.TypeSlice
		if n.ChildByFieldName("length") != nil {
			kind = graph.TypeArray
		}
		if elem := n.ChildByFieldName("element"); elem != nil {
			recurse(elem)
		}

	case rustsrc.KindTupleType:
		kind = graph.TypeTuple
		for _, c := range rustsrc.NamedChildren(n) {
			if typeNodeKinds[c.Kind()] {
				recurse(c)
			}
		}

	case rustsrc.KindFunctionType:
		kind = graph.TypeFunction
		if params := n.ChildByFieldName("parameters"); params != nil {
			for _, c := range rustsrc.NamedChildren(params) {
				if typeNodeKinds[c.Kind()] {
					recurse(c)
				}
			}
		}
		if ret := n.ChildByFieldName("return_type"); ret != nil {
			recurse(ret)
		}

	case rustsrc.KindDynamicType:
		kind = graph.TypeTraitObject
		for _, c := range rustsrc.NamedChildren(n) {
			if typeNodeKinds[c.Kind()] {
				recurse(c)
			}
		}

	case rustsrc.KindAbstractType:
		kind = graph.TypeImplTrait
		if tr := n.ChildByFieldName("trait"); tr != nil && typeNodeKinds[tr.Kind()] {
			recurse(tr)
		}

	case rustsrc.KindNeverType:
		kind = graph.TypeNever

	case rustsrc.KindUnitType:
		kind = graph.TypeUnit

	default:
		if text == "_" {
			kind = graph.TypeInferred
		} else {
			kind = graph.TypeUnknown
		}
	}

	key := typeKey{text: text}
	if scoped {
		key.scope = scope
	}
	if id, ok := v.typeCache[key]; ok {
		return id, scoped
	}

	shapeScope := ids.NodeID{}
	if scoped {
		shapeScope = scope
	}
	shape := ids.TypeShape(string(kind), text, related, shapeScope)
	id := ids.NewTypeID(v.job.CrateNS, shape)

	v.partial.Types.Insert(&graph.TypeNode{
		ID:      id,
		Kind:    kind,
		Path:    path,
		Text:    text,
		Related: related,
		Mutable: mutable,
	})
	v.typeCache[key] = id

	if kind == graph.TypeNamed && !scoped && len(path) > 0 && !primitiveNames[path[0]] {
		v.candidates = append(v.candidates, namedCandidate{
			typeID:     id,
			path:       path,
			scope:      scope,
			modulePath: append([]string(nil), v.modPath...),
			span:       span(n),
		})
	}
	return id, scoped
}

func hasMutableSpecifier(n *tree_sitter.Node) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil && c.Kind() == rustsrc.KindMutableSpecifier {
			return true
		}
	}
	return false
}

// genericsOf reads the declared generic parameters of an item. Bounds are
// kept as raw text; they participate in nothing but display.
func (v *fileVisitor) genericsOf(n *tree_sitter.Node) []graph.GenericParam {
	tp := n.ChildByFieldName("type_parameters")
	if tp == nil {
		return nil
	}
	var out []graph.GenericParam
	for _, p := range rustsrc.NamedChildren(tp) {
		switch p.Kind() {
		case rustsrc.KindTypeParameter:
			g := graph.GenericParam{Kind: "type"}
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				g.Name = rustsrc.NodeText(nameNode, v.source)
			} else {
				g.Name = rustsrc.NodeText(p, v.source)
			}
			if bound := p.ChildByFieldName("bound"); bound != nil {
				g.Bounds = normalizeTypeText(rustsrc.NodeText(bound, v.source))
			}
			out = append(out, g)
		case rustsrc.KindTypeIdentifier:
			// Older grammar form: bare parameter name.
			out = append(out, graph.GenericParam{Name: rustsrc.NodeText(p, v.source), Kind: "type"})
		case rustsrc.KindConstParameter:
			g := graph.GenericParam{Kind: "const"}
			if nameNode := p.ChildByFieldName("name"); nameNode != nil {
				g.Name = rustsrc.NodeText(nameNode, v.source)
			}
			out = append(out, g)
		case rustsrc.KindLifetimeParameter, "lifetime":
			out = append(out, graph.GenericParam{
				Name: rustsrc.NodeText(p, v.source),
				Kind: "lifetime",
			})
		}
	}
	return out
}
