package visitor

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
	"github.com/josephleblanc/crategraph/internal/rustsrc"
)

// useEntry is one flattened leaf of a use tree: `use a::{b, c as d, e::*}`
// yields three entries.
type useEntry struct {
	path  []string
	alias string
	glob  bool
}

func (v *fileVisitor) visitUse(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return
	}
	vis := v.visibilityOf(n)
	reexport := vis.Kind != graph.VisInherited

	for _, e := range v.useEntries(arg, nil) {
		if len(e.path) == 0 {
			continue
		}
		name := e.alias
		if name == "" {
			name = e.path[len(e.path)-1]
		}
		itemName := name
		if e.glob {
			// Globs have no single visible name; the joined path keeps
			// sibling glob imports distinct.
			itemName = strings.Join(e.path, "::") + "::*"
			name = ""
		}

		item := v.newItem(n, ctx, parent, graph.KindImport, itemName)
		item.Import = &graph.ImportData{
			SourcePath:  e.path,
			VisibleName: name,
			IsGlob:      e.glob,
			IsReExport:  reexport,
		}

		kind := graph.PendingImport
		if reexport {
			kind = graph.PendingReExport
		}
		v.addPending(graph.PendingRelation{
			Kind:        kind,
			Owner:       item.ID,
			Scope:       v.currentScope(),
			ModulePath:  append([]string(nil), v.modPath...),
			Path:        e.path,
			Glob:        e.glob,
			VisibleName: name,
			Vis:         vis,
			CfgHash:     item.CfgHash,
			Span:        item.Span,
		})
	}
}

// useEntries flattens a use tree into leaf paths. Path segments are taken
// textually; nesting only matters for lists and wildcards.
func (v *fileVisitor) useEntries(n *tree_sitter.Node, prefix []string) []useEntry {
	switch n.Kind() {
	case rustsrc.KindIdentifier, rustsrc.KindScopedIdentifier,
		rustsrc.KindCrateSegment, rustsrc.KindSelfSegment, rustsrc.KindSuperSegment:
		return []useEntry{{path: joinSegments(prefix, rustsrc.NodeText(n, v.source))}}

	case rustsrc.KindUseAsClause:
		pathNode := n.ChildByFieldName("path")
		aliasNode := n.ChildByFieldName("alias")
		if pathNode == nil {
			return nil
		}
		e := useEntry{path: joinSegments(prefix, rustsrc.NodeText(pathNode, v.source))}
		if aliasNode != nil {
			e.alias = rustsrc.NodeText(aliasNode, v.source)
		}
		return []useEntry{e}

	case rustsrc.KindUseList:
		var out []useEntry
		for _, c := range rustsrc.NamedChildren(n) {
			out = append(out, v.useEntries(c, prefix)...)
		}
		return out

	case rustsrc.KindScopedUseList:
		next := prefix
		if pathNode := n.ChildByFieldName("path"); pathNode != nil {
			next = joinSegments(prefix, rustsrc.NodeText(pathNode, v.source))
		}
		if list := n.ChildByFieldName("list"); list != nil {
			return v.useEntries(list, next)
		}
		return nil

	case rustsrc.KindUseWildcard:
		next := prefix
		if inner := n.NamedChild(0); inner != nil {
			next = joinSegments(prefix, rustsrc.NodeText(inner, v.source))
		}
		return []useEntry{{path: next, glob: true}}
	}
	return nil
}

func (v *fileVisitor) visitExternCrate(n *tree_sitter.Node, ctx *itemContext, parent ids.NodeID) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := rustsrc.NodeText(nameNode, v.source)
	visible := name
	if aliasNode := n.ChildByFieldName("alias"); aliasNode != nil {
		visible = rustsrc.NodeText(aliasNode, v.source)
	}

	item := v.newItem(n, ctx, parent, graph.KindImport, visible)
	item.Import = &graph.ImportData{
		SourcePath:    []string{name},
		VisibleName:   visible,
		IsExternCrate: true,
	}
	v.addPending(graph.PendingRelation{
		Kind:        graph.PendingImport,
		Owner:       item.ID,
		Scope:       v.currentScope(),
		ModulePath:  append([]string(nil), v.modPath...),
		Path:        []string{name},
		VisibleName: visible,
		Vis:         item.Vis,
		CfgHash:     item.CfgHash,
		Span:        item.Span,
	})
}

// joinSegments appends the `::`-separated segments of text to a copy of
// prefix. Leading `::` (2015-style absolute paths) contributes no empty
// segment.
func joinSegments(prefix []string, text string) []string {
	out := append([]string(nil), prefix...)
	for _, seg := range strings.Split(strings.ReplaceAll(text, " ", ""), "::") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
