package resolve

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
)

const pathCacheSize = 4096

// PathFinder answers shortest-public-path queries over a resolved graph:
// the shortest path by which an item can be named from outside its
// defining module. Results are memoized; the cache is bounded because
// consumers tend to query hot items repeatedly.
type PathFinder struct {
	g     *graph.CodeGraph
	tree  *ModuleTree
	roots map[ids.NodeID]bool
	cache *lru.Cache[ids.NodeID, []string]
}

func NewPathFinder(g *graph.CodeGraph, tree *ModuleTree) *PathFinder {
	cache, _ := lru.New[ids.NodeID, []string](pathCacheSize)
	roots := make(map[ids.NodeID]bool, len(tree.crateRoots))
	for _, id := range tree.crateRoots {
		roots[id] = true
	}
	return &PathFinder{g: g, tree: tree, roots: roots, cache: cache}
}

// ShortestPublicPath returns the preferred public naming of an item.
// Direct containment wins over re-exports; among re-export candidates
// the shortest path wins, with a lexicographic tie-break on the joined
// path so equal-length alternatives pick deterministically.
func (f *PathFinder) ShortestPublicPath(id ids.NodeID) ([]string, bool) {
	return f.find(id, make(map[ids.NodeID]bool))
}

func (f *PathFinder) find(id ids.NodeID, visiting map[ids.NodeID]bool) ([]string, bool) {
	if p, ok := f.cache.Get(id); ok {
		return p, p != nil
	}
	if visiting[id] {
		return nil, false
	}
	visiting[id] = true
	defer delete(visiting, id)

	if direct, ok := f.directPath(id); ok {
		f.cache.Add(id, direct)
		return direct, true
	}

	var best []string
	for _, e := range f.tree.reexportersOf(id) {
		mp, ok := f.find(e.module, visiting)
		if !ok {
			continue
		}
		cand := append(append([]string(nil), mp...), e.name)
		if best == nil || shorterPath(cand, best) {
			best = cand
		}
	}
	// A result computed mid-recursion can be skewed by the cycle guard
	// hiding a path through a node still being expanded, so only the
	// top-level query is safe to memoize.
	if len(visiting) == 1 {
		f.cache.Add(id, best)
	}
	return best, best != nil
}

// directPath accepts an item only when it and every enclosing module up
// to the crate root are pub. Items buried in impls or function bodies
// have no directly nameable path.
func (f *PathFinder) directPath(id ids.NodeID) ([]string, bool) {
	n, ok := f.g.Node(id)
	if !ok || len(n.CanonicalPath) == 0 {
		return nil, false
	}
	if f.roots[id] {
		return n.CanonicalPath, true
	}
	if n.Vis.Kind != graph.VisPublic {
		return nil, false
	}
	cur := id
	for {
		parent, ok := f.parentOf(cur)
		if !ok {
			return nil, false
		}
		if f.roots[parent] {
			return n.CanonicalPath, true
		}
		pn, ok := f.g.Node(parent)
		if !ok || pn.Kind != graph.KindModule || pn.Vis.Kind != graph.VisPublic {
			return nil, false
		}
		cur = parent
	}
}

func (f *PathFinder) parentOf(id ids.NodeID) (ids.NodeID, bool) {
	if p, ok := f.tree.parent[id]; ok {
		return p, true
	}
	return f.g.ContainingModule(id)
}

func shorterPath(a, b []string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return strings.Join(a, "::") < strings.Join(b, "::")
}
