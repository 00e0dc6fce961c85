package graph

import (
	"fmt"

	"github.com/josephleblanc/crategraph/internal/ids"
)

// PartialGraph is the output of one parse worker: a self-contained graph
// fragment with synthetic ids throughout plus the worker's queue of
// deferred cross-file references.
type PartialGraph struct {
	CrateName string
	CrateNS   ids.Hash
	FilePath  string // crate-relative
	// FileModule is the synthetic root-module item for this file.
	FileModule ids.NodeID
	Nodes      []*ItemNode
	Types      *TypeArena
	Relations  []Relation
	Pending    []PendingRelation
}

// CodeGraph is the union of all partial graphs. Identifier hashing is
// content-derived, so merging never renumbers anything.
type CodeGraph struct {
	nodes map[ids.NodeID]*ItemNode
	order []ids.NodeID

	Types     *TypeArena
	Relations []Relation
	Pending   []PendingRelation

	// containsParent indexes the Contains relation: child → parent module.
	containsParent map[ids.NodeID]ids.NodeID
}

func NewCodeGraph() *CodeGraph {
	return &CodeGraph{
		nodes:          make(map[ids.NodeID]*ItemNode),
		Types:          NewTypeArena(),
		containsParent: make(map[ids.NodeID]ids.NodeID),
	}
}

// AddNode inserts an item. Two logically distinct items sharing one id is
// a hashing defect, reported loudly rather than silently overwritten.
func (g *CodeGraph) AddNode(n *ItemNode) error {
	if existing, ok := g.nodes[n.ID]; ok {
		if existing == n {
			return nil
		}
		return fmt.Errorf("id collision: %s claimed by %s %q and %s %q",
			n.ID, existing.Kind, existing.Name, n.Kind, n.Name)
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	return nil
}

func (g *CodeGraph) Node(id ids.NodeID) (*ItemNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *CodeGraph) Len() int { return len(g.nodes) }

// Nodes returns items in insertion order (deterministic across runs since
// files are merged in discovery order).
func (g *CodeGraph) Nodes() []*ItemNode {
	out := make([]*ItemNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodesByKind returns all items of one kind, in insertion order.
func (g *CodeGraph) NodesByKind(kind ItemKind) []*ItemNode {
	var out []*ItemNode
	for _, id := range g.order {
		if n := g.nodes[id]; n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// AddRelation appends a relation and maintains the Contains index.
func (g *CodeGraph) AddRelation(r Relation) {
	g.Relations = append(g.Relations, r)
	if r.Kind == RelContains && r.Source.IsNode() && r.Target.IsNode() {
		g.containsParent[r.Target.Node] = r.Source.Node
	}
}

// ContainingModule returns the module that contains an item.
func (g *CodeGraph) ContainingModule(id ids.NodeID) (ids.NodeID, bool) {
	p, ok := g.containsParent[id]
	return p, ok
}

// ReplaceNodeID rewrites an item's id (synthetic → resolved promotion) in
// the node map, the Contains index, and every relation endpoint.
func (g *CodeGraph) ReplaceNodeID(old, new ids.NodeID) {
	n, ok := g.nodes[old]
	if !ok || old == new {
		return
	}
	delete(g.nodes, old)
	n.ID = new
	g.nodes[new] = n
	for i, id := range g.order {
		if id == old {
			g.order[i] = new
			break
		}
	}
	for i := range g.Relations {
		if g.Relations[i].Source.IsNode() && g.Relations[i].Source.Node == old {
			g.Relations[i].Source.Node = new
		}
		if g.Relations[i].Target.IsNode() && g.Relations[i].Target.Node == old {
			g.Relations[i].Target.Node = new
		}
	}
	if p, ok := g.containsParent[old]; ok {
		delete(g.containsParent, old)
		g.containsParent[new] = p
	}
	for child, parent := range g.containsParent {
		if parent == old {
			g.containsParent[child] = new
		}
	}
	for i := range g.Pending {
		if g.Pending[i].Owner == old {
			g.Pending[i].Owner = new
		}
		if g.Pending[i].Scope == old {
			g.Pending[i].Scope = new
		}
	}
}

// RemoveFile retracts every node and relation that originated in one file.
// Used by incremental reruns before re-parsing a changed file.
func (g *CodeGraph) RemoveFile(crateNS ids.Hash, filePath string) []ids.NodeID {
	var removed []ids.NodeID
	removedSet := make(map[ids.NodeID]bool)
	keptOrder := g.order[:0]
	for _, id := range g.order {
		n := g.nodes[id]
		if n.CrateNS == crateNS && n.FilePath == filePath {
			delete(g.nodes, id)
			removed = append(removed, id)
			removedSet[id] = true
			continue
		}
		keptOrder = append(keptOrder, id)
	}
	g.order = keptOrder

	keptRels := g.Relations[:0]
	for _, r := range g.Relations {
		if (r.Source.IsNode() && removedSet[r.Source.Node]) ||
			(r.Target.IsNode() && removedSet[r.Target.Node]) {
			continue
		}
		keptRels = append(keptRels, r)
	}
	g.Relations = keptRels

	for child := range g.containsParent {
		if removedSet[child] || removedSet[g.containsParent[child]] {
			delete(g.containsParent, child)
		}
	}

	keptPending := g.Pending[:0]
	for _, p := range g.Pending {
		if removedSet[p.Owner] {
			continue
		}
		// Type-usage records carry no owner node; match them by origin.
		if !p.Owner.Valid() && p.OwnerType.Crate == crateNS && p.FilePath == filePath {
			continue
		}
		keptPending = append(keptPending, p)
	}
	g.Pending = keptPending
	return removed
}

// MergePartial unions one parse worker result into the graph.
func (g *CodeGraph) MergePartial(p *PartialGraph) error {
	for _, n := range p.Nodes {
		if err := g.AddNode(n); err != nil {
			return fmt.Errorf("merge %s: %w", p.FilePath, err)
		}
	}
	g.Types.Merge(p.Types)
	for _, r := range p.Relations {
		g.AddRelation(r)
	}
	g.Pending = append(g.Pending, p.Pending...)
	return nil
}
