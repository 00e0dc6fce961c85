package graph

import (
	"context"

	"github.com/josephleblanc/crategraph/internal/ids"
)

// GraphDelta describes the difference between two resolved graphs, enough
// for a storage layer to apply a partial index update without a rebuild.
type GraphDelta struct {
	// Retracted lists item ids removed since the prior run.
	Retracted []ids.NodeID
	// Added lists items created or re-created this run.
	Added []*ItemNode
	// AddedRelations lists relations created this run.
	AddedRelations []Relation
	// ReparsedFiles lists crate-relative paths that were re-parsed.
	ReparsedFiles []string
}

// ChangeSet is the incremental driver's input: files whose content changed
// and files that were removed, as crate-relative paths keyed by crate name.
type ChangeSet struct {
	Changed map[string][]string
	Removed map[string][]string
}

func (c *ChangeSet) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.Changed) == 0 && len(c.Removed) == 0
}

// EmbeddingUnit is what the embedding/snippet collaborator consumes per
// embeddable item. Spans and ids are stable across unchanged content.
type EmbeddingUnit struct {
	Node        ids.NodeID
	LogicalType *ids.LogicalTypeID
	Span        Span
	FilePath    string
}

// EmbeddingSink receives embeddable units. Implementations live outside
// this module.
type EmbeddingSink interface {
	EmbedItems(ctx context.Context, units []EmbeddingUnit) error
}

// EmbeddingUnits extracts the embeddable items of a graph in insertion
// order: content-bearing items with a tracking hash. Imports and bare
// module declarations carry no body text and are skipped.
func (g *CodeGraph) EmbeddingUnits() []EmbeddingUnit {
	var units []EmbeddingUnit
	for _, n := range g.Nodes() {
		if n.Kind == KindImport || n.Tracking.IsZero() {
			continue
		}
		u := EmbeddingUnit{Node: n.ID, Span: n.Span, FilePath: n.FilePath}
		if !n.Logical.IsZero() {
			l := n.Logical
			u.LogicalType = &l
		}
		units = append(units, u)
	}
	return units
}

// Sink receives nodes and relations keyed by opaque stable ids and
// canonical path strings. Ids never renumber across incremental runs, so
// upserts stay idempotent.
type Sink interface {
	UpsertNodes(ctx context.Context, nodes []*ItemNode) error
	UpsertRelations(ctx context.Context, rels []Relation) error
	Retract(ctx context.Context, ids []ids.NodeID) error
}
