package store

import (
	"context"

	"github.com/josephleblanc/crategraph/internal/discover"
	"github.com/josephleblanc/crategraph/internal/graph"
)

// SaveSnapshot persists a full build atomically: project and crate rows,
// every node and relation, the unresolved set, and the file hashes the
// next run diffs against.
func (s *Store) SaveSnapshot(ctx context.Context, project string, disc *discover.Result, g *graph.CodeGraph, unresolved []graph.PendingRelation) error {
	hashes, err := CurrentHashes(disc.Crates)
	if err != nil {
		return err
	}
	return s.WithTransaction(func(tx *Store) error {
		if err := tx.UpsertProject(project, disc.ProjectRoot); err != nil {
			return err
		}
		for _, c := range disc.Crates {
			if err := tx.UpsertCrate(project, c.Name, c.Version, c.Namespace, c.EntryFile); err != nil {
				return err
			}
		}
		sink := &ProjectSink{Store: tx, Project: project}
		if err := sink.UpsertNodes(ctx, g.Nodes()); err != nil {
			return err
		}
		if err := sink.UpsertRelations(ctx, g.Relations); err != nil {
			return err
		}
		if err := tx.ReplaceUnresolved(project, unresolved); err != nil {
			return err
		}
		return tx.SaveFileHashes(project, hashes)
	})
}

// ApplyDelta persists an incremental rerun: retractions first, then
// upserts, then the refreshed hashes.
func (s *Store) ApplyDelta(ctx context.Context, project string, disc *discover.Result, delta *graph.GraphDelta, unresolved []graph.PendingRelation) error {
	hashes, err := CurrentHashes(disc.Crates)
	if err != nil {
		return err
	}
	return s.WithTransaction(func(tx *Store) error {
		sink := &ProjectSink{Store: tx, Project: project}
		if err := sink.Retract(ctx, delta.Retracted); err != nil {
			return err
		}
		if err := sink.UpsertNodes(ctx, delta.Added); err != nil {
			return err
		}
		if err := sink.UpsertRelations(ctx, delta.AddedRelations); err != nil {
			return err
		}
		if err := tx.ReplaceUnresolved(project, unresolved); err != nil {
			return err
		}
		return tx.SaveFileHashes(project, hashes)
	})
}
