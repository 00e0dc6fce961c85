package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
)

// refKey flattens a relation endpoint to a storable string. Node and type
// ids live in different namespaces, so the prefix keeps them apart.
func refKey(r graph.Ref) string {
	if r.IsNode() {
		return "n:" + r.Node.String()
	}
	return "t:" + r.Type.String()
}

func visibilityString(v graph.Visibility) string {
	switch v.Kind {
	case graph.VisPublic:
		return "pub"
	case graph.VisCrate:
		return "pub(crate)"
	case graph.VisSuper:
		return "pub(super)"
	case graph.VisRestricted:
		return "pub(in " + strings.Join(v.Path, "::") + ")"
	}
	return ""
}

// UpsertProject records the project row; call once before node writes.
func (s *Store) UpsertProject(project, rootPath string) error {
	_, err := s.q.Exec(`INSERT INTO projects (name, root_path, indexed_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET root_path=excluded.root_path, indexed_at=excluded.indexed_at`,
		project, rootPath, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// UpsertCrate records one discovered crate.
func (s *Store) UpsertCrate(project, name, version string, namespace ids.Hash, entryFile string) error {
	_, err := s.q.Exec(`INSERT INTO crates (project, name, version, namespace, entry_file) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project, name) DO UPDATE SET version=excluded.version, namespace=excluded.namespace, entry_file=excluded.entry_file`,
		project, name, version, namespace.String(), entryFile)
	if err != nil {
		return fmt.Errorf("upsert crate %s: %w", name, err)
	}
	return nil
}

// ProjectSink binds a Store to one project so it satisfies graph.Sink.
type ProjectSink struct {
	Store   *Store
	Project string
}

var _ graph.Sink = (*ProjectSink)(nil)

func (p *ProjectSink) UpsertNodes(ctx context.Context, nodes []*graph.ItemNode) error {
	return p.Store.upsertNodes(ctx, p.Project, nodes)
}

func (p *ProjectSink) UpsertRelations(ctx context.Context, rels []graph.Relation) error {
	return p.Store.upsertRelations(ctx, p.Project, rels)
}

func (p *ProjectSink) Retract(ctx context.Context, retracted []ids.NodeID) error {
	return p.Store.retract(ctx, p.Project, retracted)
}

func (s *Store) upsertNodes(ctx context.Context, project string, nodes []*graph.ItemNode) error {
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		logical := ""
		if !n.Logical.IsZero() {
			logical = n.Logical.String()
		}
		tracking := ""
		if !n.Tracking.IsZero() {
			tracking = n.Tracking.String()
		}
		_, err := s.q.Exec(`INSERT INTO nodes
			(project, id, kind, name, canonical_path, file_path, start_byte, end_byte, visibility, cfg_hash, tracking_hash, logical_type, doc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project, id) DO UPDATE SET
				kind=excluded.kind, name=excluded.name,
				canonical_path=excluded.canonical_path, file_path=excluded.file_path,
				start_byte=excluded.start_byte, end_byte=excluded.end_byte,
				visibility=excluded.visibility, cfg_hash=excluded.cfg_hash,
				tracking_hash=excluded.tracking_hash, logical_type=excluded.logical_type,
				doc=excluded.doc`,
			project, n.ID.String(), n.Kind.String(), n.Name,
			strings.Join(n.CanonicalPath, "::"), n.FilePath,
			n.Span.Start, n.Span.End, visibilityString(n.Vis),
			int64(n.CfgHash), tracking, logical, n.Doc)
		if err != nil {
			return fmt.Errorf("upsert node %s: %w", n.ID, err)
		}
	}
	return nil
}

func (s *Store) upsertRelations(ctx context.Context, project string, rels []graph.Relation) error {
	for _, r := range rels {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := s.q.Exec(`INSERT INTO relations (project, source, target, kind, unresolved_path)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(project, source, target, kind) DO UPDATE SET unresolved_path=excluded.unresolved_path`,
			project, refKey(r.Source), refKey(r.Target), string(r.Kind), r.UnresolvedPath)
		if err != nil {
			return fmt.Errorf("upsert relation %s: %w", r.Kind, err)
		}
	}
	return nil
}

func (s *Store) retract(ctx context.Context, project string, retracted []ids.NodeID) error {
	for _, id := range retracted {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := "n:" + id.String()
		if _, err := s.q.Exec(`DELETE FROM nodes WHERE project=? AND id=?`, project, id.String()); err != nil {
			return fmt.Errorf("retract node %s: %w", id, err)
		}
		if _, err := s.q.Exec(`DELETE FROM relations WHERE project=? AND (source=? OR target=?)`, project, key, key); err != nil {
			return fmt.Errorf("retract relations %s: %w", id, err)
		}
	}
	return nil
}

// ReplaceUnresolved swaps the project's unresolved-reference records for
// the current run's set.
func (s *Store) ReplaceUnresolved(project string, pending []graph.PendingRelation) error {
	if _, err := s.q.Exec(`DELETE FROM unresolved WHERE project=?`, project); err != nil {
		return fmt.Errorf("clear unresolved: %w", err)
	}
	for _, p := range pending {
		owner := ""
		if p.Owner.Valid() {
			owner = p.Owner.String()
		} else {
			owner = p.OwnerType.String()
		}
		_, err := s.q.Exec(`INSERT INTO unresolved (project, kind, owner, path, file_path, start_byte)
			VALUES (?, ?, ?, ?, ?, ?)`,
			project, p.Kind.String(), owner, strings.Join(p.Path, "::"), p.FilePath, p.Span.Start)
		if err != nil {
			return fmt.Errorf("insert unresolved: %w", err)
		}
	}
	return nil
}

// NodeCount reports stored nodes for a project.
func (s *Store) NodeCount(project string) (int, error) {
	var n int
	if err := s.q.QueryRow(`SELECT COUNT(*) FROM nodes WHERE project=?`, project).Scan(&n); err != nil {
		return 0, fmt.Errorf("node count: %w", err)
	}
	return n, nil
}

// NodeByPath fetches one stored node by canonical path.
func (s *Store) NodeByPath(project, canonicalPath string) (id, kind, name string, err error) {
	err = s.q.QueryRow(`SELECT id, kind, name FROM nodes WHERE project=? AND canonical_path=?`,
		project, canonicalPath).Scan(&id, &kind, &name)
	if err != nil {
		err = fmt.Errorf("node by path %s: %w", canonicalPath, err)
	}
	return
}
