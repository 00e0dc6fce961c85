package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/josephleblanc/crategraph/internal/discover"
	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/ids"
	"github.com/josephleblanc/crategraph/internal/resolve"
	"github.com/josephleblanc/crategraph/internal/visitor"
)

// derivedKinds are the relations the resolution pass creates. An
// incremental rerun strips them and lets resolution rebuild them, so
// nothing is duplicated and retracted references disappear.
var derivedKinds = map[graph.RelationKind]bool{
	graph.RelDefinesModule:   true,
	graph.RelRelocatesModule: true,
	graph.RelImports:         true,
	graph.RelReExports:       true,
	graph.RelResolvesType:    true,
}

// Rerun applies a change set to a prior result: retract the affected
// files' nodes, re-parse only the changed files, and re-run the
// sequential resolution pass over the reused merged graph. Ids are
// content-derived, so unchanged items keep their ids and the returned
// delta is minimal.
func Rerun(ctx context.Context, prev *Result, changes *graph.ChangeSet, opts Options) (*Result, *graph.GraphDelta, error) {
	delta := &graph.GraphDelta{}
	if changes.Empty() {
		return prev, delta, nil
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	g := prev.Graph
	disc := prev.Discovery
	crateByName := make(map[string]*discover.Crate, len(disc.Crates))
	for _, c := range disc.Crates {
		crateByName[c.Name] = c
	}

	for _, crateName := range sortedKeys(changes.Removed) {
		c := crateByName[crateName]
		if c == nil {
			return nil, nil, fmt.Errorf("change set names unknown crate %q", crateName)
		}
		for _, f := range changes.Removed[crateName] {
			delta.Retracted = append(delta.Retracted, g.RemoveFile(c.Namespace, f)...)
			c.Files = dropFile(c.Files, f)
		}
	}

	var jobs []visitor.FileJob
	for _, crateName := range sortedKeys(changes.Changed) {
		c := crateByName[crateName]
		if c == nil {
			return nil, nil, fmt.Errorf("change set names unknown crate %q", crateName)
		}
		for _, f := range changes.Changed[crateName] {
			delta.Retracted = append(delta.Retracted, g.RemoveFile(c.Namespace, f)...)
			if !hasFile(c.Files, f) {
				c.Files = append(c.Files, discover.FileInfo{
					Path:    filepath.Join(c.RootPath, filepath.FromSlash(f)),
					RelPath: f,
				})
				sort.Slice(c.Files, func(i, j int) bool { return c.Files[i].RelPath < c.Files[j].RelPath })
			}
			jobs = append(jobs, visitor.FileJob{
				CrateName: c.Name,
				CrateNS:   c.Namespace,
				AbsPath:   absFile(c, f),
				RelPath:   f,
				EntryFile: c.EntryFile,
			})
			delta.ReparsedFiles = append(delta.ReparsedFiles, f)
		}
	}

	parseStart := time.Now()
	partials, parseErrs := parseJobs(ctx, jobs, opts.Workers)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	for _, p := range partials {
		if p == nil {
			continue
		}
		if err := g.MergePartial(p); err != nil {
			return nil, nil, err
		}
	}
	parseTime := time.Since(parseStart)

	stripDerived(g)

	resolveStart := time.Now()
	resolution, err := resolve.Resolve(disc.Project, disc.Crates, g)
	if err != nil {
		return nil, nil, fmt.Errorf("resolution: %w", err)
	}
	resolveTime := time.Since(resolveStart)

	// Partials share node pointers with the graph; ids read after
	// resolution reflect promotion.
	added := make(map[ids.NodeID]bool)
	for _, p := range partials {
		if p == nil {
			continue
		}
		for _, n := range p.Nodes {
			delta.Added = append(delta.Added, n)
			added[n.ID] = true
		}
	}
	for _, r := range g.Relations {
		if (r.Source.IsNode() && added[r.Source.Node]) ||
			(r.Target.IsNode() && added[r.Target.Node]) {
			delta.AddedRelations = append(delta.AddedRelations, r)
		}
	}

	logger.Info("pipeline.rerun",
		"reparsed", len(jobs),
		"retracted", len(delta.Retracted),
		"added", len(delta.Added),
		"elapsed", parseTime+resolveTime)

	fileCount := 0
	for _, c := range disc.Crates {
		fileCount += len(c.Files)
	}
	return &Result{
		Discovery:   disc,
		Graph:       g,
		Resolution:  resolution,
		ParseErrors: parseErrs,
		Stats: Stats{
			Files:       fileCount,
			Nodes:       g.Len(),
			Relations:   len(g.Relations),
			Types:       g.Types.Len(),
			Unresolved:  len(resolution.Unresolved),
			Promoted:    resolution.Promoted,
			ParseTime:   parseTime,
			ResolveTime: resolveTime,
		},
	}, delta, nil
}

// stripDerived removes resolution-produced relations and canonical paths
// so a rerun rebuilds them from the surviving parse facts.
func stripDerived(g *graph.CodeGraph) {
	kept := g.Relations[:0]
	for _, r := range g.Relations {
		if derivedKinds[r.Kind] {
			continue
		}
		kept = append(kept, r)
	}
	g.Relations = kept
	for _, n := range g.Nodes() {
		n.CanonicalPath = nil
	}
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func dropFile(files []discover.FileInfo, rel string) []discover.FileInfo {
	kept := files[:0]
	for _, f := range files {
		if f.RelPath != rel {
			kept = append(kept, f)
		}
	}
	return kept
}

func hasFile(files []discover.FileInfo, rel string) bool {
	for _, f := range files {
		if f.RelPath == rel {
			return true
		}
	}
	return false
}

func absFile(c *discover.Crate, rel string) string {
	for _, f := range c.Files {
		if f.RelPath == rel {
			return f.Path
		}
	}
	return filepath.Join(c.RootPath, filepath.FromSlash(rel))
}
