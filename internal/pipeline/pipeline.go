// Package pipeline orchestrates the three phases: fail-fast discovery,
// embarrassingly parallel per-file parsing, and strictly sequential
// resolution. Phase boundaries are hard: no parse worker observes
// another file, and resolution starts only after every partial graph is
// merged.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/josephleblanc/crategraph/internal/discover"
	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/resolve"
	"github.com/josephleblanc/crategraph/internal/visitor"
)

type Options struct {
	ProjectRoot string
	// CratePaths are the target crate directories, absolute or relative
	// to ProjectRoot.
	CratePaths []string
	IgnoreFile string
	// Workers caps parse parallelism; 0 means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// FileError is one file's isolated parse failure. A syntax error in one
// file never aborts the run; it surfaces here while every other file's
// results stand.
type FileError struct {
	Crate string
	Path  string
	Err   error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Crate, e.Path, e.Err)
}

func (e FileError) Unwrap() error { return e.Err }

type Stats struct {
	Files       int
	Nodes       int
	Relations   int
	Types       int
	Unresolved  int
	Promoted    int
	ParseTime   time.Duration
	ResolveTime time.Duration
}

type Result struct {
	Discovery   *discover.Result
	Graph       *graph.CodeGraph
	Resolution  *resolve.Resolution
	ParseErrors []FileError
	Stats       Stats
}

// Run executes a full build over the target crates.
func Run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	disc, err := discover.Discover(ctx, opts.ProjectRoot, opts.CratePaths, &discover.Options{
		IgnoreFile: opts.IgnoreFile,
	})
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	fileCount := 0
	for _, c := range disc.Crates {
		fileCount += len(c.Files)
	}
	logger.Info("pipeline.discovered",
		"crates", len(disc.Crates),
		"files", fileCount)

	parseStart := time.Now()
	partials, parseErrs := parseAll(ctx, disc, opts.Workers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parseTime := time.Since(parseStart)

	merged := graph.NewCodeGraph()
	for _, p := range partials {
		if p == nil {
			continue
		}
		if err := merged.MergePartial(p); err != nil {
			return nil, err
		}
	}
	logger.Info("pipeline.parsed",
		"files", fileCount,
		"failed", len(parseErrs),
		"nodes", merged.Len(),
		"types", merged.Types.Len(),
		"elapsed", parseTime)

	resolveStart := time.Now()
	resolution, err := resolve.Resolve(disc.Project, disc.Crates, merged)
	if err != nil {
		return nil, fmt.Errorf("resolution: %w", err)
	}
	resolveTime := time.Since(resolveStart)
	logger.Info("pipeline.resolved",
		"promoted", resolution.Promoted,
		"unresolved", len(resolution.Unresolved),
		"relations", len(merged.Relations),
		"elapsed", resolveTime)

	return &Result{
		Discovery:   disc,
		Graph:       merged,
		Resolution:  resolution,
		ParseErrors: parseErrs,
		Stats: Stats{
			Files:       fileCount,
			Nodes:       merged.Len(),
			Relations:   len(merged.Relations),
			Types:       merged.Types.Len(),
			Unresolved:  len(resolution.Unresolved),
			Promoted:    resolution.Promoted,
			ParseTime:   parseTime,
			ResolveTime: resolveTime,
		},
	}, nil
}

// parseAll fans the file set out over a bounded worker pool. Results land
// in position-indexed slices, so merge order equals discovery order and
// the whole build stays deterministic regardless of scheduling.
func parseAll(ctx context.Context, disc *discover.Result, workers int) ([]*graph.PartialGraph, []FileError) {
	var jobs []visitor.FileJob
	for _, c := range disc.Crates {
		for _, f := range c.Files {
			jobs = append(jobs, visitor.FileJob{
				CrateName: c.Name,
				CrateNS:   c.Namespace,
				AbsPath:   f.Path,
				RelPath:   f.RelPath,
				EntryFile: c.EntryFile,
			})
		}
	}

	return parseJobs(ctx, jobs, workers)
}

func parseJobs(ctx context.Context, jobs []visitor.FileJob, workers int) ([]*graph.PartialGraph, []FileError) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	results := make([]*graph.PartialGraph, len(jobs))
	failures := make([]error, len(jobs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pg, err := visitor.ParseFile(job)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = pg
			return nil
		})
	}
	// Workers only return errors on cancellation; per-file failures are
	// isolated into the failures slice.
	_ = g.Wait()

	var parseErrs []FileError
	for i, err := range failures {
		if err != nil {
			parseErrs = append(parseErrs, FileError{
				Crate: jobs[i].CrateName,
				Path:  jobs[i].RelPath,
				Err:   err,
			})
		}
	}
	return results, parseErrs
}
