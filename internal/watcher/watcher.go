// Package watcher polls a project's source tree and drives incremental
// reruns. Polling (mtime+size snapshots with an adaptive interval) keeps
// the dependency surface flat and behaves identically on every platform.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/josephleblanc/crategraph/internal/discover"
	"github.com/josephleblanc/crategraph/internal/graph"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

// snapKey is crate name + crate-relative path; a workspace can hold the
// same relative path in two crates.
type snapKey struct {
	crate string
	rel   string
}

// RerunFunc receives the classified change set when the tree moved.
type RerunFunc func(ctx context.Context, changes *graph.ChangeSet) error

// Watcher polls one project's discovered file set for changes.
type Watcher struct {
	disc    *discover.Result
	rerunFn RerunFunc

	snapshot map[snapKey]fileSnapshot
	interval time.Duration
}

// New creates a Watcher over an already-discovered project. rerunFn is
// called whenever files changed since the last successful poll.
func New(disc *discover.Result, rerunFn RerunFunc) *Watcher {
	return &Watcher{disc: disc, rerunFn: rerunFn}
}

// Run blocks until ctx is cancelled, polling at the adaptive interval.
// The first poll captures a baseline without triggering a rerun.
func (w *Watcher) Run(ctx context.Context) {
	w.snapshot = w.capture()
	w.interval = pollInterval(len(w.snapshot))
	slog.Debug("watcher.baseline", "files", len(w.snapshot))

	timer := time.NewTimer(w.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			w.poll(ctx)
			timer.Reset(w.interval)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	snap := w.capture()
	interval := pollInterval(len(snap))

	changes := diffSnapshots(w.snapshot, snap)
	if changes.Empty() {
		w.interval = interval
		return
	}

	slog.Info("watcher.changed",
		"changed", countFiles(changes.Changed),
		"removed", countFiles(changes.Removed))
	if err := w.rerunFn(ctx, changes); err != nil {
		slog.Warn("watcher.rerun", "err", err)
		// Keep the old snapshot so the next cycle retries.
		w.interval = interval
		return
	}
	w.snapshot = snap
	w.interval = interval
}

// capture stats every discovered file. A vanished file simply drops out
// of the snapshot and shows up as removed on the next diff.
func (w *Watcher) capture() map[snapKey]fileSnapshot {
	snap := make(map[snapKey]fileSnapshot)
	for _, c := range w.disc.Crates {
		for _, f := range c.Files {
			info, err := os.Stat(f.Path)
			if err != nil {
				continue
			}
			snap[snapKey{crate: c.Name, rel: f.RelPath}] = fileSnapshot{
				modTime: info.ModTime(),
				size:    info.Size(),
			}
		}
	}
	return snap
}

func diffSnapshots(prev, cur map[snapKey]fileSnapshot) *graph.ChangeSet {
	cs := &graph.ChangeSet{
		Changed: make(map[string][]string),
		Removed: make(map[string][]string),
	}
	for key, c := range cur {
		p, ok := prev[key]
		if !ok || !p.modTime.Equal(c.modTime) || p.size != c.size {
			cs.Changed[key.crate] = append(cs.Changed[key.crate], key.rel)
		}
	}
	for key := range prev {
		if _, ok := cur[key]; !ok {
			cs.Removed[key.crate] = append(cs.Removed[key.crate], key.rel)
		}
	}
	for _, m := range []map[string][]string{cs.Changed, cs.Removed} {
		for crate := range m {
			sort.Strings(m[crate])
		}
	}
	return cs
}

func countFiles(m map[string][]string) int {
	n := 0
	for _, files := range m {
		n += len(files)
	}
	return n
}

// pollInterval computes the adaptive interval from file count:
// the base plus one extra second per 500 files, capped.
func pollInterval(fileCount int) time.Duration {
	d := baseInterval + time.Duration(fileCount/500)*time.Second
	if d > maxInterval {
		d = maxInterval
	}
	return d
}
