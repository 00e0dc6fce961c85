package watcher

import (
	"testing"
	"time"
)

func TestPollInterval(t *testing.T) {
	cases := []struct {
		files int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{499, 1 * time.Second},
		{500, 2 * time.Second},
		{5000, 11 * time.Second},
		{1000000, 60 * time.Second},
	}
	for _, c := range cases {
		if got := pollInterval(c.files); got != c.want {
			t.Errorf("pollInterval(%d) = %v, want %v", c.files, got, c.want)
		}
	}
}

func TestDiffSnapshots(t *testing.T) {
	t0 := time.Now()
	t1 := t0.Add(time.Second)
	prev := map[snapKey]fileSnapshot{
		{crate: "demo", rel: "src/lib.rs"}:  {modTime: t0, size: 10},
		{crate: "demo", rel: "src/gone.rs"}: {modTime: t0, size: 5},
		{crate: "demo", rel: "src/same.rs"}: {modTime: t0, size: 7},
	}
	cur := map[snapKey]fileSnapshot{
		{crate: "demo", rel: "src/lib.rs"}:  {modTime: t1, size: 10},
		{crate: "demo", rel: "src/same.rs"}: {modTime: t0, size: 7},
		{crate: "demo", rel: "src/new.rs"}:  {modTime: t1, size: 3},
	}

	cs := diffSnapshots(prev, cur)
	changed := cs.Changed["demo"]
	if len(changed) != 2 || changed[0] != "src/lib.rs" || changed[1] != "src/new.rs" {
		t.Errorf("changed: got %v", changed)
	}
	removed := cs.Removed["demo"]
	if len(removed) != 1 || removed[0] != "src/gone.rs" {
		t.Errorf("removed: got %v", removed)
	}
}

func TestDiffSnapshotsSizeOnlyChange(t *testing.T) {
	t0 := time.Now()
	prev := map[snapKey]fileSnapshot{
		{crate: "demo", rel: "src/lib.rs"}: {modTime: t0, size: 10},
	}
	cur := map[snapKey]fileSnapshot{
		{crate: "demo", rel: "src/lib.rs"}: {modTime: t0, size: 11},
	}
	if diffSnapshots(prev, cur).Empty() {
		t.Error("a size change with an unchanged mtime must still be detected")
	}
}

func TestDiffSnapshotsNoChange(t *testing.T) {
	t0 := time.Now()
	snap := map[snapKey]fileSnapshot{
		{crate: "demo", rel: "src/lib.rs"}: {modTime: t0, size: 10},
	}
	if !diffSnapshots(snap, snap).Empty() {
		t.Error("identical snapshots must diff to empty")
	}
}
