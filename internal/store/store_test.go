package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/josephleblanc/crategraph/internal/graph"
	"github.com/josephleblanc/crategraph/internal/pipeline"
)

func writeFixture(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func buildFixture(t *testing.T) (string, *pipeline.Result) {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, map[string]string{
		"Cargo.toml": "[package]\nname = \"demo\"\nversion = \"0.1.0\"\n",
		"src/lib.rs": "pub mod a;\npub mod b;\n",
		"src/a.rs":   "pub struct A;\n",
		"src/b.rs":   "pub struct B;\nuse serde::Serialize;\n",
	})
	res, err := pipeline.Run(context.Background(), pipeline.Options{
		ProjectRoot: dir,
		CratePaths:  []string{"."},
	})
	if err != nil {
		t.Fatalf("pipeline.Run: %v", err)
	}
	return dir, res
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	_, res := buildFixture(t)
	s := openTestStore(t)
	ctx := context.Background()

	err := s.SaveSnapshot(ctx, "demo", res.Discovery, res.Graph, res.Resolution.Unresolved)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	n, err := s.NodeCount("demo")
	if err != nil {
		t.Fatalf("NodeCount: %v", err)
	}
	if n != res.Graph.Len() {
		t.Errorf("stored nodes: got %d, want %d", n, res.Graph.Len())
	}

	id, kind, name, err := s.NodeByPath("demo", "crate::a::A")
	if err != nil {
		t.Fatalf("NodeByPath: %v", err)
	}
	if kind != "struct" || name != "A" || id == "" {
		t.Errorf("NodeByPath: got id=%q kind=%q name=%q", id, kind, name)
	}
}

func TestFileHashesRoundTrip(t *testing.T) {
	_, res := buildFixture(t)
	s := openTestStore(t)

	current, err := CurrentHashes(res.Discovery.Crates)
	if err != nil {
		t.Fatalf("CurrentHashes: %v", err)
	}
	if err := s.SaveFileHashes("demo", current); err != nil {
		t.Fatalf("SaveFileHashes: %v", err)
	}
	stored, err := s.StoredHashes("demo")
	if err != nil {
		t.Fatalf("StoredHashes: %v", err)
	}
	if !DiffHashes(stored, current).Empty() {
		t.Error("identical hash sets must diff to an empty change set")
	}
}

func TestDiffHashesClassification(t *testing.T) {
	stored := map[string]map[string]string{
		"demo": {
			"src/lib.rs": "h1",
			"src/old.rs": "h2",
			"src/mod.rs": "h3",
		},
	}
	current := map[string]map[string]string{
		"demo": {
			"src/lib.rs": "h1",
			"src/mod.rs": "h3-changed",
			"src/new.rs": "h4",
		},
	}
	cs := DiffHashes(stored, current)

	changed := cs.Changed["demo"]
	if len(changed) != 2 || changed[0] != "src/mod.rs" || changed[1] != "src/new.rs" {
		t.Errorf("changed: got %v", changed)
	}
	removed := cs.Removed["demo"]
	if len(removed) != 1 || removed[0] != "src/old.rs" {
		t.Errorf("removed: got %v", removed)
	}
}

func TestUnresolvedPersisted(t *testing.T) {
	_, res := buildFixture(t)
	if len(res.Resolution.Unresolved) == 0 {
		t.Fatal("fixture must leave the serde import unresolved")
	}
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveSnapshot(ctx, "demo", res.Discovery, res.Graph, res.Resolution.Unresolved); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	var count int
	var path string
	err := s.q.QueryRow(`SELECT COUNT(*) FROM unresolved WHERE project=?`, "demo").Scan(&count)
	if err != nil {
		t.Fatal(err)
	}
	if count != len(res.Resolution.Unresolved) {
		t.Errorf("unresolved rows: got %d, want %d", count, len(res.Resolution.Unresolved))
	}
	err = s.q.QueryRow(`SELECT path FROM unresolved WHERE project=? LIMIT 1`, "demo").Scan(&path)
	if err != nil {
		t.Fatal(err)
	}
	if path != "serde::Serialize" {
		t.Errorf("unresolved path: got %q", path)
	}
}

func TestApplyDelta(t *testing.T) {
	dir, res := buildFixture(t)
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveSnapshot(ctx, "demo", res.Discovery, res.Graph, res.Resolution.Unresolved); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	writeFixture(t, dir, map[string]string{
		"src/a.rs": "pub struct A;\npub struct Fresh;\n",
	})
	next, delta, err := pipeline.Rerun(ctx, res, &graph.ChangeSet{
		Changed: map[string][]string{"demo": {"src/a.rs"}},
	}, pipeline.Options{})
	if err != nil {
		t.Fatalf("Rerun: %v", err)
	}
	if err := s.ApplyDelta(ctx, "demo", next.Discovery, delta, next.Resolution.Unresolved); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}

	n, err := s.NodeCount("demo")
	if err != nil {
		t.Fatal(err)
	}
	if n != next.Graph.Len() {
		t.Errorf("stored nodes after delta: got %d, want %d", n, next.Graph.Len())
	}
	if _, kind, _, err := s.NodeByPath("demo", "crate::a::Fresh"); err != nil || kind != "struct" {
		t.Errorf("NodeByPath crate::a::Fresh: kind=%q err=%v", kind, err)
	}
}

func TestWithTransactionRollback(t *testing.T) {
	_, res := buildFixture(t)
	s := openTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTransaction(func(tx *Store) error {
		if err := tx.UpsertProject("demo", "/tmp"); err != nil {
			return err
		}
		sink := &ProjectSink{Store: tx, Project: "demo"}
		if err := sink.UpsertNodes(ctx, res.Graph.Nodes()); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	n, err := s.NodeCount("demo")
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("rolled-back transaction left %d nodes", n)
	}
}

func TestHashFileStable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.rs")
	if err := os.WriteFile(path, []byte("pub fn f() {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	a, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || a == "" {
		t.Errorf("hashes: %q vs %q", a, b)
	}
	if err := os.WriteFile(path, []byte("pub fn f() { }\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := HashFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Error("content change must change the file hash")
	}
}
