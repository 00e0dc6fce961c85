package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func writeCrate(t *testing.T, dir, name, version string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "Cargo.toml"),
		"[package]\nname = \""+name+"\"\nversion = \""+version+"\"\n")
}

func TestDiscoverLibraryCrate(t *testing.T) {
	dir := t.TempDir()
	writeCrate(t, dir, "acme", "0.1.0")
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), "pub mod foo;\nmod bar;\n")
	writeFile(t, filepath.Join(dir, "src", "foo.rs"), "pub fn f() {}\n")
	writeFile(t, filepath.Join(dir, "src", "bar", "mod.rs"), "pub fn b() {}\n")
	writeFile(t, filepath.Join(dir, "src", "notes.txt"), "not rust\n")
	writeFile(t, filepath.Join(dir, "src", "target", "gen.rs"), "// build output\n")

	res, err := Discover(context.Background(), dir, []string{"."}, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(res.Crates) != 1 {
		t.Fatalf("expected 1 crate, got %d", len(res.Crates))
	}
	c := res.Crates[0]
	if c.Name != "acme" || c.Version != "0.1.0" {
		t.Errorf("manifest: got %s %s", c.Name, c.Version)
	}
	if c.EntryFile != "src/lib.rs" {
		t.Errorf("entry file: got %q", c.EntryFile)
	}
	if c.Namespace.IsZero() {
		t.Error("expected non-zero crate namespace")
	}

	var rels []string
	for _, f := range c.Files {
		rels = append(rels, f.RelPath)
	}
	want := []string{"src/bar/mod.rs", "src/foo.rs", "src/lib.rs"}
	if len(rels) != len(want) {
		t.Fatalf("files: got %v, want %v", rels, want)
	}
	for i := range want {
		if rels[i] != want[i] {
			t.Fatalf("files: got %v, want %v", rels, want)
		}
	}

	if len(c.DeclaredModules) != 2 || c.DeclaredModules[0] != "foo" || c.DeclaredModules[1] != "bar" {
		t.Errorf("declared modules: got %v", c.DeclaredModules)
	}
}

func TestDiscoverBinaryCrateEntry(t *testing.T) {
	dir := t.TempDir()
	writeCrate(t, dir, "tool", "1.0.0")
	writeFile(t, filepath.Join(dir, "src", "main.rs"), "fn main() {}\n")

	res, err := Discover(context.Background(), dir, []string{"."}, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got := res.Crates[0].EntryFile; got != "src/main.rs" {
		t.Errorf("entry file: got %q", got)
	}
}

func TestDiscoverNamespaceChangesWithVersion(t *testing.T) {
	project := func(version string) *Crate {
		dir := t.TempDir()
		writeCrate(t, dir, "acme", version)
		writeFile(t, filepath.Join(dir, "src", "lib.rs"), "")
		res, err := Discover(context.Background(), dir, []string{"."}, nil)
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		return res.Crates[0]
	}
	// Same name, different versions: distinct namespaces even under
	// different roots; what matters is the version feeds the hash.
	a := project("0.1.0")
	b := project("0.2.0")
	if a.Namespace == b.Namespace {
		t.Error("expected version bump to change the crate namespace")
	}
}

func TestDiscoverFailFast(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good")
	writeCrate(t, good, "good", "0.1.0")
	writeFile(t, filepath.Join(good, "src", "lib.rs"), "")
	bad := filepath.Join(dir, "bad")
	writeFile(t, filepath.Join(bad, "Cargo.toml"), "[package]\nname = \"bad\"\n") // no version
	writeFile(t, filepath.Join(bad, "src", "lib.rs"), "")

	_, err := Discover(context.Background(), dir, []string{"good", "bad"}, nil)
	if err == nil {
		t.Fatal("expected a manifest error to abort discovery")
	}
}

func TestDiscoverMissingEntryFile(t *testing.T) {
	dir := t.TempDir()
	writeCrate(t, dir, "noentry", "0.1.0")
	writeFile(t, filepath.Join(dir, "src", "util.rs"), "pub fn u() {}\n")

	_, err := Discover(context.Background(), dir, []string{"."}, nil)
	if err == nil {
		t.Fatal("expected missing entry file to fail discovery")
	}
}

func TestDiscoverIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeCrate(t, dir, "acme", "0.1.0")
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), "")
	writeFile(t, filepath.Join(dir, "src", "generated", "tables.rs"), "")
	writeFile(t, filepath.Join(dir, ".crategraphignore"), "# build outputs\nsrc/generated/**\n")

	res, err := Discover(context.Background(), dir, []string{"."}, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for _, f := range res.Crates[0].Files {
		if f.RelPath == "src/generated/tables.rs" {
			t.Error("ignored file was discovered")
		}
	}
}

func TestDiscoverCancellation(t *testing.T) {
	dir := t.TempDir()
	writeCrate(t, dir, "acme", "0.1.0")
	writeFile(t, filepath.Join(dir, "src", "lib.rs"), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, dir, []string{"."}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
