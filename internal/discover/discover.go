// Package discover enumerates the source files of each target crate,
// derives deterministic per-crate namespaces from the manifest, and seeds
// a provisional module map from the crate entry file. Discovery is
// fail-fast: later phases need complete, correct context for every target
// crate, so any crate error aborts the whole result.
package discover

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/josephleblanc/crategraph/internal/ids"
)

// IGNORE_PATTERNS are directory names to skip during the source walk.
var IGNORE_PATTERNS = map[string]bool{
	".git": true, ".hg": true, ".svn": true, ".idea": true,
	".vscode": true, ".cache": true, ".tmp": true,
	"target": true, "node_modules": true, "vendor": true,
	"tmp": true, "temp": true,
}

// FileInfo is one discovered Rust source file.
type FileInfo struct {
	Path    string // absolute path
	RelPath string // relative to the crate root, slash-separated
}

// Crate is the discovery output for one target crate.
type Crate struct {
	Name      string
	Version   string
	RootPath  string // absolute crate root (directory holding Cargo.toml)
	SrcRoot   string // absolute source root (RootPath/src)
	EntryFile string // crate-relative entry file (src/lib.rs or src/main.rs)
	Namespace ids.Hash
	Files     []FileInfo
	// DeclaredModules holds module names found by the shallow entry-file
	// scan. Provisional only: the resolver builds the authoritative tree.
	DeclaredModules []string
}

// Result is the full discovery output for one crate set.
type Result struct {
	ProjectRoot string
	Project     ids.Hash
	Crates      []*Crate
}

// Options configures discovery.
type Options struct {
	// IgnoreFile points to a file of doublestar glob patterns (one per
	// line, # comments). Defaults to <crate root>/.crategraphignore.
	IgnoreFile string
}

// Discover locates and parses each crate manifest, walks each source
// tree, and scans each entry file. Crates are processed in parallel; the
// first error aborts everything.
func Discover(ctx context.Context, projectRoot string, cratePaths []string, opts *Options) (*Result, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if len(cratePaths) == 0 {
		return nil, fmt.Errorf("no target crates given")
	}

	project := ids.ProjectNamespace(filepath.ToSlash(projectRoot))
	result := &Result{ProjectRoot: projectRoot, Project: project}
	result.Crates = make([]*Crate, len(cratePaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, cratePath := range cratePaths {
		if !filepath.IsAbs(cratePath) {
			cratePath = filepath.Join(projectRoot, cratePath)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, err := discoverCrate(gctx, project, cratePath, opts)
			if err != nil {
				return fmt.Errorf("crate %s: %w", cratePath, err)
			}
			result.Crates[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, c := range result.Crates {
		slog.Info("discover.crate", "name", c.Name, "version", c.Version,
			"files", len(c.Files), "declared_modules", len(c.DeclaredModules))
	}
	return result, nil
}

func discoverCrate(ctx context.Context, project ids.Hash, cratePath string, opts *Options) (*Crate, error) {
	rootPath, err := filepath.Abs(cratePath)
	if err != nil {
		return nil, err
	}

	m, err := readManifest(filepath.Join(rootPath, "Cargo.toml"))
	if err != nil {
		return nil, err
	}

	srcRoot := filepath.Join(rootPath, "src")
	if fi, statErr := os.Stat(srcRoot); statErr != nil || !fi.IsDir() {
		return nil, fmt.Errorf("missing source root %s", srcRoot)
	}

	c := &Crate{
		Name:      m.Package.Name,
		Version:   m.Package.Version,
		RootPath:  rootPath,
		SrcRoot:   srcRoot,
		Namespace: ids.CrateNamespace(project, m.Package.Name, m.Package.Version),
	}

	entry, err := findEntryFile(srcRoot)
	if err != nil {
		return nil, err
	}
	c.EntryFile = filepath.ToSlash(filepath.Join("src", entry))

	ignore, err := loadIgnorePatterns(rootPath, opts)
	if err != nil {
		return nil, err
	}

	c.Files, err = walkSources(ctx, rootPath, srcRoot, ignore)
	if err != nil {
		return nil, fmt.Errorf("walk sources: %w", err)
	}

	c.DeclaredModules, err = scanEntryModules(filepath.Join(rootPath, c.EntryFile))
	if err != nil {
		return nil, fmt.Errorf("entry scan: %w", err)
	}
	return c, nil
}

// findEntryFile prefers lib.rs over main.rs; a crate with neither has no
// usable root module.
func findEntryFile(srcRoot string) (string, error) {
	for _, name := range []string{"lib.rs", "main.rs"} {
		if _, err := os.Stat(filepath.Join(srcRoot, name)); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no entry file (src/lib.rs or src/main.rs)")
}

func loadIgnorePatterns(rootPath string, opts *Options) ([]string, error) {
	path := filepath.Join(rootPath, ".crategraphignore")
	if opts != nil && opts.IgnoreFile != "" {
		path = opts.IgnoreFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ignore file: %w", err)
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !doublestar.ValidatePattern(line) {
			return nil, fmt.Errorf("ignore file: bad pattern %q", line)
		}
		patterns = append(patterns, line)
	}
	return patterns, nil
}

// walkSources collects every .rs file under the crate's source root. All
// files are discovered regardless of cfg guards; exclusion, if any,
// happens during resolution.
func walkSources(ctx context.Context, rootPath, srcRoot string, ignore []string) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			return walkErr
		}
		rel, _ := filepath.Rel(rootPath, path)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if IGNORE_PATTERNS[d.Name()] || matchesAny(ignore, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".rs" {
			return nil
		}
		if matchesAny(ignore, rel) {
			return nil
		}
		files = append(files, FileInfo{Path: path, RelPath: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}
	// WalkDir yields lexical order already; sort anyway so merge order
	// stays deterministic across platforms.
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
