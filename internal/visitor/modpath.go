package visitor

import (
	"path"
	"strings"
)

// ModulePathForFile derives the logical module path guess for a file
// purely from its location relative to the source root. The crate entry
// file maps to the root path ["crate"]; a folder index file (mod.rs)
// collapses to its parent directory's path.
//
//	src/lib.rs        -> [crate]
//	src/foo.rs        -> [crate foo]
//	src/foo/mod.rs    -> [crate foo]
//	src/foo/bar.rs    -> [crate foo bar]
func ModulePathForFile(relPath, entryFile string) []string {
	if relPath == entryFile {
		return []string{"crate"}
	}
	p := strings.TrimPrefix(relPath, "src/")
	p = strings.TrimSuffix(p, ".rs")
	if path.Base(p) == "mod" {
		p = path.Dir(p)
		if p == "." {
			return []string{"crate"}
		}
	}
	segs := strings.Split(p, "/")
	return append([]string{"crate"}, segs...)
}
