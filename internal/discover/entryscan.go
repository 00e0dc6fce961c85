package discover

import (
	"bufio"
	"os"
	"regexp"
)

// modDeclRe matches bare module declarations: `mod name;` with optional
// visibility and attributes on preceding lines. Inline modules
// (`mod name { ... }`) are deliberately not matched; only declarations
// whose definition lives in another file seed the provisional map.
var modDeclRe = regexp.MustCompile(`^\s*(?:pub(?:\([^)]*\))?\s+)?mod\s+([A-Za-z_][A-Za-z0-9_]*)\s*;`)

// scanEntryModules does a shallow, single-pass line scan of a crate entry
// file for bare module declarations. No cfg evaluation, no nesting: the
// result is a provisional hint, superseded by the resolver's module tree.
func scanEntryModules(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mods []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := modDeclRe.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		if !seen[m[1]] {
			seen[m[1]] = true
			mods = append(mods, m[1])
		}
	}
	return mods, scanner.Err()
}
