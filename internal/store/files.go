package store

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/josephleblanc/crategraph/internal/discover"
	"github.com/josephleblanc/crategraph/internal/graph"
)

// HashFile fingerprints one file's content. The same xxh3 family as the
// graph ids; hex so it stores and compares as text.
func HashFile(absPath string) (string, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", absPath, err)
	}
	sum := xxh3.Hash128(data)
	return strconv.FormatUint(sum.Hi, 16) + strconv.FormatUint(sum.Lo, 16), nil
}

// CurrentHashes fingerprints every discovered file, keyed crate → rel path.
func CurrentHashes(crates []*discover.Crate) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(crates))
	for _, c := range crates {
		m := make(map[string]string, len(c.Files))
		for _, f := range c.Files {
			h, err := HashFile(f.Path)
			if err != nil {
				return nil, err
			}
			m[f.RelPath] = h
		}
		out[c.Name] = m
	}
	return out, nil
}

// SaveFileHashes replaces a project's stored file hashes with the current
// set.
func (s *Store) SaveFileHashes(project string, hashes map[string]map[string]string) error {
	if _, err := s.q.Exec(`DELETE FROM file_hashes WHERE project=?`, project); err != nil {
		return fmt.Errorf("clear file hashes: %w", err)
	}
	for crate, files := range hashes {
		for rel, h := range files {
			_, err := s.q.Exec(`INSERT INTO file_hashes (project, crate, rel_path, content_hash) VALUES (?, ?, ?, ?)`,
				project, crate, rel, h)
			if err != nil {
				return fmt.Errorf("insert file hash %s/%s: %w", crate, rel, err)
			}
		}
	}
	return nil
}

// StoredHashes loads the prior run's file hashes, keyed crate → rel path.
func (s *Store) StoredHashes(project string) (map[string]map[string]string, error) {
	rows, err := s.q.Query(`SELECT crate, rel_path, content_hash FROM file_hashes WHERE project=?`, project)
	if err != nil {
		return nil, fmt.Errorf("load file hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var crate, rel, h string
		if err := rows.Scan(&crate, &rel, &h); err != nil {
			return nil, fmt.Errorf("scan file hash: %w", err)
		}
		m := out[crate]
		if m == nil {
			m = make(map[string]string)
			out[crate] = m
		}
		m[rel] = h
	}
	return out, rows.Err()
}

// DiffHashes classifies current files against a stored snapshot. New and
// modified files land in Changed, vanished files in Removed.
func DiffHashes(stored, current map[string]map[string]string) *graph.ChangeSet {
	cs := &graph.ChangeSet{
		Changed: make(map[string][]string),
		Removed: make(map[string][]string),
	}
	for crate, files := range current {
		prev := stored[crate]
		for rel, h := range files {
			if prev[rel] != h {
				cs.Changed[crate] = append(cs.Changed[crate], rel)
			}
		}
	}
	for crate, files := range stored {
		cur := current[crate]
		for rel := range files {
			if _, ok := cur[rel]; !ok {
				cs.Removed[crate] = append(cs.Removed[crate], rel)
			}
		}
	}
	for _, m := range []map[string][]string{cs.Changed, cs.Removed} {
		for crate := range m {
			sort.Strings(m[crate])
		}
	}
	return cs
}
