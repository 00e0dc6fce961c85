// Package store persists resolved graph snapshots in SQLite: nodes and
// relations keyed by their stable content-derived ids, plus per-file
// content hashes used to classify changes between runs. Ids never
// renumber, so every write is an idempotent upsert.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Querier abstracts *sql.DB and *sql.Tx so store methods work in both
// contexts.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store wraps a SQLite connection for graph snapshots.
type Store struct {
	db     *sql.DB
	q      Querier // active querier: db or tx
	dbPath string
}

func cacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	dir := filepath.Join(home, ".cache", "crategraph")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir cache: %w", err)
	}
	return dir, nil
}

// Open opens or creates the database for the given project.
func Open(project string) (*Store, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return OpenPath(filepath.Join(dir, project+".db"))
}

// OpenPath opens a SQLite database at the given path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &Store{db: db, dbPath: dbPath}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// OpenMemory opens an in-memory database (for testing).
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	// Each pooled connection gets its own in-memory database.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, dbPath: ":memory:"}
	s.q = s.db
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// WithTransaction executes fn within a single SQLite transaction. The
// callback receives a transaction-scoped Store; the receiver's q field is
// never mutated, so concurrent readers on s.q == s.db are unaffected.
func (s *Store) WithTransaction(fn func(txStore *Store) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	txStore := &Store{db: s.db, q: tx, dbPath: s.dbPath}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) Close() error { return s.db.Close() }

// DB returns the underlying sql.DB (for advanced queries).
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		name TEXT PRIMARY KEY,
		root_path TEXT NOT NULL,
		indexed_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS crates (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		name TEXT NOT NULL,
		version TEXT NOT NULL,
		namespace TEXT NOT NULL,
		entry_file TEXT NOT NULL,
		PRIMARY KEY (project, name)
	);

	CREATE TABLE IF NOT EXISTS file_hashes (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		crate TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		PRIMARY KEY (project, crate, rel_path)
	);

	CREATE TABLE IF NOT EXISTS nodes (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		canonical_path TEXT NOT NULL DEFAULT '',
		file_path TEXT NOT NULL DEFAULT '',
		start_byte INTEGER NOT NULL DEFAULT 0,
		end_byte INTEGER NOT NULL DEFAULT 0,
		visibility TEXT NOT NULL DEFAULT '',
		cfg_hash INTEGER NOT NULL DEFAULT 0,
		tracking_hash TEXT NOT NULL DEFAULT '',
		logical_type TEXT NOT NULL DEFAULT '',
		doc TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (project, id)
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(project, kind);
	CREATE INDEX IF NOT EXISTS idx_nodes_path ON nodes(project, canonical_path);
	CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(project, file_path);

	CREATE TABLE IF NOT EXISTS relations (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		source TEXT NOT NULL,
		target TEXT NOT NULL,
		kind TEXT NOT NULL,
		unresolved_path TEXT NOT NULL DEFAULT '',
		UNIQUE (project, source, target, kind)
	);

	CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(project, source, kind);
	CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(project, target, kind);

	CREATE TABLE IF NOT EXISTS unresolved (
		project TEXT NOT NULL REFERENCES projects(name) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		owner TEXT NOT NULL,
		path TEXT NOT NULL,
		file_path TEXT NOT NULL,
		start_byte INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_unresolved_file ON unresolved(project, file_path);
	`
	_, err := s.db.Exec(schema)
	return err
}
