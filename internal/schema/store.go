// Package schema implements the schema cache store.
//
// The cache is a flat key-value table in SQLite. Two key shapes exist:
//   - MasterListKey holds a JSON array with every entity name
//   - EntityKey(name) holds a JSON array of Field descriptors
//
// The pipeline only reads. The Indexer (fed by `storysmith cache import`)
// is the single writer.
package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	// MasterListKey is the fixed key of the authoritative entity list.
	MasterListKey = "schema:all_entity_names"

	// EntityKeyPrefix prefixes per-entity field lists.
	EntityKeyPrefix = "entity:"
)

var (
	// ErrUnavailable means the cache could not be reached.
	ErrUnavailable = errors.New("schema cache unavailable")

	// ErrMasterListMissing means the cache is reachable but was never indexed.
	ErrMasterListMissing = errors.New("master entity list not found in cache")
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// EntityKey returns the cache key holding the fields of entity name.
func EntityKey(name string) string {
	return EntityKeyPrefix + name
}

// Field describes one field of an entity.
type Field struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Createable bool   `json:"createable"`
}

// Reader is the read surface used by the resolver.
type Reader interface {
	// MasterList returns every entity name known to the cache.
	MasterList(ctx context.Context) ([]string, error)
	// Fields returns the field lists of the given entities in one batched
	// read. Entities without an entry are absent from the map.
	Fields(ctx context.Context, names []string) (map[string][]Field, error)
}

// Store is the SQLite-backed cache.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("schema: create cache dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("schema: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("schema: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`)
	return err
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ─── Raw key-value access ────────────────────────────────────────────────────

// Get returns the value stored under key and whether it exists.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: get %q: %v", ErrUnavailable, key, err)
	}
	return value, true, nil
}

// MGet fetches many keys in a single query. Missing keys are absent from
// the returned map.
func (s *Store) MGet(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM kv WHERE key IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: mget: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: mget scan: %v", ErrUnavailable, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: mget rows: %v", ErrUnavailable, err)
	}
	return out, nil
}

// Put stores values under their keys in one transaction.
func (s *Store) Put(ctx context.Context, entries map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("schema: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("schema: prepare put: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for k, v := range entries {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("schema: put %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema: commit: %w", err)
	}
	return nil
}

// ─── Reader ──────────────────────────────────────────────────────────────────

// MasterList implements Reader.
func (s *Store) MasterList(ctx context.Context) ([]string, error) {
	raw, ok, err := s.Get(ctx, MasterListKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrMasterListMissing
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("%w: decoding master list: %v", ErrMasterListMissing, err)
	}
	return names, nil
}

// Fields implements Reader. Entries that fail to decode are skipped and
// reported in the returned error alongside the entries that did decode.
func (s *Store) Fields(ctx context.Context, names []string) (map[string][]Field, error) {
	keys := make([]string, len(names))
	for i, n := range names {
		keys[i] = EntityKey(n)
	}

	raw, err := s.MGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]Field, len(raw))
	var decodeErrs []error
	for _, name := range names {
		value, ok := raw[EntityKey(name)]
		if !ok {
			continue
		}
		var fields []Field
		if err := json.Unmarshal([]byte(value), &fields); err != nil {
			decodeErrs = append(decodeErrs, fmt.Errorf("decoding fields of %s: %w", name, err))
			continue
		}
		out[name] = fields
	}
	return out, errors.Join(decodeErrs...)
}

// Unavailable is a Reader for a cache that could not be opened. Every call
// fails with ErrUnavailable so the resolver degrades instead of the server
// refusing to start.
type Unavailable struct {
	Err error
}

// MasterList implements Reader.
func (u Unavailable) MasterList(context.Context) ([]string, error) {
	return nil, u.err()
}

// Fields implements Reader.
func (u Unavailable) Fields(context.Context, []string) (map[string][]Field, error) {
	return nil, u.err()
}

func (u Unavailable) err() error {
	if u.Err == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.Err)
}
