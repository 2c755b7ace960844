package graphcache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS graph_cache (
	cache_key  TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	build_id   TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	payload    BLOB NOT NULL
)`

// SQLiteStore keeps artifacts as rows of a single SQLite table, which lets
// many datasets share one cache file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open graph cache db %s: %w", path, err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create graph_cache table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Load implements Store.
func (s *SQLiteStore) Load(key Key) (*Artifact, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM graph_cache WHERE cache_key = ?`, string(key)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query graph cache %s: %w", key, err)
	}
	return Decode(payload)
}

// Save implements Store, replacing any previous row for key.
func (s *SQLiteStore) Save(key Key, a *Artifact) error {
	b, err := Encode(a)
	if err != nil {
		return err
	}
	createdAt := a.CreatedAt
	if createdAt == 0 {
		createdAt = time.Now().Unix()
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO graph_cache (cache_key, version, build_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?)`, string(key), a.Version, a.BuildID, createdAt, b)
	if err != nil {
		return fmt.Errorf("save graph cache %s: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in sorted order.
func (s *SQLiteStore) Keys() ([]Key, error) {
	rows, err := s.db.Query(`SELECT cache_key FROM graph_cache ORDER BY cache_key`)
	if err != nil {
		return nil, fmt.Errorf("list graph cache keys: %w", err)
	}
	defer rows.Close()
	var keys []Key
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, Key(k))
	}
	return keys, rows.Err()
}
