package classpath

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chazu/bridge/pkg/types"
	_ "modernc.org/sqlite"
)

// Cache stores the class headers of dependency archives in SQLite, keyed by
// archive path, size, and modification time. A changed archive simply misses.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// OpenCache opens (or creates) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("classpath: creating cache directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("classpath: opening cache: %w", err)
	}

	// Set busy timeout for concurrent builds
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("classpath: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS archives (
			id INTEGER PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			size INTEGER NOT NULL,
			mtime INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS classes (
			archive INTEGER NOT NULL REFERENCES archives(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			access INTEGER NOT NULL,
			super TEXT NOT NULL,
			interfaces TEXT NOT NULL,
			PRIMARY KEY (archive, name)
		);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("classpath: creating tables: %w", err)
	}
	return &Cache{db: db, path: path}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Load returns the records cached for an archive, or ok=false when the
// archive is unknown or changed since it was stored.
func (c *Cache) Load(path string, size, mtime int64) (recs []types.Record, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var id, csize, cmtime int64
	err = c.db.QueryRow("SELECT id, size, mtime FROM archives WHERE path = ?", path).Scan(&id, &csize, &cmtime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("classpath: querying cache: %w", err)
	}
	if csize != size || cmtime != mtime {
		return nil, false, nil
	}

	rows, err := c.db.Query("SELECT name, access, super, interfaces FROM classes WHERE archive = ?", id)
	if err != nil {
		return nil, false, fmt.Errorf("classpath: querying cache: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r types.Record
		var ifaces string
		if err := rows.Scan(&r.Name, &r.Access, &r.Super, &ifaces); err != nil {
			return nil, false, fmt.Errorf("classpath: reading cache: %w", err)
		}
		if ifaces != "" {
			r.Interfaces = strings.Split(ifaces, " ")
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("classpath: reading cache: %w", err)
	}
	return recs, true, nil
}

// Store replaces the records of an archive.
func (c *Cache) Store(path string, size, mtime int64, recs []types.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("classpath: storing cache: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM classes WHERE archive IN (SELECT id FROM archives WHERE path = ?)", path); err != nil {
		return fmt.Errorf("classpath: storing cache: %w", err)
	}
	_, err = tx.Exec(
		"INSERT INTO archives (path, size, mtime) VALUES (?, ?, ?) ON CONFLICT(path) DO UPDATE SET size = excluded.size, mtime = excluded.mtime",
		path, size, mtime,
	)
	if err != nil {
		return fmt.Errorf("classpath: storing cache: %w", err)
	}
	var id int64
	if err := tx.QueryRow("SELECT id FROM archives WHERE path = ?", path).Scan(&id); err != nil {
		return fmt.Errorf("classpath: storing cache: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO classes (archive, name, access, super, interfaces) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("classpath: storing cache: %w", err)
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err := stmt.Exec(id, r.Name, r.Access, r.Super, strings.Join(r.Interfaces, " ")); err != nil {
			return fmt.Errorf("classpath: storing %s: %w", r.Name, err)
		}
	}
	return tx.Commit()
}
