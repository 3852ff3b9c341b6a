// Package store caches solved rotations in SQLite, keyed by request
// fingerprint.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"craft-optimizer/internal/sim"
)

// Record is one cached solve.
type Record struct {
	Actions   []sim.Action
	Quality   uint32
	Progress  uint32
	Optimal   bool
	Nodes     uint64
	CreatedAt time.Time
}

// Cache is a solution cache backed by a single SQLite file.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache at path. ":memory:" gives a private
// in-memory cache.
func Open(path string) (*Cache, error) {
	if path == "" {
		return nil, fmt.Errorf("empty cache path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS solutions (
		key        TEXT PRIMARY KEY,
		actions    BLOB NOT NULL,
		quality    INTEGER NOT NULL,
		progress   INTEGER NOT NULL,
		optimal    INTEGER NOT NULL,
		nodes      INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);`)
	return err
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get looks up key. The boolean is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (Record, bool, error) {
	var (
		blob    []byte
		rec     Record
		optimal int
		nodes   int64
		created int64
	)
	row := c.db.QueryRowContext(ctx,
		`SELECT actions, quality, progress, optimal, nodes, created_at FROM solutions WHERE key = ?`, key)
	err := row.Scan(&blob, &rec.Quality, &rec.Progress, &optimal, &nodes, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	rec.Actions = make([]sim.Action, len(blob))
	for i, b := range blob {
		a := sim.Action(b)
		if !a.Valid() {
			return Record{}, false, fmt.Errorf("get %s: bad action ordinal %d", key, b)
		}
		rec.Actions[i] = a
	}
	rec.Optimal = optimal != 0
	rec.Nodes = uint64(nodes)
	rec.CreatedAt = time.Unix(created, 0).UTC()
	return rec, true, nil
}

// Put stores rec under key, replacing any earlier entry. Actions are stored as
// their ordinal bytes.
func (c *Cache) Put(ctx context.Context, key string, rec Record) error {
	blob := make([]byte, len(rec.Actions))
	for i, a := range rec.Actions {
		blob[i] = byte(a)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	optimal := 0
	if rec.Optimal {
		optimal = 1
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO solutions (key, actions, quality, progress, optimal, nodes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			actions = excluded.actions,
			quality = excluded.quality,
			progress = excluded.progress,
			optimal = excluded.optimal,
			nodes = excluded.nodes,
			created_at = excluded.created_at`,
		key, blob, rec.Quality, rec.Progress, optimal, int64(rec.Nodes), rec.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Len returns the number of cached solutions.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM solutions`).Scan(&n)
	return n, err
}
