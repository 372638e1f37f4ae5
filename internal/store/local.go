// Package store implements durable storage on SQLite: per-client continuity
// state, the content-addressed snapshot cache, and the local item store that
// backs the candidate and engagement sources.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// LocalStore wraps a single SQLite database holding all digest tables.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	log    *zap.Logger
}

// NewLocalStore initializes the SQLite database at the given path.
// Use ":memory:" for tests.
func NewLocalStore(path string, log *zap.Logger) (*LocalStore, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		log.Debug("failed to set busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Debug("failed to set journal_mode=WAL", zap.Error(err))
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		log.Debug("failed to set synchronous=NORMAL", zap.Error(err))
	}

	s := &LocalStore{db: db, dbPath: path, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// initialize creates the required tables.
func (s *LocalStore) initialize() error {
	stateTable := `
	CREATE TABLE IF NOT EXISTS continuity_state (
		client_id TEXT PRIMARY KEY,
		last_seen_at INTEGER,
		preferred_depth TEXT NOT NULL DEFAULT 'medium',
		last_snapshot_hash TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);`

	cacheTable := `
	CREATE TABLE IF NOT EXISTS snapshot_cache (
		client_id TEXT NOT NULL,
		snapshot_hash TEXT NOT NULL,
		depth TEXT NOT NULL,
		payload TEXT NOT NULL,
		generated_at INTEGER NOT NULL,
		PRIMARY KEY (client_id, snapshot_hash, depth)
	);
	CREATE INDEX IF NOT EXISTS idx_snapshot_cache_generated ON snapshot_cache(generated_at);`

	itemsTable := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		published_at INTEGER NOT NULL,
		summary TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		significance INTEGER NOT NULL DEFAULT 0,
		story_type TEXT NOT NULL DEFAULT '',
		watch_next TEXT NOT NULL DEFAULT '',
		thread_id TEXT NOT NULL DEFAULT '',
		entities TEXT NOT NULL DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_items_published ON items(published_at);`

	reactionsTable := `
	CREATE TABLE IF NOT EXISTS item_reactions (
		item_id TEXT NOT NULL,
		reaction TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reactions_item ON item_reactions(item_id);`

	engagementTable := `
	CREATE TABLE IF NOT EXISTS topic_engagement (
		topic TEXT PRIMARY KEY,
		interactions INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	);`

	for _, ddl := range []string{stateTable, cacheTable, itemsTable, reactionsTable, engagementTable} {
		if _, err := s.db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
