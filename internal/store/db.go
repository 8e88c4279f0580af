// Package store provides read/query access to the engine's SQLite activity
// database, including the sqlite-vec embedding index.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// DefaultEmbeddingDim is used when the caller does not configure dimensions.
const DefaultEmbeddingDim = 768

// Options configure how the database is opened.
type Options struct {
	// Collection names the embedding index tables. Defaults to "activities".
	Collection string
	// EmbeddingDim is the vector dimensionality. Defaults to DefaultEmbeddingDim.
	EmbeddingDim int
}

// DB wraps a SQLite connection with sqlite-vec support.
type DB struct {
	conn       *sql.DB
	mu         sync.Mutex // serialize writes
	path       string
	collection string
	dims       int
}

// Open opens or creates the database at the given path.
func Open(path string, opts Options) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := conn.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	db := newDB(conn, opts)
	db.path = path
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// OpenMemory opens an in-memory database for testing.
func OpenMemory() (*DB, error) {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	// Each pooled connection would otherwise see its own empty :memory: db.
	conn.SetMaxOpenConns(1)
	db := newDB(conn, Options{})
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

func newDB(conn *sql.DB, opts Options) *DB {
	collection := opts.Collection
	if collection == "" {
		collection = "activities"
	}
	dims := opts.EmbeddingDim
	if dims <= 0 {
		dims = DefaultEmbeddingDim
	}
	return &DB{conn: conn, collection: collection, dims: dims}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying sql.DB for direct queries.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// vecTable returns the name of the embedding virtual table.
func (db *DB) vecTable() string {
	return db.collection + "_vec"
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			activity_id TEXT NOT NULL UNIQUE,
			timestamp INTEGER NOT NULL,
			app_name TEXT NOT NULL DEFAULT '',
			window_title TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT '',
			context_id TEXT NOT NULL DEFAULT '',
			duration_seconds INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_timestamp ON activities(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_app ON activities(app_name)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_context ON activities(context_id)`,

		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(
			activity_row INTEGER PRIMARY KEY,
			embedding float[%d]
		)`, db.vecTable(), db.dims),

		`CREATE TABLE IF NOT EXISTS contexts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			last_active INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contexts_last_active ON contexts(last_active)`,
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// Stats aggregates activity-database counts.
type Stats struct {
	TotalActivities int    `json:"total_activities"`
	TotalContexts   int    `json:"total_contexts"`
	EmbeddedRows    int    `json:"embedded_rows"`
	OldestTimestamp int64  `json:"oldest_timestamp,omitempty"`
	NewestTimestamp int64  `json:"newest_timestamp,omitempty"`
	DatabaseBytes   int64  `json:"database_bytes,omitempty"`
	Collection      string `json:"collection"`
}

// GetStats returns aggregate counts for the activity store.
func (db *DB) GetStats() (Stats, error) {
	s := Stats{Collection: db.collection}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM activities`).Scan(&s.TotalActivities); err != nil {
		return s, fmt.Errorf("count activities: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM contexts`).Scan(&s.TotalContexts); err != nil {
		return s, fmt.Errorf("count contexts: %w", err)
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM ` + db.vecTable()).Scan(&s.EmbeddedRows); err != nil {
		return s, fmt.Errorf("count embeddings: %w", err)
	}
	if s.TotalActivities > 0 {
		_ = db.conn.QueryRow(`SELECT MIN(timestamp), MAX(timestamp) FROM activities`).
			Scan(&s.OldestTimestamp, &s.NewestTimestamp)
	}
	if db.path != "" {
		if info, err := os.Stat(db.path); err == nil {
			s.DatabaseBytes = info.Size()
		}
	}
	return s, nil
}
