// Package store persists link records in a single SQLite file and keeps the
// term index in the same file, updated inside every write transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/blitlinks/internal/apperr"
	"github.com/starford/blitlinks/internal/index"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS links (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	text       TEXT NOT NULL DEFAULT '',
	link       TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	shortcut   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_links_shortcut ON links(shortcut);
`

// DB wraps a sql.DB with link store operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) the database file at path and applies the schema.
// The parent directory is created when missing.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create support dir: %w: %w", apperr.ErrStorageUnavailable, err)
	}
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, unavailable("open db", err)
	}
	// One connection: the file has a single owner, and data_version is only
	// meaningful when every local commit happens on the same connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, unavailable("ping", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, unavailable("apply core schema", err)
	}
	if _, err := conn.Exec(index.SchemaSQL); err != nil {
		conn.Close()
		return nil, unavailable("apply index schema", err)
	}
	return &DB{conn: conn, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// unavailable tags a driver error as a storage failure.
func unavailable(op string, err error) error {
	return fmt.Errorf("store: %s: %w: %w", op, apperr.ErrStorageUnavailable, err)
}

// DataVersion returns SQLite's data_version, which changes whenever another
// connection (usually another process) commits to the file.
func (db *DB) DataVersion(ctx context.Context) (int64, error) {
	var v int64
	if err := db.conn.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v); err != nil {
		return 0, unavailable("data version", err)
	}
	return v, nil
}
