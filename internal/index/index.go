// Package index maintains the inverted term index over link records and ranks
// prefix matches against it. Index rows live in the same SQLite file as the
// records and are always written inside the caller's transaction, so a
// committed record is searchable as soon as the write returns.
package index

import (
	"context"
	"database/sql"
)

// SchemaSQL creates the index tables. link_terms is keyed by term first so a
// GLOB prefix lookup can use the primary key.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS link_terms (
	term    TEXT    NOT NULL,
	link_id INTEGER NOT NULL,
	field   TEXT    NOT NULL,
	freq    INTEGER NOT NULL,
	PRIMARY KEY (term, link_id, field)
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_link_terms_link ON link_terms(link_id);

CREATE TABLE IF NOT EXISTS link_docs (
	link_id INTEGER PRIMARY KEY,
	doc_len INTEGER NOT NULL DEFAULT 0
);
`

// Indexed field names.
const (
	FieldText     = "text"
	FieldLink     = "link"
	FieldTitle    = "title"
	FieldShortcut = "shortcut"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Posting records how often an index term occurs in one field of one link.
// DocLen is the total token count of the link across all fields.
type Posting struct {
	Term   string
	LinkID int64
	Field  string
	Freq   int
	DocLen int
}

// Stats describes the indexed collection as a whole.
type Stats struct {
	Docs      int
	AvgDocLen float64
}
