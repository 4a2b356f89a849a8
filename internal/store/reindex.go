package store

import (
	"context"

	"github.com/starford/blitlinks/internal/index"
	"github.com/starford/blitlinks/internal/models"
)

// Reindex rebuilds the whole term index from the links table in a single
// transaction and returns the number of links indexed. The links table is the
// source of truth; the index is always reproducible from it.
func (db *DB) Reindex(ctx context.Context) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `SELECT id, text, link, title, shortcut FROM links`)
	if err != nil {
		return 0, unavailable("reindex: read links", err)
	}
	type entry struct {
		id int64
		f  models.Fields
	}
	var all []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.f.Text, &e.f.Link, &e.f.Title, &e.f.Shortcut); err != nil {
			rows.Close()
			return 0, unavailable("reindex: scan link", err)
		}
		all = append(all, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, unavailable("reindex: read links", err)
	}

	if err := index.Clear(ctx, tx); err != nil {
		return 0, unavailable("reindex: clear", err)
	}
	for _, e := range all {
		if err := index.Write(ctx, tx, e.id, e.f); err != nil {
			return 0, unavailable("reindex: write", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, unavailable("reindex: commit", err)
	}
	return len(all), nil
}

// Consistent reports whether the index covers exactly the stored links:
// every link has a document entry and no index row points at a missing link.
func (db *DB) Consistent(ctx context.Context) (bool, error) {
	var missing, orphanDocs, orphanTerms int
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM links WHERE id NOT IN (SELECT link_id FROM link_docs)),
			(SELECT COUNT(*) FROM link_docs WHERE link_id NOT IN (SELECT id FROM links)),
			(SELECT COUNT(*) FROM link_terms WHERE link_id NOT IN (SELECT id FROM links))
	`).Scan(&missing, &orphanDocs, &orphanTerms)
	if err != nil {
		return false, unavailable("consistency check", err)
	}
	return missing+orphanDocs+orphanTerms == 0, nil
}
