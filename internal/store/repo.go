package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/blitlinks/internal/apperr"
	"github.com/starford/blitlinks/internal/index"
	"github.com/starford/blitlinks/internal/models"
)

const selectLinkSQL = `SELECT id, text, link, title, shortcut, created_at, updated_at FROM links`

// Insert stores a new record and indexes it within one transaction.
// Every value is bound as a parameter, so any string round-trips unchanged.
func (db *DB) Insert(ctx context.Context, f models.Fields) (models.Link, error) {
	if err := f.Validate(); err != nil {
		return models.Link{}, fmt.Errorf("store: insert: %w: %w", apperr.ErrInvalidRecord, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Link{}, unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO links (text, link, title, shortcut, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, f.Text, f.Link, f.Title, f.Shortcut, now, now)
	if err != nil {
		return models.Link{}, unavailable("insert link", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Link{}, unavailable("last insert id", err)
	}

	if err := index.Write(ctx, tx, id, f); err != nil {
		return models.Link{}, unavailable("index link", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Link{}, unavailable("commit", err)
	}

	return models.Link{ID: id, Fields: f, CreatedAt: now, UpdatedAt: now}, nil
}

// Update replaces all four fields of link id and re-indexes it.
func (db *DB) Update(ctx context.Context, id int64, f models.Fields) (models.Link, error) {
	if err := f.Validate(); err != nil {
		return models.Link{}, fmt.Errorf("store: update %d: %w: %w", id, apperr.ErrInvalidRecord, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Link{}, unavailable("begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE links
		SET text = ?, link = ?, title = ?, shortcut = ?, updated_at = ?
		WHERE id = ?
	`, f.Text, f.Link, f.Title, f.Shortcut, now, id)
	if err != nil {
		return models.Link{}, unavailable("update link", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Link{}, unavailable("rows affected", err)
	}
	if n == 0 {
		return models.Link{}, fmt.Errorf("store: update %d: %w", id, apperr.ErrNotFound)
	}

	if err := index.Remove(ctx, tx, id); err != nil {
		return models.Link{}, unavailable("unindex link", err)
	}
	if err := index.Write(ctx, tx, id, f); err != nil {
		return models.Link{}, unavailable("index link", err)
	}

	l, err := scanLink(tx.QueryRowContext(ctx, selectLinkSQL+` WHERE id = ?`, id))
	if err != nil {
		return models.Link{}, unavailable("reload link", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Link{}, unavailable("commit", err)
	}
	return l, nil
}

// Get returns link id or apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, id int64) (models.Link, error) {
	l, err := scanLink(db.conn.QueryRowContext(ctx, selectLinkSQL+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Link{}, fmt.Errorf("store: get %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Link{}, unavailable("get link", err)
	}
	return l, nil
}

// GetMany returns the links that exist among ids, keyed by id. Missing ids
// are simply absent from the map.
func (db *DB) GetMany(ctx context.Context, ids []int64) (map[int64]models.Link, error) {
	out := make(map[int64]models.Link, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.QueryContext(ctx, selectLinkSQL+` WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, unavailable("get links", err)
	}
	defer rows.Close()
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, unavailable("scan link", err)
		}
		out[l.ID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get links", err)
	}
	return out, nil
}

// ListAll returns every link, newest first.
func (db *DB) ListAll(ctx context.Context) ([]models.Link, error) {
	rows, err := db.conn.QueryContext(ctx, selectLinkSQL+` ORDER BY id DESC`)
	if err != nil {
		return nil, unavailable("list links", err)
	}
	defer rows.Close()

	out := []models.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, unavailable("scan link", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list links", err)
	}
	return out, nil
}

// ShortcutMatches returns the ids, newest first, whose shortcut equals
// shortcut exactly (case-sensitive).
func (db *DB) ShortcutMatches(ctx context.Context, shortcut string) ([]int64, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id FROM links WHERE shortcut = ? ORDER BY id DESC`, shortcut)
	if err != nil {
		return nil, unavailable("shortcut lookup", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan id", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("shortcut lookup", err)
	}
	return out, nil
}

// Postings returns index postings for terms beginning with prefix.
func (db *DB) Postings(ctx context.Context, prefix string) ([]index.Posting, error) {
	p, err := index.Lookup(ctx, db.conn, prefix)
	if err != nil {
		if errors.Is(err, apperr.ErrMalformedQuery) {
			return nil, err
		}
		return nil, unavailable("postings", err)
	}
	return p, nil
}

// Stats returns collection statistics from the index.
func (db *DB) Stats(ctx context.Context) (index.Stats, error) {
	s, err := index.LoadStats(ctx, db.conn)
	if err != nil {
		return index.Stats{}, unavailable("stats", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(r rowScanner) (models.Link, error) {
	var l models.Link
	err := r.Scan(&l.ID, &l.Text, &l.Link, &l.Title, &l.Shortcut, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}
