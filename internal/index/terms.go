package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/blitlinks/internal/apperr"
	"github.com/starford/blitlinks/internal/models"
	"github.com/starford/blitlinks/internal/tokenizer"
)

// Write adds the terms of f for link id. Callers replacing an existing link
// must call Remove first within the same transaction.
func Write(ctx context.Context, tx Execer, id int64, f models.Fields) error {
	fields := []struct {
		name string
		text string
	}{
		{FieldText, f.Text},
		{FieldLink, f.Link},
		{FieldTitle, f.Title},
		{FieldShortcut, f.Shortcut},
	}

	docLen := 0
	for _, fld := range fields {
		freq, n := tokenizer.Frequencies(fld.text)
		docLen += n
		for term, count := range freq {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO link_terms (term, link_id, field, freq) VALUES (?, ?, ?, ?)`,
				term, id, fld.name, count); err != nil {
				return fmt.Errorf("index: insert term: %w", err)
			}
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO link_docs (link_id, doc_len) VALUES (?, ?)
		ON CONFLICT(link_id) DO UPDATE SET doc_len = excluded.doc_len
	`, id, docLen)
	if err != nil {
		return fmt.Errorf("index: upsert doc: %w", err)
	}
	return nil
}

// Remove drops every term and the document entry of link id.
func Remove(ctx context.Context, tx Execer, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM link_terms WHERE link_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete terms: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM link_docs WHERE link_id = ?`, id); err != nil {
		return fmt.Errorf("index: delete doc: %w", err)
	}
	return nil
}

// Clear empties the whole index.
func Clear(ctx context.Context, tx Execer) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM link_terms`); err != nil {
		return fmt.Errorf("index: clear terms: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM link_docs`); err != nil {
		return fmt.Errorf("index: clear docs: %w", err)
	}
	return nil
}

// Lookup returns postings for every index term that starts with prefix.
// prefix must already be lower-cased and free of GLOB metacharacters.
func Lookup(ctx context.Context, q Querier, prefix string) ([]Posting, error) {
	if prefix == "" || strings.ContainsAny(prefix, "*?[]") {
		return nil, fmt.Errorf("index: lookup %q: %w", prefix, apperr.ErrMalformedQuery)
	}
	rows, err := q.QueryContext(ctx, `
		SELECT t.term, t.link_id, t.field, t.freq, COALESCE(d.doc_len, 0)
		FROM link_terms t
		LEFT JOIN link_docs d ON d.link_id = t.link_id
		WHERE t.term GLOB ?
	`, prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("index: lookup: %w", err)
	}
	defer rows.Close()

	var out []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.Term, &p.LinkID, &p.Field, &p.Freq, &p.DocLen); err != nil {
			return nil, fmt.Errorf("index: scan posting: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LoadStats reads the document count and average document length.
func LoadStats(ctx context.Context, q Querier) (Stats, error) {
	var s Stats
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(doc_len), 0) FROM link_docs`).Scan(&s.Docs, &s.AvgDocLen)
	if err != nil {
		return Stats{}, fmt.Errorf("index: stats: %w", err)
	}
	return s, nil
}
