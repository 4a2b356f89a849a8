// Package backup exports links to a YAML document and imports them back.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/blitlinks/internal/models"
)

// FormatVersion is written to every document. Import rejects newer versions.
const FormatVersion = 1

// ErrChecksumMismatch is returned when a document's links were edited after
// export without updating the checksum.
var ErrChecksumMismatch = errors.New("backup: checksum mismatch")

// Document is the on-disk layout.
type Document struct {
	Version    int       `yaml:"version"`
	ExportedAt time.Time `yaml:"exported_at"`
	// Checksum is the hex SHA-256 of the YAML encoding of Links. Optional on
	// import so hand-written files are accepted.
	Checksum string  `yaml:"checksum,omitempty"`
	Links    []Entry `yaml:"links"`
}

// Entry is one exported link. ID is the id at export time and only orders
// the import; new ids are assigned.
type Entry struct {
	ID       int64  `yaml:"id"`
	Text     string `yaml:"text,omitempty"`
	Link     string `yaml:"link,omitempty"`
	Title    string `yaml:"title,omitempty"`
	Shortcut string `yaml:"shortcut,omitempty"`
}

func (e Entry) fields() models.Fields {
	return models.Fields{Text: e.Text, Link: e.Link, Title: e.Title, Shortcut: e.Shortcut}
}

// Lister is the read side of the link service.
type Lister interface {
	ListAll(ctx context.Context) ([]models.Link, error)
}

// Saver is the write side of the link service.
type Saver interface {
	Save(ctx context.Context, id int64, f models.Fields) (models.Link, error)
}

// Export writes every link to path, oldest first, and returns how many were
// written. The file is replaced atomically.
func Export(ctx context.Context, src Lister, path string) (int, error) {
	links, err := src.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("backup: export: %w", err)
	}

	entries := make([]Entry, len(links))
	for i, l := range links {
		entries[i] = Entry{ID: l.ID, Text: l.Text, Link: l.Link, Title: l.Title, Shortcut: l.Shortcut}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	sum, err := digest(entries)
	if err != nil {
		return 0, err
	}
	doc := Document{
		Version:    FormatVersion,
		ExportedAt: time.Now().UTC().Truncate(time.Second),
		Checksum:   sum,
		Links:      entries,
	}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return 0, fmt.Errorf("backup: encode: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Read parses and verifies the document at path.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("backup: read %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("backup: parse %s: %w", path, err)
	}
	if doc.Version > FormatVersion {
		return nil, fmt.Errorf("backup: %s has format version %d, newest supported is %d",
			path, doc.Version, FormatVersion)
	}
	if doc.Checksum != "" {
		sum, err := digest(doc.Links)
		if err != nil {
			return nil, err
		}
		if sum != doc.Checksum {
			return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
		}
	}
	return &doc, nil
}

// Import inserts every entry of the document at path as a new link, in
// ascending original id order so relative recency survives. It stops at the
// first failing entry and returns how many were inserted before it.
func Import(ctx context.Context, dst Saver, path string) (int, error) {
	doc, err := Read(path)
	if err != nil {
		return 0, err
	}

	entries := append([]Entry(nil), doc.Links...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := dst.Save(ctx, 0, e.fields()); err != nil {
			return i, fmt.Errorf("backup: import entry with id %d: %w", e.ID, err)
		}
	}
	return len(entries), nil
}

func digest(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("backup: encode links: %w", err)
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:]), nil
}

// writeFileAtomic writes content to a temp file next to path, syncs it and
// renames it over path.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("backup: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".blitlinks-export-*")
	if err != nil {
		return fmt.Errorf("backup: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("backup: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("backup: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("backup: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("backup: rename: %w", err)
	}
	success = true
	return nil
}
