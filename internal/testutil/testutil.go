// Package testutil provides shared test helpers for setting up link databases
// and services.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/blitlinks/internal/linkservice"
	"github.com/starford/blitlinks/internal/models"
	"github.com/starford/blitlinks/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "blitlinks-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestService creates a link service over a fresh temporary database.
func TestService(t *testing.T, opts ...linkservice.Option) (*linkservice.Service, *store.DB) {
	t.Helper()
	db := TestDB(t)
	return linkservice.New(db, opts...), db
}

// MustSave inserts f through svc and returns the new record.
func MustSave(t *testing.T, svc *linkservice.Service, f models.Fields) models.Link {
	t.Helper()
	l, err := svc.Save(context.Background(), 0, f)
	if err != nil {
		t.Fatalf("Save(%+v): %v", f, err)
	}
	return l
}
