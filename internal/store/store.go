package store

import (
	"context"

	"github.com/starford/blitlinks/internal/index"
	"github.com/starford/blitlinks/internal/models"
)

// LinkStore defines the record store and index operations the link service
// depends on. Consumers should depend on this interface rather than the
// concrete *DB type.
type LinkStore interface {
	Insert(ctx context.Context, f models.Fields) (models.Link, error)
	Update(ctx context.Context, id int64, f models.Fields) (models.Link, error)
	Get(ctx context.Context, id int64) (models.Link, error)
	GetMany(ctx context.Context, ids []int64) (map[int64]models.Link, error)
	ListAll(ctx context.Context) ([]models.Link, error)
	ShortcutMatches(ctx context.Context, shortcut string) ([]int64, error)
	Postings(ctx context.Context, prefix string) ([]index.Posting, error)
	Stats(ctx context.Context) (index.Stats, error)
	Reindex(ctx context.Context) (int, error)
	Consistent(ctx context.Context) (bool, error)
}

// Verify *DB satisfies LinkStore at compile time.
var _ LinkStore = (*DB)(nil)
