// Package linkservice is the engine facade: it answers searches with ranked
// records and routes saves to the store, which re-indexes synchronously.
package linkservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/blitlinks/internal/apperr"
	"github.com/starford/blitlinks/internal/index"
	"github.com/starford/blitlinks/internal/metrics"
	"github.com/starford/blitlinks/internal/models"
	"github.com/starford/blitlinks/internal/store"
	"github.com/starford/blitlinks/internal/tokenizer"
)

// Change kinds passed to a ChangeFunc.
const (
	ChangeCreated   = "created"
	ChangeUpdated   = "updated"
	ChangeReindexed = "reindexed"
)

// ChangeFunc is called after a successful write or rebuild. id is zero for
// rebuilds.
type ChangeFunc func(kind string, id int64)

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics records search and write metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithChangeHook registers fn to run after every committed change.
func WithChangeHook(fn ChangeFunc) Option {
	return func(s *Service) { s.onChange = fn }
}

// Service coordinates the record store and the ranker.
type Service struct {
	store    store.LinkStore
	logger   *slog.Logger
	metrics  *metrics.Metrics
	onChange ChangeFunc
}

// New creates a link service over st.
func New(st store.LinkStore, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync rebuilds the index when it no longer matches the stored links.
func (s *Service) Sync(ctx context.Context) error {
	ok, err := s.store.Consistent(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	s.logger.Warn("sync: index out of date, rebuilding")
	_, err = s.reindex(ctx, "startup")
	return err
}

// Search returns the records matching query. A query with no ASCII letters or
// digits lists every record newest first. Otherwise exact shortcut matches
// come first, then prefix matches by relevance, then by recency.
func (s *Service) Search(ctx context.Context, query string) ([]models.Link, error) {
	start := time.Now()
	links, resultType, err := s.search(ctx, query)
	s.metrics.ObserveSearch(resultType, time.Since(start), len(links))
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (s *Service) search(ctx context.Context, query string) ([]models.Link, string, error) {
	q := tokenizer.Sanitize(query)
	if q == "" {
		links, err := s.store.ListAll(ctx)
		if err != nil {
			return nil, metrics.ResultError, err
		}
		return links, metrics.ResultListing, nil
	}

	links, err := s.rankedSearch(ctx, q)
	if errors.Is(err, apperr.ErrIndexCorruption) {
		s.logger.Warn("search: index references missing links, rebuilding",
			slog.String("query", q), slog.String("error", err.Error()))
		if _, rerr := s.reindex(ctx, "corruption"); rerr != nil {
			return nil, metrics.ResultError, rerr
		}
		links, err = s.rankedSearch(ctx, q)
	}
	if err != nil {
		return nil, metrics.ResultError, err
	}
	if len(links) == 0 {
		return links, metrics.ResultZero, nil
	}
	return links, metrics.ResultHit, nil
}

// rankedSearch answers a non-empty sanitized query.
func (s *Service) rankedSearch(ctx context.Context, q string) ([]models.Link, error) {
	shortcutIDs, err := s.store.ShortcutMatches(ctx, q)
	if err != nil {
		return nil, err
	}

	terms := tokenizer.QueryTerms(q)
	postings := make(map[string][]index.Posting, len(terms))
	for _, term := range terms {
		p, err := s.store.Postings(ctx, term)
		if err != nil {
			return nil, err
		}
		postings[term] = p
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	ranked := index.Rank(postings, stats)

	ids := make([]int64, 0, len(shortcutIDs)+len(ranked))
	seen := make(map[int64]struct{}, cap(ids))
	for _, id := range shortcutIDs {
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, r := range ranked {
		if _, ok := seen[r.LinkID]; ok {
			continue
		}
		seen[r.LinkID] = struct{}{}
		ids = append(ids, r.LinkID)
	}

	byID, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.Link, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("linkservice: link %d indexed but not stored: %w", id, apperr.ErrIndexCorruption)
		}
		out = append(out, l)
	}
	return out, nil
}

// Save inserts f when id is zero and otherwise replaces all fields of link id.
// The returned record carries the assigned id.
func (s *Service) Save(ctx context.Context, id int64, f models.Fields) (models.Link, error) {
	if id == 0 {
		l, err := s.store.Insert(ctx, f)
		s.metrics.ObserveWrite("insert", err)
		if err != nil {
			return models.Link{}, err
		}
		s.logger.Info("link created", slog.Int64("id", l.ID))
		s.notify(ChangeCreated, l.ID)
		return l, nil
	}

	l, err := s.store.Update(ctx, id, f)
	s.metrics.ObserveWrite("update", err)
	if err != nil {
		return models.Link{}, err
	}
	s.logger.Info("link updated", slog.Int64("id", l.ID))
	s.notify(ChangeUpdated, l.ID)
	return l, nil
}

// Get returns a single record.
func (s *Service) Get(ctx context.Context, id int64) (models.Link, error) {
	return s.store.Get(ctx, id)
}

// ListAll returns every record, newest first.
func (s *Service) ListAll(ctx context.Context) ([]models.Link, error) {
	return s.store.ListAll(ctx)
}

// Reindex rebuilds the index on request and returns the number of links indexed.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	return s.reindex(ctx, "manual")
}

// Rebuilt records a rebuild performed outside the service, such as by the
// file watcher.
func (s *Service) Rebuilt(n int) {
	s.metrics.ObserveRebuild("external")
	s.logger.Info("index rebuilt after external change", slog.Int("links", n))
	s.notify(ChangeReindexed, 0)
}

func (s *Service) reindex(ctx context.Context, reason string) (int, error) {
	n, err := s.store.Reindex(ctx)
	if err != nil {
		return 0, err
	}
	s.metrics.ObserveRebuild(reason)
	s.logger.Info("index rebuilt", slog.String("reason", reason), slog.Int("links", n))
	s.notify(ChangeReindexed, 0)
	return n, nil
}

func (s *Service) notify(kind string, id int64) {
	if s.onChange != nil {
		s.onChange(kind, id)
	}
}
