package linkservice

import (
	"context"
	"sync"

	"github.com/starford/blitlinks/internal/apperr"
	"github.com/starford/blitlinks/internal/models"
)

// State is the result of the most recent search that was allowed to commit.
type State struct {
	Generation uint64
	Query      string
	Results    []models.Link
}

// Session serializes a stream of searches from one caller, such as a search
// box that fires on every keystroke. Requests are ordered by when Begin was
// called, not by when they run: each Begin cancels the request before it,
// and a request that is no longer the newest when it completes returns
// apperr.ErrSuperseded without touching the session state.
type Session struct {
	svc *Service

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	state  State
}

// Request is one issued search. Its generation is fixed by Begin.
type Request struct {
	sess   *Session
	gen    uint64
	query  string
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSession creates a search session on svc.
func NewSession(svc *Service) *Session {
	return &Session{svc: svc}
}

// Begin issues query as the newest request of the session and cancels the
// previous one. Call it in input order; Wait may then run on any goroutine.
func (s *Session) Begin(ctx context.Context, query string) *Request {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	return &Request{sess: s, gen: s.gen, query: query, ctx: ctx, cancel: cancel}
}

// Search issues query and waits for it.
func (s *Session) Search(ctx context.Context, query string) ([]models.Link, error) {
	return s.Begin(ctx, query).Wait()
}

// Generation is the request's position in the session.
func (r *Request) Generation() uint64 {
	return r.gen
}

// Query returns the raw query the request was issued with.
func (r *Request) Query() string {
	return r.query
}

// Wait runs the search and commits its result if no newer request has been
// issued in the meantime.
func (r *Request) Wait() ([]models.Link, error) {
	defer r.cancel()
	results, err := r.sess.svc.Search(r.ctx, r.query)

	s := r.sess
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.gen != s.gen {
		return nil, apperr.ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}
	s.state = State{Generation: r.gen, Query: r.query, Results: results}
	return results, nil
}

// Latest returns the state committed by the newest completed search.
func (s *Session) Latest() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel aborts the pending search, if any. Its result will be discarded.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
