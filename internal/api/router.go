// Package api implements the blitlinks REST API using chi.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/blitlinks/internal/linkservice"
)

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc *linkservice.Service, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Get("/links", h.SearchLinks)
	r.Post("/links", h.CreateLink)
	r.Get("/links/{id}", h.GetLink)
	r.Put("/links/{id}", h.UpdateLink)

	r.Post("/reindex", h.Reindex)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
