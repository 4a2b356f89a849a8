package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/blitlinks/internal/linkservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *linkservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *linkservice.Service) *Handler {
	return &Handler{svc: svc}
}

// linkID parses the {id} route parameter. It reports false after writing a
// 400 response.
func linkID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func decodeSave(w http.ResponseWriter, r *http.Request) (SaveLinkRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SaveLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return req, false
	}
	return req, true
}

// SearchLinks handles GET /api/links.
//
//	@Summary		Search links, or list all of them when q is empty
//	@Tags			links
//	@Produce		json
//	@Param			q	query		string	false	"Search query"
//	@Success		200	{object}	LinkListResponse
//	@Failure		400	{object}	errResponse
//	@Router			/links [get]
func (h *Handler) SearchLinks(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, LinkListResponse{Links: links, Total: len(links)})
}

// GetLink handles GET /api/links/{id}.
//
//	@Summary		Get a single link
//	@Tags			links
//	@Produce		json
//	@Param			id	path		int	true	"Link id"
//	@Success		200	{object}	Link
//	@Failure		404	{object}	errResponse
//	@Router			/links/{id} [get]
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}
	l, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, "get link", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// CreateLink handles POST /api/links.
//
//	@Summary		Create a link
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveLinkRequest	true	"Link to create"
//	@Success		201		{object}	Link
//	@Failure		400		{object}	errResponse
//	@Router			/links [post]
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSave(w, r)
	if !ok {
		return
	}
	l, err := h.svc.Save(r.Context(), 0, req.fields())
	if err != nil {
		writeError(w, "create link", err)
		return
	}
	w.Header().Set("Location", "/api/links/"+strconv.FormatInt(l.ID, 10))
	writeJSON(w, http.StatusCreated, l)
}

// UpdateLink handles PUT /api/links/{id}.
//
//	@Summary		Replace all fields of a link
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int				true	"Link id"
//	@Param			body	body		SaveLinkRequest	true	"New field values"
//	@Success		200		{object}	Link
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/links/{id} [put]
func (h *Handler) UpdateLink(w http.ResponseWriter, r *http.Request) {
	id, ok := linkID(w, r)
	if !ok {
		return
	}
	req, ok := decodeSave(w, r)
	if !ok {
		return
	}
	l, err := h.svc.Save(r.Context(), id, req.fields())
	if err != nil {
		writeError(w, "update link", err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// Reindex handles POST /api/reindex.
//
//	@Summary		Rebuild the search index from the stored links
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	ReindexResponse
//	@Failure		503	{object}	errResponse
//	@Router			/reindex [post]
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Reindex(r.Context())
	if err != nil {
		writeError(w, "reindex", err)
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{Indexed: n})
}
