package api

import "github.com/starford/blitlinks/internal/models"

// SaveLinkRequest is the request body for creating or replacing a link.
// Omitted fields are stored as empty strings.
type SaveLinkRequest struct {
	Text     string `json:"text" example:"Go documentation"`
	Link     string `json:"link" example:"https://go.dev/doc"`
	Title    string `json:"title" example:"Documentation - The Go Programming Language"`
	Shortcut string `json:"shortcut" example:"godoc"`
}

func (r SaveLinkRequest) fields() models.Fields {
	return models.Fields{Text: r.Text, Link: r.Link, Title: r.Title, Shortcut: r.Shortcut}
}

// Link is a stored record (aliased from the domain layer).
type Link = models.Link

// LinkListResponse wraps search results and listings.
type LinkListResponse struct {
	Links []Link `json:"links" validate:"required"`
	Total int    `json:"total" example:"42" validate:"required"`
}

// ReindexResponse reports how many links a rebuild indexed.
type ReindexResponse struct {
	Indexed int `json:"indexed" example:"42" validate:"required"`
}
