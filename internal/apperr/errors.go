// Package apperr defines the error kinds surfaced by the link engine.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMalformedQuery     = errors.New("malformed query")
	ErrIndexCorruption    = errors.New("index corruption")
	ErrInvalidRecord      = errors.New("invalid record")
	// ErrSuperseded is returned to a search whose result arrived after a newer
	// search had already started.
	ErrSuperseded = errors.New("superseded by a newer search")
)
