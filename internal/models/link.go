// Package models defines the domain types for blitlinks.
package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Fields holds the user-editable text of a link record. Every field is
// optional; updates always replace all four.
type Fields struct {
	Text     string `json:"text"`
	Link     string `json:"link"`
	Title    string `json:"title"`
	Shortcut string `json:"shortcut"`
}

// Link is one persisted record. ID is assigned by the store, increases
// monotonically and never changes.
type Link struct {
	ID int64 `json:"id"`
	Fields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var errBlank = errors.New("at least one of text, link, title or shortcut is required")

// Blank reports whether every field is empty or whitespace.
func (f Fields) Blank() bool {
	return strings.TrimSpace(f.Text) == "" &&
		strings.TrimSpace(f.Link) == "" &&
		strings.TrimSpace(f.Title) == "" &&
		strings.TrimSpace(f.Shortcut) == ""
}

// Validate rejects records that contain invalid UTF-8 or carry no text at all.
// Blank records would never be reachable through search.
func (f Fields) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.Text, validation.By(validUTF8)),
		validation.Field(&f.Link, validation.By(validUTF8)),
		validation.Field(&f.Title, validation.By(validUTF8)),
		validation.Field(&f.Shortcut, validation.By(validUTF8)),
	); err != nil {
		return err
	}
	if f.Blank() {
		return errBlank
	}
	return nil
}

func validUTF8(value any) error {
	s, _ := value.(string)
	if !utf8.ValidString(s) {
		return errors.New("must be valid UTF-8")
	}
	return nil
}
