// Package tokenizer splits record text into index terms and normalizes raw
// search input into a query the index can answer.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Tokenize lower-cases text and splits it on every rune outside [a-zA-Z0-9],
// the same boundary Sanitize applies to queries, so "naïve" is indexed as
// "na" and "ve". Duplicates are kept so callers can count frequency.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	return strings.FieldsFunc(text, func(r rune) bool {
		return r >= utf8.RuneSelf || !isASCIIAlnum(byte(r))
	})
}

// Frequencies counts each distinct term of text.
func Frequencies(text string) (map[string]int, int) {
	terms := Tokenize(text)
	out := make(map[string]int, len(terms))
	for _, t := range terms {
		out[t]++
	}
	return out, len(terms)
}

// Sanitize replaces every run of characters outside [a-zA-Z0-9] with a single
// space and trims the result. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	gap := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if isASCIIAlnum(c) {
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteByte(c)
			continue
		}
		gap = true
	}
	return b.String()
}

// QueryTerms returns the distinct lower-cased terms of a sanitized query in
// the order they first appear.
func QueryTerms(sanitized string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range strings.Fields(strings.ToLower(sanitized)) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func isASCIIAlnum(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}
