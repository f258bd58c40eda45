// Package normalize provides canonical string forms for the identifiers this
// system correlates on. Inbound channel events carry phone numbers and
// identification numbers in whatever format the user typed ("123.456.789",
// "+57 300 123 4567"); lookups must be invariant to that formatting.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// IdentificationNumber strips non-semantic punctuation (thousands separators,
// spaces, hyphens) from an identification number, keeping only letters and
// digits. "123.456.789" and "123456789" normalize to the same value.
func IdentificationNumber(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ChannelIdentifier canonicalizes a phone-like channel identifier: whitespace,
// dots, hyphens and parentheses are dropped, a single leading "+" is kept.
func ChannelIdentifier(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if r == '+' && i == 0 {
			b.WriteRune(r)
			continue
		}
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	// A sign with no digits is not an identifier.
	if b.String() == "+" {
		return ""
	}
	return b.String()
}

// stripDiacritics removes combining marks after NFD decomposition, so that
// "Pérez" and "Perez" compare equal in searches.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SearchTerm folds a free-form search term for matching: trimmed, lowercased,
// diacritics removed, internal whitespace collapsed to single spaces.
// Returns "" for terms that are empty after trimming.
func SearchTerm(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(stripDiacritics, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
