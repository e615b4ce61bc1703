// Package text normalizes raw review text before tokenization.
package text

import (
	"strings"
	"unicode"
)

// emptyTokens are placeholder strings treated as missing text. Exported
// review dumps routinely carry these instead of real values.
var emptyTokens = map[string]bool{
	"":     true,
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
	"na":   true,
}

// EmptyMarker is the cleaned-text value returned for empty input. Callers
// check the empty flag; the marker keeps logs and reports readable.
const EmptyMarker = ""

// Clean normalizes raw review text. It strips zero-width characters,
// drops control characters and invalid UTF-8, collapses whitespace runs
// to a single space, and trims. Semantic content is never altered: no
// case folding, no stemming.
//
// The returned flag is true when the input is empty after cleaning or is
// one of the placeholder tokens ("nan", "none", "null", "n/a", "na",
// case-insensitive). Empty input is a documented marker, not an error.
func Clean(raw string) (string, bool) {
	var b strings.Builder
	b.Grow(len(raw))

	lastSpace := false
	wrote := false
	for _, r := range raw {
		switch {
		case r == unicode.ReplacementChar:
			// Dropped: invalid UTF-8 decodes to the replacement rune.
			continue
		case isZeroWidth(r):
			continue
		case unicode.IsSpace(r):
			if wrote && !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
			lastSpace = false
			wrote = true
		}
	}

	cleaned := strings.TrimRight(b.String(), " ")

	if emptyTokens[strings.ToLower(cleaned)] {
		return EmptyMarker, true
	}

	return cleaned, false
}

// isZeroWidth reports whether the rune is a zero-width character
// (ZWSP, ZWNJ, ZWJ) or a byte order mark.
func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return false
}

// IsEmptyToken reports whether a raw value is one of the placeholder
// tokens treated as missing.
func IsEmptyToken(s string) bool {
	return emptyTokens[strings.ToLower(strings.TrimSpace(s))]
}
