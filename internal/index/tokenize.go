// Package index builds the token-weighted inverted index over a record
// collection: tokenization, attribute masking, corpus extraction,
// count/importance weighting, and index persistence.
package index

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentStripper decomposes to NFD, drops combining marks, and recomposes,
// so "Rhône" tokenizes identically to "Rhone".
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripAccents removes diacritical marks from s.
func StripAccents(s string) string {
	out, _, err := transform.String(accentStripper, s)
	if err != nil {
		return s
	}
	return out
}

// Simplify lowercases, strips accents, and collapses whitespace runs to
// single spaces. String-level edit distances are computed on this form.
func Simplify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(StripAccents(s))), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Tokenize splits text into lowercase, accent-stripped tokens. A token is a
// maximal run of word characters of at least minLen runes; shorter runs and
// punctuation are dropped silently.
func Tokenize(text string, minLen int) []string {
	text = strings.ToLower(StripAccents(text))
	var tokens []string
	runes := []rune(text)
	start := -1
	flush := func(end int) {
		if start >= 0 && end-start >= minLen {
			tokens = append(tokens, string(runes[start:end]))
		}
		start = -1
	}
	for i, r := range runes {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
		} else {
			flush(i)
		}
	}
	flush(len(runes))
	return tokens
}
