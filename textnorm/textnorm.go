// Package textnorm normalises and tokenises Dutch utterances before they
// reach the phonetic encoders and matcher.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// diacriticFold maps accented Latin runes to their unaccented base letter,
// following the fold table from spec §4.1 (à-å→a, ç→c, è-ë→e, ì-ï→i, ñ→n,
// ò-ö→o, ù-ü→u, ý/ÿ→y). Built at init from the explicit rune ranges and
// single-rune entries below; Normalize additionally drops the combining
// marks left by NFD decomposition.
var diacriticFold = buildDiacriticFold()

func buildDiacriticFold() map[rune]rune {
	ranges := []struct {
		lo, hi rune
		base   rune
	}{
		{'à', 'å', 'a'},
		{'è', 'ë', 'e'},
		{'ì', 'ï', 'i'},
		{'ò', 'ö', 'o'},
		{'ù', 'ü', 'u'},
	}
	m := map[rune]rune{
		'ç': 'c',
		'ñ': 'n',
		'ý': 'y',
		'ÿ': 'y',
	}
	for _, r := range ranges {
		for c := r.lo; c <= r.hi; c++ {
			m[c] = r.base
		}
	}
	return m
}

// Normalize lowercases, folds diacritics, replaces non-alphanumeric runes
// with a space (preserving word boundaries rather than deleting them),
// collapses whitespace runs to a single space, and trims the result.
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	decomposed := norm.NFD.String(lowered)

	var b strings.Builder
	b.Grow(len(decomposed))
	lastWasSpace := false
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			// combining mark produced by NFD decomposition; dropped so the
			// base letter (already handled via diacriticFold below or left
			// as-is) stands alone.
			continue
		}
		if folded, ok := diacriticFold[r]; ok {
			r = folded
		}
		var out rune
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
			out = r
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			out = r
		default:
			out = ' '
		}
		if out == ' ' {
			if lastWasSpace {
				continue
			}
			lastWasSpace = true
		} else {
			lastWasSpace = false
		}
		b.WriteRune(out)
	}
	return strings.TrimSpace(b.String())
}

// Tokenize splits an already-normalised string on single spaces, discarding
// empty tokens. Callers that have not yet normalised should call Normalize
// first; Tokenize does not normalise on their behalf.
func Tokenize(normalised string) []string {
	if normalised == "" {
		return nil
	}
	parts := strings.Split(normalised, " ")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

// NormalizeAndTokenize is a convenience wrapper combining Normalize and
// Tokenize, used by the matcher's phrase segmentation phase.
func NormalizeAndTokenize(text string) (string, []string) {
	normalised := Normalize(text)
	return normalised, Tokenize(normalised)
}
