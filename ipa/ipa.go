// Package ipa phonemizes normalised Dutch text into a space-separated IPA
// token sequence using a longest-match-first grapheme table, and provides
// an edit-distance-based phoneme similarity over the resulting tokens.
package ipa

import (
	"strings"

	"github.com/zeebo/xxh3"
)

// multiGraphs lists digraph/trigraph spellings mapped to IPA, ordered
// longest-first so Phonemize can greedily consume the longest match at each
// position. Entries were chosen for the Dutch bird-name domain: the common
// vowel digraphs (aa, ee, oo, uu, ij, eu, ui, ou/au), the sch/ng consonant
// clusters, and ch.
var multiGraphs = []struct {
	grapheme string
	phoneme  string
}{
	{"sch", "sx"},
	{"ng", "ŋ"},
	{"ch", "x"},
	{"aa", "aː"},
	{"ee", "eː"},
	{"oo", "oː"},
	{"uu", "yː"},
	{"ij", "ɛi"},
	{"ei", "ɛi"},
	{"eu", "øː"},
	{"ui", "œy"},
	{"ou", "ʌu"},
	{"au", "ʌu"},
	{"oe", "u"},
	{"ie", "iː"},
}

// singleGraphs is the fallback one-rune map used when no multi-grapheme
// entry matches at the current position.
var singleGraphs = map[rune]string{
	'a': "ɑ", 'b': "b", 'c': "k", 'd': "d", 'e': "ə", 'f': "f", 'g': "ɣ",
	'h': "h", 'i': "ɪ", 'j': "j", 'k': "k", 'l': "l", 'm': "m", 'n': "n",
	'o': "ɔ", 'p': "p", 'q': "k", 'r': "r", 's': "s", 't': "t", 'u': "ʏ",
	'v': "v", 'w': "ʋ", 'x': "ks", 'y': "j", 'z': "z",
}

// vowelPhonemes is the set used by phoneme distance to double substitution
// cost across a vowel/consonant mismatch (spec §4.3).
var vowelPhonemes = map[string]struct{}{
	"ɑ": {}, "ə": {}, "ɪ": {}, "ɔ": {}, "ʏ": {}, "aː": {}, "eː": {}, "iː": {},
	"oː": {}, "y": {}, "u": {}, "ɛi": {}, "œy": {}, "ʌu": {}, "øː": {},
}

func isVowelPhoneme(p string) bool {
	_, ok := vowelPhonemes[p]
	return ok
}

// Phonemize converts already-normalised text into a space-separated IPA
// phoneme sequence. Spaces in the input are skipped (so multi-word windows
// phonemize as one contiguous token stream); results are memoised in a
// bounded LRU.
func Phonemize(normalised string) string {
	if normalised == "" {
		return ""
	}
	if cached, ok := cacheGet(normalised); ok {
		return cached
	}

	runes := []rune(normalised)
	n := len(runes)
	var tokens []string

	for i := 0; i < n; {
		if runes[i] == ' ' {
			i++
			continue
		}
		if tok, width, ok := matchMultiGraph(runes, i); ok {
			tokens = append(tokens, tok)
			i += width
			continue
		}
		if tok, ok := singleGraphs[runes[i]]; ok {
			tokens = append(tokens, tok)
		}
		i++
	}

	result := strings.Join(tokens, " ")
	cachePut(normalised, result)
	return result
}

// matchMultiGraph tries every entry in multiGraphs (already ordered
// longest-first within each length tier; length tiers themselves are
// checked longest-first below) starting at position i.
func matchMultiGraph(runes []rune, i int) (string, int, bool) {
	for width := 3; width >= 2; width-- {
		if i+width > len(runes) {
			continue
		}
		candidate := string(runes[i : i+width])
		for _, mg := range multiGraphs {
			if len(mg.grapheme) == width && mg.grapheme == candidate {
				return mg.phoneme, width, true
			}
		}
	}
	return "", 0, false
}

// PhonemeDistance computes a two-row Levenshtein distance over the
// whitespace-separated phoneme tokens of a and b, doubling the
// substitution cost whenever exactly one side of the pair is a vowel
// phoneme.
func PhonemeDistance(a, b string) int {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	lenA, lenB := len(ta), len(tb)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	prev := make([]int, lenA+1)
	curr := make([]int, lenA+1)
	for i := 0; i <= lenA; i++ {
		prev[i] = i
	}
	for j := 1; j <= lenB; j++ {
		curr[0] = j
		for i := 1; i <= lenA; i++ {
			cost := 0
			if ta[i-1] != tb[j-1] {
				cost = 1
				if isVowelPhoneme(ta[i-1]) != isVowelPhoneme(tb[j-1]) {
					cost = 2
				}
			}
			del := curr[i-1] + 1
			ins := prev[i] + 1
			sub := prev[i-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			curr[i] = m
		}
		prev, curr = curr, prev
	}
	return prev[lenA]
}

// PhonemeSimilarity returns 1 - distance/max(len_a, len_b) in token count,
// with similarity 1 for two empty inputs.
func PhonemeSimilarity(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	maxLen := len(ta)
	if len(tb) > maxLen {
		maxLen = len(tb)
	}
	if maxLen == 0 {
		return 1.0
	}
	d := PhonemeDistance(a, b)
	score := 1.0 - float64(d)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// fingerprint returns a fast, non-cryptographic hash of s that forms part
// of the LRU cache's map key for inputs longer than 64 bytes (shorter
// inputs get 0). The full text is stored in the key as well.
func fingerprint(s string) uint64 {
	if len(s) <= 64 {
		return 0 // short strings are keyed directly; fingerprint unused
	}
	return xxh3.HashString(s)
}
