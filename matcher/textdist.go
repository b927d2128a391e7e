// Package matcher implements the exact and fuzzy matching cascade: phrase
// segmentation, exact lookup, hybrid phonetic scoring, and count
// attachment.
package matcher

import "github.com/antzucaro/matchr"

// textDistance returns the plain Levenshtein edit distance between a and b
// over runes, the primitive the fuzzy scoring formula's text_sim term is
// built from.
func textDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	lenA, lenB := len(ra), len(rb)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}
	if lenB < lenA {
		ra, rb = rb, ra
		lenA, lenB = lenB, lenA
	}

	prev := make([]int, lenA+1)
	curr := make([]int, lenA+1)
	for i := 0; i <= lenA; i++ {
		prev[i] = i
	}
	for j := 1; j <= lenB; j++ {
		curr[0] = j
		for i := 1; i <= lenA; i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
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

// textSimilarity returns 1 - distance/max_len, the text_sim term of the
// fuzzy scoring formula.
func textSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(textDistance(a, b))/float64(maxLen)
}

// DamerauUnrestricted exposes matchr's unrestricted Damerau-Levenshtein
// distance as a supplementary distance algorithm, for hosts that want a
// transposition-aware alternative to the plain Levenshtein used by the
// scoring formula itself.
func DamerauUnrestricted(a, b string) int {
	return matchr.DamerauLevenshtein(a, b)
}

// JaroWinklerSimilarity exposes matchr's Jaro-Winkler similarity, the same
// measure aliasstore.SuggestSpecies ranks by (it calls matchr directly).
func JaroWinklerSimilarity(a, b string) float64 {
	return matchr.JaroWinkler(a, b, true)
}
