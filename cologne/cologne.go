// Package cologne implements a Dutch-adapted Kölner Phonetik (Cologne
// phonetic) encoder and the edit-distance similarity derived from it.
//
// The Cologne algorithm assigns each consonant a digit class and drops
// vowels except as positional conditioners (the class chosen for a letter
// can depend on its neighbours). This port keeps the original German digit
// classes, since Dutch and German share almost all of the relevant
// consonant clusters (ch, sch, ng, z, c, etc.). There is no separate
// digraph rule: vowels, "j" and "y" all encode to nothing, so the Dutch
// vowel digraphs "ij", "ei" and "ui" contribute no digits.
package cologne

import "github.com/yvedd/voicetally-core/textnorm"

// class values. classNone (-1) marks a letter that encodes to nothing on
// its own (pure vowels, h); letters sharing a class collapse to the same
// digit.
const (
	classNone = -1
)

// Encode produces the Cologne code for an already-normalised string. Encode
// returns "" for empty input or input containing no encodable letters;
// encoding never fails with an error (spec §4.2).
func Encode(normalised string) string {
	runes := []rune(normalised)
	n := len(runes)
	if n == 0 {
		return ""
	}

	codes := make([]int, 0, n)
	for i := 0; i < n; i++ {
		c := runes[i]
		var prev, next rune
		if i > 0 {
			prev = runes[i-1]
		}
		if i+1 < n {
			next = runes[i+1]
		}
		if c == 'x' && !(prev == 'c' || prev == 'k' || prev == 'q') {
			// "x" not preceded by a hard-c/k/q sound encodes as "ks".
			codes = append(codes, 4, 8)
			continue
		}
		code := classify(c, prev, next, i == 0)
		if code == classNone {
			continue
		}
		codes = append(codes, code)
	}
	if len(codes) == 0 {
		return ""
	}

	// Collapse adjacent duplicate codes (Cologne rule: repeated digits
	// collapse to one), then drop all digit-0 codes except a digit-0 in
	// first position... Dutch/German Cologne variants use 0 only for the
	// initial vowel class which we already skip via classNone, so no
	// further zero-handling is needed here.
	out := make([]byte, 0, len(codes))
	last := -1
	for _, code := range codes {
		if code == last {
			continue
		}
		out = append(out, byte('0'+code))
		last = code
	}
	return string(out)
}

// classify returns the Cologne digit class for rune c given its
// predecessor/successor (both may be zero value when absent) and whether c
// is the first letter of the word (some consonants, notably C, classify
// differently in initial position).
func classify(c, prev, next rune, isFirst bool) int {
	switch c {
	case 'a', 'e', 'i', 'j', 'o', 'u', 'y':
		return classNone
	case 'b':
		return 1
	case 'p':
		if next == 'h' {
			return 3
		}
		return 1
	case 'd', 't':
		if next == 'c' || next == 's' || next == 'z' {
			return 8
		}
		return 2
	case 'f', 'v', 'w':
		return 3
	case 'g', 'k', 'q':
		return 4
	case 'c':
		if isFirst {
			switch next {
			case 'a', 'h', 'k', 'l', 'o', 'q', 'r', 'u', 'x':
				return 4
			default:
				return 8
			}
		}
		switch prev {
		case 's', 'z':
			return 8
		}
		switch next {
		case 'a', 'h', 'k', 'o', 'q', 'u', 'x':
			return 4
		default:
			return 8
		}
	case 'x':
		// reached only when preceded by c/k/q (the general case is handled
		// in Encode before classify is called).
		return 8
	case 'l':
		return 5
	case 'm', 'n':
		return 6
	case 'r':
		return 7
	case 's', 'z', 'ß':
		return 8
	case 'h':
		return classNone
	default:
		return classNone
	}
}

// Similarity returns a normalised similarity in [0,1] derived from the edit
// distance between the Cologne codes of a and b (both already-normalised
// strings). Two strings whose codes are both empty are defined as identical
// (score 1.0); a code present on only one side scores against the other's
// length.
func Similarity(a, b string) float64 {
	ca, cb := Encode(a), Encode(b)
	if ca == cb {
		return 1.0
	}
	maxLen := len(ca)
	if len(cb) > maxLen {
		maxLen = len(cb)
	}
	if maxLen == 0 {
		return 1.0
	}
	d := levenshtein(ca, cb)
	score := 1.0 - float64(d)/float64(maxLen)
	if score < 0 {
		score = 0
	}
	return score
}

// levenshtein computes the classic edit distance over bytes (Cologne codes
// are ASCII digit strings, so byte-wise comparison is exact and avoids the
// overhead of rune conversion). Uses the same two-row dynamic-programming
// shape as the generic text-distance helper.
func levenshtein(a, b string) int {
	lenA, lenB := len(a), len(b)
	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}
	if lenB < lenA {
		a, b = b, a
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
			if a[i-1] == b[j-1] {
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

// EncodeText normalises text and encodes it in one call.
func EncodeText(text string) string {
	return Encode(textnorm.Normalize(text))
}
