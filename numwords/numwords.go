// Package numwords recognises Dutch number words (and bare digit strings)
// and filters candidate phonetic codes that are likely to represent a
// spoken count rather than a species name.
package numwords

import (
	"strconv"
	"strings"

	"github.com/yvedd/voicetally-core/cologne"
	"github.com/yvedd/voicetally-core/ipa"
)

// units holds the Dutch cardinals for 0-20.
var units = map[string]int{
	"nul": 0, "een": 1, "één": 1, "twee": 2, "drie": 3, "vier": 4, "vijf": 5,
	"zes": 6, "zeven": 7, "acht": 8, "negen": 9, "tien": 10,
	"elf": 11, "twaalf": 12, "dertien": 13, "veertien": 14, "vijftien": 15,
	"zestien": 16, "zeventien": 17, "achttien": 18, "negentien": 19,
	"twintig": 20,
}

// decades holds the Dutch tens words 30-90.
var decades = map[string]int{
	"dertig": 30, "veertig": 40, "vijftig": 50, "zestig": 60,
	"zeventig": 70, "tachtig": 80, "negentig": 90,
}

const hundred = "honderd"

// ParseNumberWord attempts to parse a single already-normalised token as a
// Dutch cardinal word or a bare digit string in [0,100]. It does not handle
// compound phrases like "eenentwintig" (spoken counts in the target domain
// are small and almost always spoken as isolated words or digits).
func ParseNumberWord(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	if n, ok := units[token]; ok {
		return n, true
	}
	if n, ok := decades[token]; ok {
		return n, true
	}
	if token == hundred {
		return 100, true
	}
	if n, err := strconv.Atoi(token); err == nil && n >= 0 && n <= 100 {
		return n, true
	}
	return 0, false
}

// IsNumberWord reports whether token parses as a Dutch number word or digit
// string.
func IsNumberWord(token string) bool {
	_, ok := ParseNumberWord(token)
	return ok
}

// numberColognes is precomputed once from the word lists above so
// IsNumberCologne can do a direct set lookup.
var numberColognes = buildNumberColognes()

func buildNumberColognes() map[string]struct{} {
	set := make(map[string]struct{})
	add := func(word string) {
		set[cologne.Encode(word)] = struct{}{}
	}
	for w := range units {
		add(w)
	}
	for w := range decades {
		add(w)
	}
	add(hundred)
	return set
}

// IsNumberCologne reports whether code exactly matches the Cologne code of
// a known Dutch number word.
func IsNumberCologne(code string) bool {
	if code == "" {
		return false
	}
	_, ok := numberColognes[code]
	return ok
}

// numberPhonemes are the IPA phonemisations of the low cardinals most
// likely to be misheard as species name fragments (spec §4.4 examples:
// "vijf", "een", "twee", "drie").
var numberPhonemes = []string{
	ipa.Phonemize("vijf"),
	ipa.Phonemize("een"),
	ipa.Phonemize("twee"),
	ipa.Phonemize("drie"),
	ipa.Phonemize("vier"),
	ipa.Phonemize("zes"),
	ipa.Phonemize("zeven"),
	ipa.Phonemize("acht"),
	ipa.Phonemize("negen"),
	ipa.Phonemize("tien"),
}

// IsNumberPhoneme reports whether phonemes either exactly matches, or is
// within an edit distance of 1 (token-wise) of, a known number word's
// phonemisation.
func IsNumberPhoneme(phonemes string) bool {
	if phonemes == "" {
		return false
	}
	for _, np := range numberPhonemes {
		if np == "" {
			continue
		}
		if np == phonemes {
			return true
		}
		if ipa.PhonemeDistance(np, phonemes) <= 1 {
			return true
		}
	}
	return false
}

// IsNumberCandidate combines the textual, Cologne, and phoneme checks: a
// token/record is treated as a number-word candidate (and excluded from
// species-name matching) if it passes any of the three.
func IsNumberCandidate(norm, cologneCode, phonemes string) bool {
	if IsNumberWord(strings.TrimSpace(norm)) {
		return true
	}
	if IsNumberCologne(cologneCode) {
		return true
	}
	return IsNumberPhoneme(phonemes)
}
