package numwords

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yvedd/voicetally-core/cologne"
	"github.com/yvedd/voicetally-core/ipa"
)

func TestParseNumberWordUnits(t *testing.T) {
	n, ok := ParseNumberWord("vijf")
	assert.True(t, ok)
	assert.Equal(t, 5, n)
}

func TestParseNumberWordDecades(t *testing.T) {
	n, ok := ParseNumberWord("zestig")
	assert.True(t, ok)
	assert.Equal(t, 60, n)
}

func TestParseNumberWordHundred(t *testing.T) {
	n, ok := ParseNumberWord("honderd")
	assert.True(t, ok)
	assert.Equal(t, 100, n)
}

func TestParseNumberWordDigits(t *testing.T) {
	n, ok := ParseNumberWord("12")
	assert.True(t, ok)
	assert.Equal(t, 12, n)
}

func TestParseNumberWordRejectsOutOfRangeDigits(t *testing.T) {
	_, ok := ParseNumberWord("101")
	assert.False(t, ok)
}

func TestParseNumberWordRejectsNonNumber(t *testing.T) {
	_, ok := ParseNumberWord("merel")
	assert.False(t, ok)
}

func TestIsNumberWord(t *testing.T) {
	assert.True(t, IsNumberWord("drie"))
	assert.False(t, IsNumberWord("koolmees"))
}

func TestIsNumberCologneMatchesKnownWord(t *testing.T) {
	assert.True(t, IsNumberCologne(cologne.Encode("vijf")))
}

func TestIsNumberCologneRejectsUnrelatedCode(t *testing.T) {
	assert.False(t, IsNumberCologne("999999"))
}

func TestIsNumberPhonemeExactMatch(t *testing.T) {
	assert.True(t, IsNumberPhoneme(ipa.Phonemize("een")))
}

func TestIsNumberCandidateCatchesAnyChannel(t *testing.T) {
	assert.True(t, IsNumberCandidate("twee", "", ""))
	assert.False(t, IsNumberCandidate("koolmees", cologne.Encode("koolmees"), ipa.Phonemize("koolmees")))
}
