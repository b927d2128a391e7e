package cologne

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeEmpty(t *testing.T) {
	assert.Equal(t, "", Encode(""))
}

func TestEncodeDeterministic(t *testing.T) {
	a := Encode("koolmees")
	b := Encode("koolmees")
	assert.Equal(t, a, b)
	assert.NotEmpty(t, a)
}

func TestEncodeCollapsesDuplicateDigits(t *testing.T) {
	// "mm" both map to class 6; they must collapse to a single "6".
	code := Encode("mmaan")
	assert.NotContains(t, code, "66")
}

func TestEncodeNoError(t *testing.T) {
	// Non-letter/digit input (already normalised text has none, but a raw
	// string with symbols must still never panic and returns best-effort).
	assert.NotPanics(t, func() { Encode("123") })
}

func TestSimilarityIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("koolmees", "koolmees"))
}

func TestSimilarityBothEmptyIsOne(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
}

func TestSimilarityCloseSpellingsScoreHigh(t *testing.T) {
	// "alsgolver" is a near-homophone typo of "aalscholver" used in spec
	// scenario S5; their Cologne similarity should be well above the fuzzy
	// acceptance threshold of 0.40.
	score := Similarity("alsgolver", "aalscholver")
	assert.GreaterOrEqual(t, score, 0.40)
}

func TestSimilarityRange(t *testing.T) {
	score := Similarity("roodborst", "kauw")
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}
