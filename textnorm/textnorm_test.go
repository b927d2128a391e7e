package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"  Koolmees   vijf ",
		"Bïïzärd!! 3x",
		"",
		"Café-Tuinfluiter_42",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", in)
	}
}

func TestNormalizeDiacriticFold(t *testing.T) {
	assert.Equal(t, "aalscholver", Normalize("Äälschölver"))
	assert.Equal(t, "boerenzwaluw", Normalize("Boerenzwàlüw"))
	assert.Equal(t, "fazant", Normalize("Fàzânt"))
}

func TestNormalizeCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "koolmees vijf", Normalize("  koolmees,,,  vijf!! "))
}

func TestTokenizeSplitsAndDropsEmpty(t *testing.T) {
	tokens := Tokenize("koolmees vijf boertje drie")
	assert.Equal(t, []string{"koolmees", "vijf", "boertje", "drie"}, tokens)
}

func TestTokenizeEmpty(t *testing.T) {
	assert.Nil(t, Tokenize(""))
}

func TestNormalizeAndTokenize(t *testing.T) {
	norm, tokens := NormalizeAndTokenize("Koolmees VIJF")
	assert.Equal(t, "koolmees vijf", norm)
	assert.Equal(t, []string{"koolmees", "vijf"}, tokens)
}
