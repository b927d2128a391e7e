package matcher

import (
	"strings"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/aliasstore"
	"github.com/yvedd/voicetally-core/cologne"
	"github.com/yvedd/voicetally-core/ipa"
	"github.com/yvedd/voicetally-core/numwords"
	"github.com/yvedd/voicetally-core/textnorm"
)

// maxWindow is the largest phrase-segmentation window Phase A tries.
const maxWindow = 6

// FuzzyThreshold is the default minimum combined score accepted by Phase C.
const FuzzyThreshold = 0.40

// exactEarlyStopScore short-circuits the fuzzy scan once a window's best
// candidate is this close to a perfect match.
const exactEarlyStopScore = 0.9999

// Matcher runs the exact/fuzzy cascade against an aliasstore.Store.
type Matcher struct {
	store     *aliasstore.Store
	threshold float64
	shortlist int
}

// New builds a Matcher reading from store, accepting fuzzy candidates at or
// above threshold and requesting up to shortlist candidates per window from
// the store's Cologne pre-filter.
func New(store *aliasstore.Store, threshold float64, shortlist int) *Matcher {
	return &Matcher{store: store, threshold: threshold, shortlist: shortlist}
}

// Match runs the full exact+fuzzy cascade against a single ASR hypothesis.
func (m *Matcher) Match(hypothesis string, ctx *alias.MatchContext) alias.MatchResult {
	_, tokens := textnorm.NormalizeAndTokenize(hypothesis)
	if len(tokens) == 0 {
		return alias.NoMatch(hypothesis, "empty_hypothesis")
	}

	var matches []alias.MultiMatchEntry
	seenSpecies := make(map[string]struct{})

	i := 0
	for i < len(tokens) {
		window, width, amount, found := m.matchAt(tokens, i, ctx)
		if !found {
			i++
			continue
		}
		if _, dup := seenSpecies[window.Candidate.SpeciesID]; !dup {
			seenSpecies[window.Candidate.SpeciesID] = struct{}{}
			matches = append(matches, alias.MultiMatchEntry{
				Candidate: window.Candidate,
				Amount:    amount,
				Source:    window.Source,
			})
		}
		i += width
	}

	return assembleResult(hypothesis, matches)
}

// windowMatch carries one phrase window's best candidate and the source
// tag describing which rule produced it.
type windowMatch struct {
	Candidate alias.Candidate
	Source    string
}

// matchAt tries decreasing window sizes starting at position i and, on a
// hit, attaches a following count token. It returns the consumed width
// (in tokens, including any attached count) and whether a match was found.
func (m *Matcher) matchAt(tokens []string, i int, ctx *alias.MatchContext) (windowMatch, int, int, bool) {
	remaining := len(tokens) - i
	top := maxWindow
	if remaining < top {
		top = remaining
	}

	for w := top; w >= 1; w-- {
		windowTokens := tokens[i : i+w]
		if containsNumberWord(windowTokens) {
			continue
		}
		windowNorm := strings.Join(windowTokens, " ")

		if wm, ok := m.exactCascade(windowNorm, ctx); ok {
			amount, consumed := attachCount(tokens, i+w)
			return wm, w + consumed, amount, true
		}
		if wm, ok := m.fuzzyScore(windowNorm, ctx); ok {
			amount, consumed := attachCount(tokens, i+w)
			return wm, w + consumed, amount, true
		}
	}
	return windowMatch{}, 1, 1, false
}

// containsNumberWord reports whether any token in the window is a Dutch
// number word; such windows are skipped during segmentation (numbers are
// only ever consumed as a trailing count, never as part of a species
// phrase).
func containsNumberWord(tokens []string) bool {
	for _, t := range tokens {
		if numwords.IsNumberWord(t) {
			return true
		}
	}
	return false
}

// attachCount inspects the token immediately after a window match and, if
// it parses as a cardinal, consumes it as the amount.
func attachCount(tokens []string, next int) (amount int, consumed int) {
	if next >= len(tokens) {
		return 1, 0
	}
	if n, ok := numwords.ParseNumberWord(tokens[next]); ok {
		if n < 1 {
			n = 1
		}
		return n, 1
	}
	return 1, 0
}

// exactCascade tries the four exact rules in priority order.
func (m *Matcher) exactCascade(windowNorm string, ctx *alias.MatchContext) (windowMatch, bool) {
	records := m.store.FindExact(windowNorm)
	if len(records) == 0 {
		return windowMatch{}, false
	}

	// Rule 1/2: canonical-name equality.
	for _, rec := range records {
		if textnorm.Normalize(rec.Canonical) != windowNorm {
			continue
		}
		if ctx.InTiles(rec.SpeciesID) {
			return candidateMatch(rec, ctx, "exact_canonical_tiles", 1.0), true
		}
	}
	for _, rec := range records {
		if textnorm.Normalize(rec.Canonical) != windowNorm {
			continue
		}
		if ctx.InSite(rec.SpeciesID) && !ctx.InTiles(rec.SpeciesID) {
			return candidateMatch(rec, ctx, "exact_canonical_site", 1.0), true
		}
	}
	// Rule 3/4: any alias norm equality.
	for _, rec := range records {
		if ctx.InTiles(rec.SpeciesID) {
			return candidateMatch(rec, ctx, "exact_alias_tiles", 1.0), true
		}
	}
	for _, rec := range records {
		if ctx.InSite(rec.SpeciesID) {
			return candidateMatch(rec, ctx, "exact_alias_site", 1.0), true
		}
	}
	return windowMatch{}, false
}

// fuzzyScore requests a Cologne-prefiltered shortlist and rescales each
// survivor with the full hybrid formula, keeping the single best candidate.
func (m *Matcher) fuzzyScore(windowNorm string, ctx *alias.MatchContext) (windowMatch, bool) {
	shortlist := m.store.FindFuzzyCandidates(windowNorm, m.shortlist, 0)

	var best windowMatch
	bestScore := -1.0
	found := false

	for _, sc := range shortlist {
		rec := sc.Record
		if numwords.IsNumberCandidate(rec.Norm, rec.Cologne, rec.Phonemes) {
			continue
		}

		textSim := textSimilarity(windowNorm, rec.Norm)
		cologneSim := cologne.Similarity(windowNorm, rec.Norm)
		phonemeSim := 0.0
		if rec.Phonemes != "" {
			phonemeSim = ipa.PhonemeSimilarity(ipa.Phonemize(windowNorm), rec.Phonemes)
		}
		base := 0.45*textSim + 0.35*cologneSim + 0.20*phonemeSim

		inRecent := 0.0
		if ctx.InRecent(rec.SpeciesID) {
			inRecent = 1.0
		}
		inTiles := 0.0
		if ctx.InTiles(rec.SpeciesID) {
			inTiles = 1.0
		}
		inSite := 0.0
		if ctx.InSite(rec.SpeciesID) {
			inSite = 1.0
		}
		prior := 0.25*inRecent + 0.25*inTiles + 0.15*inSite
		if prior > 0.6 {
			prior = 0.6
		}
		score := 0.8*base + 0.2*(prior/0.6)

		if score < m.threshold {
			continue
		}
		if !betterCandidate(score, rec.SpeciesID, ctx.InTiles(rec.SpeciesID), bestScore, best.Candidate.SpeciesID, best.Candidate.IsInTiles, found) {
			continue
		}

		source := "fuzzy_site"
		if ctx.InTiles(rec.SpeciesID) {
			source = "fuzzy_tiles"
		}
		best = candidateMatch(rec, ctx, source, score)
		bestScore = score
		found = true

		if score >= exactEarlyStopScore {
			break
		}
	}

	return best, found
}

// betterCandidate applies the tie-break rule: higher score wins; on an
// exact tie, is_in_tiles wins; on a further tie, smaller species id wins.
func betterCandidate(score float64, speciesID string, inTiles bool, bestScore float64, bestSpeciesID string, bestInTiles bool, haveBest bool) bool {
	if !haveBest {
		return true
	}
	if score > bestScore {
		return true
	}
	if score < bestScore {
		return false
	}
	if inTiles != bestInTiles {
		return inTiles
	}
	return alias.CompareSpeciesIDs(speciesID, bestSpeciesID) < 0
}

func candidateMatch(rec alias.AliasRecord, ctx *alias.MatchContext, source string, score float64) windowMatch {
	displayName := rec.Canonical
	return windowMatch{
		Candidate: alias.Candidate{
			SpeciesID:   rec.SpeciesID,
			DisplayName: displayName,
			Score:       score,
			IsInTiles:   ctx.InTiles(rec.SpeciesID),
			Source:      source,
		},
		Source: source,
	}
}

// assembleResult applies Phase E: zero matches -> NoMatch, more than one
// distinct species -> MultiMatch, exactly one in tiles -> AutoAccept,
// exactly one elsewhere -> AutoAcceptAddPopup.
func assembleResult(hypothesis string, matches []alias.MultiMatchEntry) alias.MatchResult {
	switch len(matches) {
	case 0:
		return alias.NoMatch(hypothesis, "no_candidate")
	case 1:
		m := matches[0]
		kind := alias.ResultAutoAcceptAddPopup
		if m.Candidate.IsInTiles {
			kind = alias.ResultAutoAccept
		}
		return alias.MatchResult{
			Kind:       kind,
			Hypothesis: hypothesis,
			Source:     m.Source,
			Candidate:  m.Candidate,
			Amount:     m.Amount,
		}
	default:
		return alias.MatchResult{
			Kind:       alias.ResultMultiMatch,
			Hypothesis: hypothesis,
			Source:     "multi_match",
			Matches:    matches,
		}
	}
}
