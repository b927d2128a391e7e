// Package alias holds the data model shared by every component of the
// matching engine: the durable master/index representations, the runtime
// match context, and the closed MatchResult union.
package alias

// Source identifies how an AliasData entry entered the system.
type Source string

const (
	SourceSeedCanonical     Source = "seed_canonical"
	SourceSeedTilename      Source = "seed_tilename"
	SourceUserFieldTraining Source = "user_field_training"
)

// AliasData is a single recognisable surface form for a species.
//
// Norm, Cologne, and Phonemes are derived deterministically from Text; a
// loader that encounters blank derived fields must recompute them (see
// AliasData.Derive).
type AliasData struct {
	Text      string `json:"text"`
	Norm      string `json:"norm"`
	Cologne   string `json:"cologne"`
	Phonemes  string `json:"phonemes"`
	Source    Source `json:"source"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SpeciesEntry is one species and its ordered aliases.
type SpeciesEntry struct {
	SpeciesID string      `json:"species_id"`
	Canonical string      `json:"canonical"`
	Tilename  string      `json:"tilename,omitempty"`
	Aliases   []AliasData `json:"aliases"`
}

// AliasMaster is the durable, human-readable master document.
type AliasMaster struct {
	Version   string         `json:"version"`
	Timestamp string         `json:"timestamp"`
	Species   []SpeciesEntry `json:"species"`
}

// AliasRecord is the flattened runtime row derived from an AliasMaster by
// Project. AliasID has the form "{species_id}_{1-based index}".
type AliasRecord struct {
	AliasID   string  `json:"alias_id"`
	SpeciesID string  `json:"species_id"`
	Canonical string  `json:"canonical"`
	Tilename  string  `json:"tilename,omitempty"`
	Alias     string  `json:"alias"`
	Norm      string  `json:"norm"`
	Cologne   string  `json:"cologne,omitempty"`
	Phonemes  string  `json:"phonemes,omitempty"`
	Weight    float64 `json:"weight"`
	Source    Source  `json:"source"`
}

// AliasIndex is the binary/in-memory flattened form of an AliasMaster.
type AliasIndex struct {
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Records   []AliasRecord `json:"records"`
}

// MatchContext carries the read-only sets and lookup maps a single match
// call needs. Callers must not mutate any field while a match is in flight;
// all fields are safe for concurrent reads.
type MatchContext struct {
	TilesSpeciesIDs map[string]struct{}
	SiteAllowedIDs  map[string]struct{}
	RecentIDs       map[string]struct{}
	SpeciesByID     map[string]SpeciesNames
}

// SpeciesNames is the (canonical, tilename) pair MatchContext.SpeciesByID maps to.
type SpeciesNames struct {
	Canonical string
	Tilename  string
}

// InTiles reports whether id is present in TilesSpeciesIDs.
func (c *MatchContext) InTiles(id string) bool {
	if c == nil || c.TilesSpeciesIDs == nil {
		return false
	}
	_, ok := c.TilesSpeciesIDs[id]
	return ok
}

// InSite reports whether id is present in SiteAllowedIDs.
func (c *MatchContext) InSite(id string) bool {
	if c == nil || c.SiteAllowedIDs == nil {
		return false
	}
	_, ok := c.SiteAllowedIDs[id]
	return ok
}

// InRecent reports whether id is present in RecentIDs.
func (c *MatchContext) InRecent(id string) bool {
	if c == nil || c.RecentIDs == nil {
		return false
	}
	_, ok := c.RecentIDs[id]
	return ok
}

// Candidate is a scored species candidate produced by the matcher.
type Candidate struct {
	SpeciesID   string
	DisplayName string
	Score       float64
	IsInTiles   bool
	Source      string
}

// ResultKind discriminates the MatchResult union.
type ResultKind string

const (
	ResultAutoAccept         ResultKind = "auto_accept"
	ResultAutoAcceptAddPopup ResultKind = "auto_accept_add_popup"
	ResultSuggestionList     ResultKind = "suggestion_list"
	ResultMultiMatch         ResultKind = "multi_match"
	ResultNoMatch            ResultKind = "no_match"
)

// MultiMatchEntry is one element of a MultiMatch result.
type MultiMatchEntry struct {
	Candidate Candidate
	Amount    int
	Source    string
}

// MatchResult is a closed tagged union over the five match outcomes
// described in spec §3. Exactly one "slot" — selected by Kind — carries
// data; callers must switch on Kind before reading the rest.
type MatchResult struct {
	Kind       ResultKind
	Hypothesis string
	Source     string

	// Populated when Kind is ResultAutoAccept or ResultAutoAcceptAddPopup.
	Candidate Candidate
	Amount    int

	// Populated when Kind is ResultSuggestionList.
	Candidates []Candidate

	// Populated when Kind is ResultMultiMatch.
	Matches []MultiMatchEntry
}

// NoMatch builds a NoMatch result tagged with the given source reason.
func NoMatch(hypothesis, source string) MatchResult {
	return MatchResult{Kind: ResultNoMatch, Hypothesis: hypothesis, Source: source}
}
