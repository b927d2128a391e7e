package alias

import (
	"fmt"

	"github.com/yvedd/voicetally-core/cologne"
	"github.com/yvedd/voicetally-core/ipa"
	"github.com/yvedd/voicetally-core/textnorm"
)

// Derive recomputes Norm, Cologne, and Phonemes from Text. It is called
// whenever a loader encounters an AliasData with blank derived fields
// (spec §3 invariant), and whenever new alias text is added at runtime.
func (a *AliasData) Derive() {
	a.Norm = textnorm.Normalize(a.Text)
	a.Cologne = cologne.Encode(a.Norm)
	a.Phonemes = ipa.Phonemize(a.Norm)
}

// EnsureDerived recomputes derived fields only when any of them is blank,
// leaving already-populated fields untouched (cheap path for records
// loaded from a cache that already carries the derived values).
func (a *AliasData) EnsureDerived() {
	if a.Norm == "" || a.Cologne == "" || a.Phonemes == "" {
		a.Derive()
	}
}

// Project computes the flat AliasIndex for an AliasMaster. It is a pure
// function: identical input produces byte-identical (field-for-field)
// output, and the result never aliases the master's slices.
func Project(master AliasMaster) AliasIndex {
	var records []AliasRecord
	for _, species := range master.Species {
		for i, a := range species.Aliases {
			a.EnsureDerived()
			records = append(records, AliasRecord{
				AliasID:   fmt.Sprintf("%s_%d", species.SpeciesID, i+1),
				SpeciesID: species.SpeciesID,
				Canonical: species.Canonical,
				Tilename:  species.Tilename,
				Alias:     a.Text,
				Norm:      a.Norm,
				Cologne:   a.Cologne,
				Phonemes:  a.Phonemes,
				Weight:    1.0,
				Source:    a.Source,
			})
		}
	}
	return AliasIndex{
		Version:   master.Version,
		Timestamp: master.Timestamp,
		Records:   records,
	}
}

// NewSpeciesEntry builds a SpeciesEntry whose Aliases always contains the
// canonical form (and the tilename, if present) as its first entries,
// satisfying the §3 invariant that aliases contains at least the canonical
// form.
func NewSpeciesEntry(speciesID, canonical, tilename string) SpeciesEntry {
	entry := SpeciesEntry{
		SpeciesID: speciesID,
		Canonical: canonical,
		Tilename:  tilename,
	}
	canonicalAlias := AliasData{Text: canonical, Source: SourceSeedCanonical}
	canonicalAlias.Derive()
	entry.Aliases = append(entry.Aliases, canonicalAlias)

	if tilename != "" && textnorm.Normalize(tilename) != canonicalAlias.Norm {
		tileAlias := AliasData{Text: tilename, Source: SourceSeedTilename}
		tileAlias.Derive()
		entry.Aliases = append(entry.Aliases, tileAlias)
	}
	return entry
}

// AddAlias appends alias text to a species entry if its normalised form is
// not already present (the §3 "norm values within a species are unique"
// invariant), returning whether an alias was actually added.
func (s *SpeciesEntry) AddAlias(text string, source Source) bool {
	norm := textnorm.Normalize(text)
	if norm == "" {
		return false
	}
	for _, existing := range s.Aliases {
		if existing.Norm == norm {
			return false
		}
	}
	a := AliasData{Text: text, Source: source}
	a.Derive()
	s.Aliases = append(s.Aliases, a)
	return true
}
