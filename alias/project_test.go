package alias

import "testing"

func TestNewSpeciesEntryIncludesCanonicalAndTilename(t *testing.T) {
	entry := NewSpeciesEntry("205", "Koolmees", "Koolmeesje")
	if len(entry.Aliases) != 2 {
		t.Fatalf("expected canonical + tilename aliases, got %d", len(entry.Aliases))
	}
	if entry.Aliases[0].Text != "Koolmees" || entry.Aliases[0].Source != SourceSeedCanonical {
		t.Fatalf("expected first alias to be the canonical seed, got %+v", entry.Aliases[0])
	}
	if entry.Aliases[1].Text != "Koolmeesje" || entry.Aliases[1].Source != SourceSeedTilename {
		t.Fatalf("expected second alias to be the tilename seed, got %+v", entry.Aliases[1])
	}
}

func TestNewSpeciesEntrySkipsDuplicateTilename(t *testing.T) {
	entry := NewSpeciesEntry("205", "Koolmees", "koolmees")
	if len(entry.Aliases) != 1 {
		t.Fatalf("expected tilename identical to canonical (post-normalisation) to be skipped, got %d aliases", len(entry.Aliases))
	}
}

func TestSpeciesEntryAddAliasDedupesByNorm(t *testing.T) {
	entry := NewSpeciesEntry("205", "Koolmees", "")
	added := entry.AddAlias("koolmees", SourceUserFieldTraining)
	if added {
		t.Fatalf("expected duplicate norm to be rejected")
	}
	added = entry.AddAlias("Pimpelmeesje", SourceUserFieldTraining)
	if !added {
		t.Fatalf("expected distinct alias to be added")
	}
	if len(entry.Aliases) != 2 {
		t.Fatalf("expected 2 aliases after one accepted addition, got %d", len(entry.Aliases))
	}
}

func TestSpeciesEntryAddAliasRejectsBlank(t *testing.T) {
	entry := NewSpeciesEntry("205", "Koolmees", "")
	if entry.AddAlias("   ", SourceUserFieldTraining) {
		t.Fatalf("expected blank-after-normalisation alias text to be rejected")
	}
}

func TestProjectFlattensSpeciesIntoRecordsWithSequentialAliasIDs(t *testing.T) {
	master := AliasMaster{
		Version:   "2.1",
		Timestamp: "2026-01-01T00:00:00Z",
		Species: []SpeciesEntry{
			NewSpeciesEntry("101", "Aalscholver", ""),
		},
	}
	idx := Project(master)
	if len(idx.Records) != 1 {
		t.Fatalf("expected 1 flattened record, got %d", len(idx.Records))
	}
	rec := idx.Records[0]
	if rec.AliasID != "101_1" {
		t.Fatalf("expected alias id '101_1', got %q", rec.AliasID)
	}
	if rec.Norm == "" || rec.Cologne == "" || rec.Phonemes == "" {
		t.Fatalf("expected derived fields to be populated, got %+v", rec)
	}
}

func TestProjectDoesNotAliasMasterSlices(t *testing.T) {
	master := AliasMaster{Species: []SpeciesEntry{NewSpeciesEntry("101", "Aalscholver", "")}}
	idx := Project(master)
	idx.Records[0].Canonical = "mutated"
	if master.Species[0].Canonical == "mutated" {
		t.Fatalf("expected Project's output not to alias the master's data")
	}
}

func TestAliasDataEnsureDerivedLeavesPopulatedFieldsUntouched(t *testing.T) {
	data := AliasData{Text: "Koolmees", Norm: "precomputed", Cologne: "x", Phonemes: "y"}
	data.EnsureDerived()
	if data.Norm != "precomputed" {
		t.Fatalf("expected EnsureDerived to leave populated Norm untouched, got %q", data.Norm)
	}
}

func TestNoMatchBuildsNoMatchResult(t *testing.T) {
	result := NoMatch("onzin", "no_candidate")
	if result.Kind != ResultNoMatch {
		t.Fatalf("expected ResultNoMatch, got %v", result.Kind)
	}
	if result.Source != "no_candidate" || result.Hypothesis != "onzin" {
		t.Fatalf("unexpected NoMatch fields: %+v", result)
	}
}
