package voicetally

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/orchestrator"
	"github.com/yvedd/voicetally-core/vtconfig"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := vtconfig.Defaults()
	cfg.DebounceMs = 10
	e, err := New(cfg, t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(e.Close)

	speciesMap := map[string]alias.SpeciesNames{
		"101": {Canonical: "Aalscholver"},
		"205": {Canonical: "Koolmees"},
	}
	require.NoError(t, e.SeedSpecies([]string{"101", "205"}, speciesMap))
	require.NoError(t, e.Initialize(context.Background()))
	return e
}

func TestEngineInitializeLoadsSeededSpecies(t *testing.T) {
	e := newTestEngine(t)
	species := e.GetAllSpecies()
	assert.Equal(t, "Aalscholver", species["101"])
	assert.Equal(t, "Koolmees", species["205"])
}

func TestEngineAddAliasRejectsEmptyInput(t *testing.T) {
	e := newTestEngine(t)
	assert.False(t, e.AddAlias("", "kol", "Koolmees", ""))
	assert.False(t, e.AddAlias("205", "", "Koolmees", ""))
}

func TestEngineAddAliasIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	assert.True(t, e.AddAlias("205", "kolmeesje", "Koolmees", ""))
	assert.True(t, e.AddAlias("205", "kolmeesje", "Koolmees", "")) // no-op, still reports success

	time.Sleep(30 * time.Millisecond) // let the debounced rebuild settle
	result := e.Match("kolmeesje", &alias.MatchContext{TilesSpeciesIDs: map[string]struct{}{"205": {}}})
	assert.Equal(t, alias.ResultAutoAccept, result.Kind)
}

func TestEngineMatchExactInTiles(t *testing.T) {
	e := newTestEngine(t)
	result := e.Match("koolmees", &alias.MatchContext{TilesSpeciesIDs: map[string]struct{}{"205": {}}})
	assert.Equal(t, alias.ResultAutoAccept, result.Kind)
	assert.Equal(t, "205", result.Candidate.SpeciesID)
}

func TestEngineParseHypothesesFastPath(t *testing.T) {
	e := newTestEngine(t)
	ctx := &alias.MatchContext{TilesSpeciesIDs: map[string]struct{}{"101": {}}}
	hyps := []orchestrator.Hypothesis{{Text: "aalscholver", Confidence: 0.9}}
	result := e.ParseHypotheses(context.Background(), hyps, ctx, nil, 0.4)
	assert.Equal(t, alias.ResultAutoAccept, result.Kind)
	assert.Equal(t, "101", result.Candidate.SpeciesID)
}

func TestEngineRecordUseAndForceRebuild(t *testing.T) {
	e := newTestEngine(t)
	e.StartSession("session-1")
	e.RecordUse("205")
	e.RecordUse("205")

	require.NoError(t, e.ForceRebuild())
	species := e.GetAllSpecies()
	assert.Contains(t, species, "205")
}

func TestEngineRegenerateIfNeededSucceedsWithoutSourceFiles(t *testing.T) {
	e := newTestEngine(t)
	assert.NoError(t, e.RegenerateIfNeeded(nil))
}

func TestEngineStopListeningCancelsOrchestratorSession(t *testing.T) {
	e := newTestEngine(t)
	e.StartSession("session-1")
	e.StopListening()

	ctx := &alias.MatchContext{TilesSpeciesIDs: map[string]struct{}{"101": {}}}
	result := e.ParseHypotheses(context.Background(), []orchestrator.Hypothesis{{Text: "aalscholver", Confidence: 0.9}}, ctx, nil, 0.4)
	assert.Equal(t, alias.ResultAutoAccept, result.Kind) // fast path is unaffected by session cancellation
}
