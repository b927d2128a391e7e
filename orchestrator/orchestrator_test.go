package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/aliaspersist"
	"github.com/yvedd/voicetally-core/aliasstore"
	"github.com/yvedd/voicetally-core/matcher"
	"github.com/yvedd/voicetally-core/vtconfig"
)

func newTestEngine(t *testing.T, cfg vtconfig.Config) (*Engine, func()) {
	t.Helper()
	root, err := vtconfig.ResolveStorageRoot(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, root.EnsureDirs())

	store := aliasstore.New(root)
	pipeline := aliaspersist.New(root, store, 10*time.Millisecond, nil)
	speciesMap := map[string]alias.SpeciesNames{
		"101": {Canonical: "Aalscholver"},
		"205": {Canonical: "Koolmees"},
	}
	require.NoError(t, pipeline.SeedFromSpecies([]string{"101", "205"}, speciesMap))
	require.NoError(t, store.EnsureLoaded())

	m := matcher.New(store, matcher.FuzzyThreshold, 50)
	e := New(store, m, cfg, nil)
	return e, e.Close
}

func TestParseHypothesesDropsFilterPhrases(t *testing.T) {
	e, closeFn := newTestEngine(t, vtconfig.Defaults())
	defer closeFn()

	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "stop", Confidence: 0.9}}, &alias.MatchContext{}, nil, 0.4)
	assert.Equal(t, alias.ResultNoMatch, result.Kind)
	assert.Equal(t, "no_candidate", result.Source)
}

func TestParseHypothesesFastPathExactHit(t *testing.T) {
	e, closeFn := newTestEngine(t, vtconfig.Defaults())
	defer closeFn()

	ctx := &alias.MatchContext{TilesSpeciesIDs: map[string]struct{}{"205": {}}}
	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "koolmees", Confidence: 0.8}}, ctx, nil, 0.4)
	assert.Equal(t, alias.ResultAutoAccept, result.Kind)
	assert.Equal(t, "quick_exact", result.Source)
	assert.Equal(t, "205", result.Candidate.SpeciesID)
	assert.Equal(t, 0.9, result.Candidate.Score)
}

func TestParseHypothesesHeavyPathFuzzyHit(t *testing.T) {
	e, closeFn := newTestEngine(t, vtconfig.Defaults())
	defer closeFn()

	ctx := &alias.MatchContext{TilesSpeciesIDs: map[string]struct{}{"101": {}}}
	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "alsgolver", Confidence: 0.5}}, ctx, nil, 0.4)
	assert.Equal(t, alias.ResultAutoAccept, result.Kind)
	assert.Equal(t, "101", result.Candidate.SpeciesID)
}

func TestParseHypothesesTailExactSweep(t *testing.T) {
	e, closeFn := newTestEngine(t, vtconfig.Defaults())
	defer closeFn()

	hyps := []Hypothesis{
		{Text: "volkomen onzin", Confidence: 0.3},
		{Text: "nog meer onzin", Confidence: 0.3},
		{Text: "en nog wat onzin", Confidence: 0.3},
		{Text: "koolmees", Confidence: 0.2},
	}
	result := e.ParseHypotheses(context.Background(), hyps, &alias.MatchContext{}, nil, 0.4)
	assert.Equal(t, alias.ResultAutoAccept, result.Kind)
	assert.Equal(t, "quick_exact", result.Source)
	assert.Equal(t, "205", result.Candidate.SpeciesID)
}

func TestParseHypothesesNoCandidateIsNoMatch(t *testing.T) {
	e, closeFn := newTestEngine(t, vtconfig.Defaults())
	defer closeFn()

	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "volledig onherkenbaar gebrabbel", Confidence: 0.3}}, &alias.MatchContext{}, nil, 0.4)
	assert.Equal(t, alias.ResultNoMatch, result.Kind)
	assert.Equal(t, "no_candidate", result.Source)
}

func TestParseHypothesesTimeoutQueuesAndDelivers(t *testing.T) {
	cfg := vtconfig.Defaults()
	cfg.HeavyPathTimeoutMs = 0 // guarantees the goroutine race times out
	e, closeFn := newTestEngine(t, cfg)
	defer closeFn()

	var mu sync.Mutex
	var delivered *alias.MatchResult
	e.SetPendingResultListener(func(sessionID, token string, result alias.MatchResult) {
		mu.Lock()
		defer mu.Unlock()
		r := result
		delivered = &r
	})

	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "alsgolver", Confidence: 0.5}}, &alias.MatchContext{}, nil, 0.4)
	assert.Equal(t, alias.ResultNoMatch, result.Kind)
	assert.Equal(t, "queued", result.Source)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered != nil
	}, time.Second, 5*time.Millisecond)
}

func TestParseHypothesesSessionIsolationDropsStaleDelivery(t *testing.T) {
	cfg := vtconfig.Defaults()
	cfg.HeavyPathTimeoutMs = 0 // guarantees the goroutine race times out and queues
	cfg.PendingDrainTimeout = 200
	e, closeFn := newTestEngine(t, cfg)
	defer closeFn()

	var mu sync.Mutex
	var deliveredSessions []string
	e.SetPendingResultListener(func(sessionID, token string, result alias.MatchResult) {
		mu.Lock()
		defer mu.Unlock()
		deliveredSessions = append(deliveredSessions, sessionID)
	})

	e.StartSession("session-1")
	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "alsgolver", Confidence: 0.5}}, &alias.MatchContext{}, nil, 0.4)
	assert.Equal(t, "queued", result.Source)

	// Starting session-2 before the drain worker gets to the queued item
	// cancels session-1's context, so its eventual drain result must never
	// reach the listener (invariant: after start_session(n+1), no result
	// tagged with session n reaches the listener).
	e.StartSession("session-2")

	assert.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range deliveredSessions {
			if s == "session-1" {
				return true
			}
		}
		return false
	}, 300*time.Millisecond, 10*time.Millisecond)
}

func TestParseAfterStopListeningReturnsImmediately(t *testing.T) {
	cfg := vtconfig.Defaults()
	cfg.HeavyPathTimeoutMs = 5000 // would otherwise block for the full budget
	e, closeFn := newTestEngine(t, cfg)
	defer closeFn()

	e.StartSession("session-1")
	e.StopListening()

	start := time.Now()
	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "alsgolver", Confidence: 0.5}}, &alias.MatchContext{}, nil, 0.4)
	elapsed := time.Since(start)

	assert.Equal(t, alias.ResultNoMatch, result.Kind)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestParseHypothesesBufferFullFallsBackInline(t *testing.T) {
	cfg := vtconfig.Defaults()
	cfg.HeavyPathTimeoutMs = 0
	cfg.PendingBufferCap = 0
	cfg.PendingDrainTimeout = 0
	e, closeFn := newTestEngine(t, cfg)
	closeFn() // stop the drain worker so the channel send always falls through

	result := e.ParseHypotheses(context.Background(), []Hypothesis{{Text: "alsgolver", Confidence: 0.5}}, &alias.MatchContext{}, nil, 0.4)
	assert.Equal(t, alias.ResultNoMatch, result.Kind)
	assert.Equal(t, "no_candidate", result.Source)
}
