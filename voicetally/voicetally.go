// Package voicetally is the public facade the embedding host talks to: it
// composes the alias store, the persistence pipeline, the matching
// cascade, the N-best orchestrator, and the usage tracker behind the
// external interface described by the matching engine's design (§6).
package voicetally

import (
	"context"
	"time"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/aliaspersist"
	"github.com/yvedd/voicetally-core/aliasstore"
	"github.com/yvedd/voicetally-core/matcher"
	"github.com/yvedd/voicetally-core/orchestrator"
	"github.com/yvedd/voicetally-core/usage"
	"github.com/yvedd/voicetally-core/vtconfig"
	"github.com/yvedd/voicetally-core/vtlog"
)

// Engine is the single exported type a host constructs and drives. It
// owns no goroutines of its own beyond the orchestrator's pending-buffer
// worker, started in New and stopped by Close.
type Engine struct {
	cfg    vtconfig.Config
	root   vtconfig.StorageRoot
	logger *vtlog.Logger

	store    *aliasstore.Store
	pipeline *aliaspersist.Pipeline
	matcher  *matcher.Matcher
	speech   *orchestrator.Engine
	usage    *usage.Store

	sessionID string
}

// New builds an Engine bound to hostStorageRoot, the host's writable data
// directory. logger may be nil; a nil logger silently disables audit
// logging and the orchestrator's structured match-attempt lines.
func New(cfg vtconfig.Config, hostStorageRoot string, logger *vtlog.Logger) (*Engine, error) {
	root, err := vtconfig.ResolveStorageRoot(hostStorageRoot)
	if err != nil {
		return nil, err
	}

	store := aliasstore.New(root)
	pipeline := aliaspersist.New(root, store, time.Duration(cfg.DebounceMs)*time.Millisecond, logger)
	m := matcher.New(store, cfg.FuzzyThreshold, cfg.FuzzyShortlist)
	speech := orchestrator.New(store, m, cfg, logger)

	return &Engine{
		cfg:      cfg,
		root:     root,
		logger:   logger,
		store:    store,
		pipeline: pipeline,
		matcher:  m,
		speech:   speech,
		usage:    usage.New(),
	}, nil
}

// Initialize ensures the persisted directory layout exists and loads the
// alias index from the priority chain (cache, serverdata, optimized
// binaries, human-readable master). A host with no master on disk yet
// should call SeedSpecies (or AddAlias once per species) before relying on
// matching; Initialize itself never fabricates species data.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.root.EnsureDirs(); err != nil {
		return err
	}
	if err := e.store.EnsureLoaded(); err != nil {
		return err
	}
	e.usage.OpenSession(e.sessionID)
	return nil
}

// SeedSpecies writes an initial master built from speciesIDs/speciesMap
// and synchronously projects every persisted artefact, for hosts bootstrapping
// a brand-new storage root.
func (e *Engine) SeedSpecies(speciesIDs []string, speciesMap map[string]alias.SpeciesNames) error {
	return e.pipeline.SeedFromSpecies(speciesIDs, speciesMap)
}

// AddAlias records a new surface form for speciesID. It is idempotent —
// adding the same (species, alias) pair twice is a no-op — and returns
// false only on outright I/O failure or empty input.
func (e *Engine) AddAlias(speciesID, aliasText, canonical, tilename string) bool {
	if speciesID == "" || aliasText == "" || canonical == "" {
		return false
	}
	if err := e.pipeline.AddAlias(speciesID, aliasText, canonical, tilename); err != nil {
		if e.logger != nil {
			e.logger.WithError(err).Warn("add_alias failed")
		}
		return false
	}
	return true
}

// GetAllSpecies returns every species id mapped to its canonical name,
// derived from the currently loaded index.
func (e *Engine) GetAllSpecies() map[string]string {
	idx := e.store.Snapshot()
	out := make(map[string]string, len(idx.Records))
	for _, rec := range idx.Records {
		if _, ok := out[rec.SpeciesID]; !ok {
			out[rec.SpeciesID] = rec.Canonical
		}
	}
	return out
}

// Match runs the exact/fuzzy cascade against a single hypothesis.
func (e *Engine) Match(hypothesis string, matchCtx *alias.MatchContext) alias.MatchResult {
	return e.matcher.Match(hypothesis, matchCtx)
}

// ParseHypotheses runs the full N-best orchestrator (fast path, budgeted
// heavy path, pending-buffer timeout path, tail exact sweep) over a ranked
// set of ASR hypotheses.
func (e *Engine) ParseHypotheses(ctx context.Context, hypotheses []orchestrator.Hypothesis, matchCtx *alias.MatchContext, partials []string, asrWeight float64) alias.MatchResult {
	return e.speech.ParseHypotheses(ctx, hypotheses, matchCtx, partials, asrWeight)
}

// SetPendingResultListener registers the callback that receives a
// pending-buffer drain's asynchronous outcome.
func (e *Engine) SetPendingResultListener(fn orchestrator.ResultListener) {
	e.speech.SetPendingResultListener(fn)
}

// StartSession opens a new usage-tracking session window and makes it the
// session RecordUse attributes subsequent uses to, until the next
// StartSession call. It also begins a new orchestrator session, cancelling
// any parse still in flight from the previous one and tagging pending
// deliveries still in the buffer with the old session id so a late result
// never reaches the listener once this call returns.
func (e *Engine) StartSession(sessionID string) {
	e.sessionID = sessionID
	e.usage.OpenSession(sessionID)
	e.speech.StartSession(sessionID)
}

// StopListening ends the current orchestrator session without starting a
// new one: any parse still in flight is cancelled and no further
// pending-buffer delivery from it reaches the listener.
func (e *Engine) StopListening() {
	e.speech.StopListening()
}

// RecordUse feeds a confirmed species identification into the usage score
// store under the current session. Match and ParseHypotheses do not read
// this store; the recency prior comes only from the RecentIDs of the
// MatchContext the host passes in.
func (e *Engine) RecordUse(speciesID string) {
	e.usage.RecordUse(speciesID, e.sessionID, time.Now().UnixMilli())
}

// ForceRebuild synchronously rebuilds every persisted artefact (master,
// serverdata index, optimized binaries, process-private cache) from the
// master document as currently stored on disk.
func (e *Engine) ForceRebuild() error {
	return e.pipeline.ForceRebuild()
}

// RegenerateIfNeeded rebuilds when the combined checksum of sourceFiles
// differs from the recorded one, when no checksum sidecar exists yet, or
// when any output artefact is missing; otherwise it does nothing.
func (e *Engine) RegenerateIfNeeded(sourceFiles []string) error {
	return e.pipeline.RegenerateIfNeeded(sourceFiles)
}

// Close stops the orchestrator's background pending-buffer worker. Call it
// when the host is shutting the engine down.
func (e *Engine) Close() {
	e.speech.Close()
}
