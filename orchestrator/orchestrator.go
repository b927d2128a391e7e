// Package orchestrator fuses a ranked list of ASR hypotheses into a single
// MatchResult: a cheap exact pass over the top candidates, a budgeted full
// match for whichever of those miss, a bounded pending buffer for the ones
// that blow their budget, and an exact-only sweep over the tail.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/aliasstore"
	"github.com/yvedd/voicetally-core/matcher"
	"github.com/yvedd/voicetally-core/textnorm"
	"github.com/yvedd/voicetally-core/vtconfig"
	"github.com/yvedd/voicetally-core/vtlog"
)

// topN is how many leading hypotheses get the fast+heavy treatment before
// the tail falls back to exact-only lookup.
const topN = 3

// Hypothesis is one ASR candidate transcript with its recognizer confidence.
type Hypothesis struct {
	Text       string
	Confidence float64
}

// ResultListener is delivered the outcome of a pending-buffer drain,
// keyed by the delivery token generated when the hypothesis was enqueued, and
// tagged with the ASR session that submitted the hypothesis so a host can
// drop a delivery belonging to a session it has already moved past.
type ResultListener func(sessionID, token string, result alias.MatchResult)

// pendingItem is one hypothesis queued for background fallback matching.
type pendingItem struct {
	token      string
	hypothesis string
	confidence float64
	ctx        *alias.MatchContext

	sessionID  string
	sessionCtx context.Context
}

// Engine runs the fast/heavy/timeout/tail cascade described by the package
// doc over a store and matcher built elsewhere.
type Engine struct {
	store   *aliasstore.Store
	matcher *matcher.Matcher
	cfg     vtconfig.Config
	logger  *vtlog.Logger

	filterPhrases map[string]struct{}

	pending  chan pendingItem
	stopCh   chan struct{}
	stopOnce sync.Once

	listenerMu sync.Mutex
	listener   ResultListener

	// parseMu serialises ParseHypotheses so ASR results are produced in
	// submission order within a session, as a single dedicated worker would.
	parseMu sync.Mutex

	sessionMu     sync.Mutex
	sessionID     string
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
}

// New builds an Engine and starts its background pending-buffer worker.
// Call Close when the engine is no longer needed to stop that worker.
func New(store *aliasstore.Store, m *matcher.Matcher, cfg vtconfig.Config, logger *vtlog.Logger) *Engine {
	filterPhrases := make(map[string]struct{}, len(cfg.FilterPhrases))
	for _, phrase := range cfg.FilterPhrases {
		filterPhrases[textnorm.Normalize(phrase)] = struct{}{}
	}

	sessionCtx, sessionCancel := context.WithCancel(context.Background())
	e := &Engine{
		store:         store,
		matcher:       m,
		cfg:           cfg,
		logger:        logger,
		filterPhrases: filterPhrases,
		pending:       make(chan pendingItem, cfg.PendingBufferCap),
		stopCh:        make(chan struct{}),
		sessionCtx:    sessionCtx,
		sessionCancel: sessionCancel,
	}
	go e.drainPending()
	return e
}

// Close stops the background pending-buffer worker. Items already queued
// are abandoned.
func (e *Engine) Close() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// StartSession begins a new ASR session: any parse still in flight from the
// previous session has its context cancelled, so a late result from it times
// out rather than reaching the listener, and pending deliveries still in the
// buffer are tagged with the old session id so drainPending can discard them.
func (e *Engine) StartSession(sessionID string) {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	if e.sessionCancel != nil {
		e.sessionCancel()
	}
	e.sessionCtx, e.sessionCancel = context.WithCancel(context.Background())
	e.sessionID = sessionID
}

// StopListening cancels the current session without starting a new one;
// results already in flight time out and no further session id matches, so
// drainPending drops any outstanding pending-buffer delivery.
func (e *Engine) StopListening() {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	if e.sessionCancel != nil {
		e.sessionCancel()
	}
	stoppedCtx, cancel := context.WithCancel(context.Background())
	cancel()
	e.sessionCtx, e.sessionCancel = stoppedCtx, cancel
	e.sessionID = ""
}

// currentSession snapshots the session context and id a caller should tag
// its work with.
func (e *Engine) currentSession() (context.Context, string) {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	return e.sessionCtx, e.sessionID
}

// isCurrentSession reports whether sessionID is still the engine's active
// session. An empty sessionID (work tagged before any StartSession call)
// matches only while the engine itself has no session id, i.e. before the
// first StartSession or after StopListening.
func (e *Engine) isCurrentSession(sessionID string) bool {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()
	return sessionID == e.sessionID
}

// SetPendingResultListener registers the callback that receives the
// asynchronous outcome of a pending-buffer drain. A nil listener disables
// delivery without affecting draining itself.
func (e *Engine) SetPendingResultListener(fn ResultListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.listener = fn
}

func (e *Engine) deliver(sessionID, token string, result alias.MatchResult) {
	e.listenerMu.Lock()
	fn := e.listener
	e.listenerMu.Unlock()
	if fn != nil {
		fn(sessionID, token, result)
	}
}

// ParseHypotheses fuses hypotheses (ordered best-first) into one
// MatchResult. partials carries the live ASR partial-transcript trail for
// interface parity with hosts that stream partial recognitions; it plays
// no role in candidate selection or ranking.
//
// Calls are serialised on a single critical section so results for a given
// session are produced in submission order; the context captured from the
// session active at entry is threaded through the heavy path so a
// StartSession/StopListening call cancels this parse if it is still running.
func (e *Engine) ParseHypotheses(ctx context.Context, hypotheses []Hypothesis, matchCtx *alias.MatchContext, partials []string, asrWeight float64) alias.MatchResult {
	e.parseMu.Lock()
	defer e.parseMu.Unlock()

	sessionCtx, sessionID := e.currentSession()

	kept := e.dropFilterPhrases(hypotheses)
	if len(kept) == 0 {
		return alias.NoMatch("", "no_candidate")
	}

	head := kept
	tail := kept[:0]
	if len(kept) > topN {
		head = kept[:topN]
		tail = kept[topN:]
	}

	if result, ok := e.fastPath(head, matchCtx); ok {
		return result
	}

	result, queued := e.heavyPath(ctx, sessionCtx, sessionID, head, matchCtx, asrWeight)
	if result != nil {
		return *result
	}

	if tailResult, ok := e.tailExactSweep(tail, matchCtx); ok {
		return tailResult
	}

	if queued {
		return alias.NoMatch("", "queued")
	}
	return alias.NoMatch("", "no_candidate")
}

// dropFilterPhrases removes hypotheses whose normalised text matches a
// configured filter phrase (e.g. "stop", "volgende").
func (e *Engine) dropFilterPhrases(hypotheses []Hypothesis) []Hypothesis {
	kept := make([]Hypothesis, 0, len(hypotheses))
	for _, h := range hypotheses {
		if _, filtered := e.filterPhrases[textnorm.Normalize(h.Text)]; filtered {
			continue
		}
		kept = append(kept, h)
	}
	return kept
}

// fastPath tries an exact lookup on each of the head hypotheses, in order,
// and returns on the first hit.
func (e *Engine) fastPath(head []Hypothesis, matchCtx *alias.MatchContext) (alias.MatchResult, bool) {
	for _, h := range head {
		norm := textnorm.Normalize(h.Text)
		records := e.store.FindExact(norm)
		if len(records) == 0 {
			continue
		}
		rec := records[0]
		result := alias.MatchResult{
			Kind:       alias.ResultAutoAccept,
			Hypothesis: h.Text,
			Source:     "quick_exact",
			Candidate: alias.Candidate{
				SpeciesID:   rec.SpeciesID,
				DisplayName: rec.Canonical,
				Score:       0.9,
				IsInTiles:   matchCtx.InTiles(rec.SpeciesID),
				Source:      "quick_exact",
			},
			Amount: 1,
		}
		e.audit(h, result, 0)
		return result, true
	}
	return alias.MatchResult{}, false
}

// heavyPath runs a budgeted full match for each head hypothesis, tracking
// the best combined-rank result and short-circuiting on AutoAccept or
// MultiMatch. It returns (result, anyQueued); result is nil if no head
// hypothesis produced a candidate within its budget (NoMatch outcomes are
// not ranked).
func (e *Engine) heavyPath(ctx, sessionCtx context.Context, sessionID string, head []Hypothesis, matchCtx *alias.MatchContext, asrWeight float64) (*alias.MatchResult, bool) {
	budget := time.Duration(e.cfg.HeavyPathTimeoutMs) * time.Millisecond

	var best *alias.MatchResult
	bestRank := -1.0
	queued := false

	for _, h := range head {
		start := time.Now()
		result, timedOut := e.runWithTimeout(ctx, sessionCtx, budget, h.Text, matchCtx)
		elapsedMs := float64(time.Since(start).Microseconds()) / 1000.0

		if timedOut {
			token := e.enqueueOrFallback(h, matchCtx, sessionCtx, sessionID)
			if token != "" {
				queued = true
			}
			continue
		}

		e.audit(h, result, elapsedMs)

		if result.Kind == alias.ResultNoMatch {
			continue
		}
		if result.Kind == alias.ResultAutoAccept || result.Kind == alias.ResultMultiMatch {
			r := result
			return &r, queued
		}

		rank := asrWeight*h.Confidence + (1-asrWeight)*matcherScoreOf(result)
		if rank > bestRank {
			bestRank = rank
			r := result
			best = &r
		}
	}

	return best, queued
}

// enqueueOrFallback tries a non-blocking enqueue to the pending buffer; on
// overflow it runs an inline fallback match under the shorter drain
// budget and, if that also times out, delivers NoMatch{source="buffer-full"}
// directly rather than queuing. It returns the delivery token used, or ""
// if the inline fallback path was taken instead of queuing.
func (e *Engine) enqueueOrFallback(h Hypothesis, matchCtx *alias.MatchContext, sessionCtx context.Context, sessionID string) string {
	token := uuid.NewString()
	item := pendingItem{
		token:      token,
		hypothesis: h.Text,
		confidence: h.Confidence,
		ctx:        matchCtx,
		sessionID:  sessionID,
		sessionCtx: sessionCtx,
	}
	select {
	case e.pending <- item:
		return token
	default:
	}

	drainBudget := time.Duration(e.cfg.PendingDrainTimeout) * time.Millisecond
	result, timedOut := e.runWithTimeout(context.Background(), sessionCtx, drainBudget, h.Text, matchCtx)
	if timedOut {
		result = alias.NoMatch(h.Text, "buffer-full")
	}
	e.audit(h, result, 0)
	e.deliver(sessionID, token, result)
	return ""
}

// tailExactSweep tries an exact lookup only, for hypotheses beyond the
// head window.
func (e *Engine) tailExactSweep(tail []Hypothesis, matchCtx *alias.MatchContext) (alias.MatchResult, bool) {
	return e.fastPath(tail, matchCtx)
}

// drainPending is the background worker that drains the pending buffer,
// running a 250 ms fallback match per item and delivering the outcome to
// the registered listener. An item tagged with a session the engine has
// since moved past (a newer StartSession, or a StopListening) is still
// drained to keep the buffer moving but its result is never delivered,
// satisfying the "no result tagged with session n reaches the listener
// after start_session(n+1)" guarantee.
func (e *Engine) drainPending() {
	drainBudget := time.Duration(e.cfg.PendingDrainTimeout) * time.Millisecond
	for {
		select {
		case <-e.stopCh:
			return
		case item := <-e.pending:
			result, timedOut := e.runWithTimeout(context.Background(), item.sessionCtx, drainBudget, item.hypothesis, item.ctx)
			if timedOut {
				result = alias.NoMatch(item.hypothesis, "queued")
			}
			e.audit(Hypothesis{Text: item.hypothesis, Confidence: item.confidence}, result, 0)
			if e.isCurrentSession(item.sessionID) {
				e.deliver(item.sessionID, item.token, result)
			}
		}
	}
}

// runWithTimeout runs a full match on a worker goroutine and races it
// against budget, ctx cancellation, and sessionCtx cancellation (a
// StartSession/StopListening call made while this parse is still running).
// The cascade's own window-by-window bounding (matcher.maxWindow) keeps a
// timed-out goroutine short-lived even though it is not forcibly killed.
func (e *Engine) runWithTimeout(ctx, sessionCtx context.Context, budget time.Duration, hypothesis string, matchCtx *alias.MatchContext) (alias.MatchResult, bool) {
	done := make(chan alias.MatchResult, 1)
	go func() {
		done <- e.matcher.Match(hypothesis, matchCtx)
	}()

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case result := <-done:
		return result, false
	case <-timer.C:
		return alias.MatchResult{}, true
	case <-ctx.Done():
		return alias.MatchResult{}, true
	case <-sessionCtx.Done():
		return alias.MatchResult{}, true
	}
}

// matcherScoreOf extracts the score term used by the combined-rank formula:
// the winning candidate's score for single-candidate outcomes, the best
// entry's score for a multi-match, and 0 otherwise.
func matcherScoreOf(result alias.MatchResult) float64 {
	switch result.Kind {
	case alias.ResultAutoAccept, alias.ResultAutoAcceptAddPopup:
		return result.Candidate.Score
	case alias.ResultMultiMatch:
		best := 0.0
		for _, m := range result.Matches {
			if m.Candidate.Score > best {
				best = m.Candidate.Score
			}
		}
		return best
	default:
		return 0
	}
}

// audit writes one structured line per match attempt via the host logger.
func (e *Engine) audit(h Hypothesis, result alias.MatchResult, durationMs float64) {
	if e.logger == nil {
		return
	}
	e.logger.Audit(vtlog.AuditEntry{
		Hypothesis: h.Text,
		Confidence: h.Confidence,
		ResultType: string(result.Kind),
		Source:     result.Source,
		SpeciesID:  result.Candidate.SpeciesID,
		Amount:     result.Amount,
		DurationMs: durationMs,
	})
}
