// Package usage maintains the session-windowed, decayed popularity score
// used as one of the matcher's prior-boost signals.
package usage

import (
	"math"
	"sort"
	"sync"

	"github.com/yvedd/voicetally-core/alias"
)

// halfLifeDays is the decay half-life in the score formula
// s * exp(-ln2/halfLifeDays * deltaDays).
const halfLifeDays = 7.0

// useBoost is added to a species' decayed score on every record_use.
const useBoost = 1.0

// maxSessions bounds the retained session window.
const maxSessions = 10

// readoutCap bounds the size of TopSpecies/Recents results for UI safety.
const readoutCap = 75

// entry is one species' rolling score state.
type entry struct {
	score         float64
	lastUsedMs    int64
	lastSessionID string
}

// Store holds per-species usage state across a rolling window of sessions.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	sessions []string // session ids retained, oldest first
}

// New builds an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// OpenSession registers a new session id as the current window's newest
// member, pruning the oldest session (and any species entries that become
// orphaned) once more than maxSessions are retained.
func (s *Store) OpenSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = append(s.sessions, sessionID)
	if len(s.sessions) <= maxSessions {
		return
	}
	s.sessions = s.sessions[len(s.sessions)-maxSessions:]

	retained := make(map[string]struct{}, len(s.sessions))
	for _, id := range s.sessions {
		retained[id] = struct{}{}
	}
	for speciesID, e := range s.entries {
		if _, ok := retained[e.lastSessionID]; !ok {
			delete(s.entries, speciesID)
		}
	}
}

// RecordUse decays speciesID's existing score by elapsed time since its
// last use, adds the use boost, and associates it with sessionID at time
// nowMs (epoch milliseconds, supplied by the caller since this package must
// not call time.Now itself to stay deterministically testable).
func (s *Store) RecordUse(speciesID, sessionID string, nowMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[speciesID]
	if !ok {
		e = &entry{}
		s.entries[speciesID] = e
	} else {
		deltaDays := float64(nowMs-e.lastUsedMs) / (1000 * 60 * 60 * 24)
		if deltaDays < 0 {
			deltaDays = 0
		}
		e.score *= math.Exp(-math.Ln2 / halfLifeDays * deltaDays)
	}
	e.score += useBoost
	e.lastUsedMs = nowMs
	e.lastSessionID = sessionID
}

// Scored pairs a species id with its score as of its last RecordUse (decay
// is applied when a use is recorded, not at readout time).
type Scored struct {
	SpeciesID string
	Score     float64
}

// TopSpecies returns up to min(limit, 75) species ranked by stored score
// descending, then species id ascending (numeric-aware).
func (s *Store) TopSpecies(limit int) []Scored {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Scored, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Scored{SpeciesID: id, Score: e.score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return alias.CompareSpeciesIDs(out[i].SpeciesID, out[j].SpeciesID) < 0
	})
	return capResults(out, limit)
}

// Recent pairs a species id with the timestamp (epoch ms) it was last used.
type Recent struct {
	SpeciesID  string
	LastUsedMs int64
}

// Recents returns up to min(limit, 75) species ranked by last-used time
// descending.
func (s *Store) Recents(limit int) []Recent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Recent, 0, len(s.entries))
	for id, e := range s.entries {
		out = append(out, Recent{SpeciesID: id, LastUsedMs: e.lastUsedMs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastUsedMs != out[j].LastUsedMs {
			return out[i].LastUsedMs > out[j].LastUsedMs
		}
		return alias.CompareSpeciesIDs(out[i].SpeciesID, out[j].SpeciesID) < 0
	})

	if limit > readoutCap {
		limit = readoutCap
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func capResults(out []Scored, limit int) []Scored {
	if limit > readoutCap {
		limit = readoutCap
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
