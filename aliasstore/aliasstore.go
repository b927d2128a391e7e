// Package aliasstore holds the in-memory alias index and the priority
// chain that loads it from the process-private cache, the VT5BIN10
// serverdata index, the optimized binaries artefact, or the human-readable
// master, stopping at the first source that succeeds.
package aliasstore

import (
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/antzucaro/matchr"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/cologne"
	"github.com/yvedd/voicetally-core/vt5bin"
	"github.com/yvedd/voicetally-core/vtconfig"
	"github.com/yvedd/voicetally-core/vterrors"
	"github.com/yvedd/voicetally-core/vtschema"
)

// Store holds the in-memory AliasIndex and a single-writer lock guarding
// hot-patch mutations; readers take an immutable snapshot of the current
// index (spec §3 single-writer/atomic-snapshot invariant).
type Store struct {
	root vtconfig.StorageRoot

	loadOnce sync.Once
	loadErr  error

	schemaOnce sync.Once
	schema     *vtschema.Validator
	schemaErr  error

	mu    sync.RWMutex
	index alias.AliasIndex
}

// New constructs a Store bound to the given storage layout. Loading is
// deferred until EnsureLoaded (or the first operation that calls it).
func New(root vtconfig.StorageRoot) *Store {
	return &Store{root: root}
}

// EnsureLoaded loads the index from the priority chain at most once per
// process (subsequent calls return the cached result), stopping at the
// first source that decodes successfully:
//  1. process-private binary cache
//  2. VT5BIN10 serverdata index
//  3. GZIP+JSON optimized binaries artefact
//  4. human-readable JSON master (recomputes the projection and writes
//     the cache back)
func (s *Store) EnsureLoaded() error {
	s.loadOnce.Do(func() {
		s.loadErr = s.loadFromChain()
	})
	return s.loadErr
}

func (s *Store) loadFromChain() error {
	if idx, ok := s.tryLoadCache(); ok {
		s.setIndex(idx)
		return nil
	}
	if idx, ok := s.tryLoadServerdata(); ok {
		s.setIndex(idx)
		return nil
	}
	if idx, ok := s.tryLoadOptimized(); ok {
		s.setIndex(idx)
		return nil
	}
	if idx, ok := s.tryLoadMaster(); ok {
		s.setIndex(idx)
		_ = s.writeCacheSnapshot(idx)
		return nil
	}
	return vterrors.New(vterrors.KindIndexUnavailable, "aliasstore.EnsureLoaded", "no alias source available")
}

func (s *Store) tryLoadCache() (alias.AliasIndex, bool)      { return s.loadVT5BIN(s.root.CachePath()) }
func (s *Store) tryLoadServerdata() (alias.AliasIndex, bool) { return s.loadVT5BIN(s.root.IndexBinPath()) }

func (s *Store) loadVT5BIN(path string) (alias.AliasIndex, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return alias.AliasIndex{}, false
	}
	_, payload, err := vt5bin.Decode(data, vt5bin.KindAliasIndex)
	if err != nil {
		return alias.AliasIndex{}, false
	}
	var idx alias.AliasIndex
	if err := json.Unmarshal(payload, &idx); err != nil {
		return alias.AliasIndex{}, false
	}
	return idx, true
}

func (s *Store) tryLoadOptimized() (alias.AliasIndex, bool) {
	f, err := os.Open(s.root.OptimizedPath())
	if err != nil {
		return alias.AliasIndex{}, false
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return alias.AliasIndex{}, false
	}
	defer gr.Close()
	payload, err := io.ReadAll(gr)
	if err != nil {
		return alias.AliasIndex{}, false
	}
	var idx alias.AliasIndex
	if err := json.Unmarshal(payload, &idx); err != nil {
		return alias.AliasIndex{}, false
	}
	return idx, true
}

// masterValidator compiles the embedded alias_master.json schema at most
// once per Store.
func (s *Store) masterValidator() (*vtschema.Validator, error) {
	s.schemaOnce.Do(func() {
		s.schema, s.schemaErr = vtschema.NewAliasMasterValidator()
	})
	return s.schema, s.schemaErr
}

func (s *Store) tryLoadMaster() (alias.AliasIndex, bool) {
	data, err := os.ReadFile(s.root.MasterPath())
	if err != nil {
		return alias.AliasIndex{}, false
	}
	validator, err := s.masterValidator()
	if err != nil {
		return alias.AliasIndex{}, false
	}
	// A schema violation is treated the same as a decode failure: this is
	// the last source in the priority chain, so the caller falls through
	// to EnsureLoaded's overall "no alias source available" error.
	if err := validator.ValidateJSON(data); err != nil {
		return alias.AliasIndex{}, false
	}
	var master alias.AliasMaster
	if err := json.Unmarshal(data, &master); err != nil {
		return alias.AliasIndex{}, false
	}
	return alias.Project(master), true
}

func (s *Store) writeCacheSnapshot(idx alias.AliasIndex) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	container, err := vt5bin.Encode(vt5bin.KindAliasIndex, vt5bin.CodecJSON, true, uint32(len(idx.Records)), payload)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.root.CachePath()), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.root.CachePath(), container, 0o644)
}

func (s *Store) setIndex(idx alias.AliasIndex) {
	s.mu.Lock()
	s.index = idx
	s.mu.Unlock()
}

// snapshot returns the current index under a read lock; callers must treat
// the returned value's Records slice as read-only.
func (s *Store) snapshot() alias.AliasIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Snapshot exposes the current index to callers outside the package (the
// root facade's GetAllSpecies projection); treat Records as read-only.
func (s *Store) Snapshot() alias.AliasIndex {
	return s.snapshot()
}

// FindExact returns every record whose Norm equals normalised.
func (s *Store) FindExact(normalised string) []alias.AliasRecord {
	idx := s.snapshot()
	var out []alias.AliasRecord
	for _, rec := range idx.Records {
		if rec.Norm == normalised {
			out = append(out, rec)
		}
	}
	return out
}

// ScoredRecord pairs a record with its Cologne similarity to the query.
type ScoredRecord struct {
	Record alias.AliasRecord
	Score  float64
}

// FindFuzzyCandidates returns up to topN records ranked by Cologne
// similarity to normalised, filtered to score >= threshold. The matcher
// layer rescales these with the full text/phoneme/prior formula.
func (s *Store) FindFuzzyCandidates(normalised string, topN int, threshold float64) []ScoredRecord {
	idx := s.snapshot()
	scored := make([]ScoredRecord, 0, len(idx.Records))
	for _, rec := range idx.Records {
		score := cologne.Similarity(normalised, rec.Norm)
		if score >= threshold {
			scored = append(scored, ScoredRecord{Record: rec, Score: score})
		}
	}
	sortScoredDescending(scored)
	if len(scored) > topN {
		scored = scored[:topN]
	}
	return scored
}

func sortScoredDescending(scored []ScoredRecord) {
	for i := 1; i < len(scored); i++ {
		key := scored[i]
		j := i - 1
		for j >= 0 && scored[j].Score < key.Score {
			scored[j+1] = scored[j]
			j--
		}
		scored[j+1] = key
	}
}

// AddAliasHotpatch mutates the in-memory index synchronously. A duplicate
// (same Norm for the same species) is a no-op returning false; the matcher
// layer is responsible for rejecting the same Norm claimed by a different
// species (first mapping wins until a rebuild reconciles).
func (s *Store) AddAliasHotpatch(speciesID, aliasRaw, canonical, tilename string) bool {
	data := alias.AliasData{Text: aliasRaw, Source: alias.SourceUserFieldTraining}
	data.Derive()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.index.Records {
		if rec.SpeciesID == speciesID && rec.Norm == data.Norm {
			return false
		}
	}

	nextIndex := 1
	for _, rec := range s.index.Records {
		if rec.SpeciesID == speciesID {
			nextIndex++
		}
	}

	rec := alias.AliasRecord{
		AliasID:   speciesID + "_" + strconv.Itoa(nextIndex),
		SpeciesID: speciesID,
		Canonical: canonical,
		Tilename:  tilename,
		Alias:     data.Text,
		Norm:      data.Norm,
		Cologne:   data.Cologne,
		Phonemes:  data.Phonemes,
		Weight:    1.0,
		Source:    data.Source,
	}
	s.index.Records = append(s.index.Records, rec)
	return true
}

// ReloadIndex re-reads the index from the priority chain, ignoring any
// cached load-once result.
func (s *Store) ReloadIndex() error {
	return s.loadFromChain()
}

// SuggestSpecies returns canonical species names ranked by Jaro-Winkler
// similarity to query, for "did you mean" style host UI hints beyond the
// matcher's own fuzzy cascade.
func (s *Store) SuggestSpecies(query string, limit int) []string {
	idx := s.snapshot()
	seen := make(map[string]struct{})
	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for _, rec := range idx.Records {
		if _, ok := seen[rec.SpeciesID]; ok {
			continue
		}
		seen[rec.SpeciesID] = struct{}{}
		candidates = append(candidates, scored{name: rec.Canonical, score: matchr.JaroWinkler(query, rec.Canonical, true)})
	}
	for i := 1; i < len(candidates); i++ {
		key := candidates[i]
		j := i - 1
		for j >= 0 && candidates[j].score < key.score {
			candidates[j+1] = candidates[j]
			j--
		}
		candidates[j+1] = key
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.name
	}
	return names
}
