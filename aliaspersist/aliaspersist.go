// Package aliaspersist is the durability layer for the alias index: it
// moves mutations through the master JSON, the VT5BIN10 serverdata index,
// and the process-private cache, keeping every representation consistent
// and atomically replaced.
package aliaspersist

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"go.uber.org/zap"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/aliasstore"
	"github.com/yvedd/voicetally-core/vt5bin"
	"github.com/yvedd/voicetally-core/vtconfig"
	"github.com/yvedd/voicetally-core/vterrors"
	"github.com/yvedd/voicetally-core/vtlog"
)

// Metadata is the regenerate_if_needed sidecar recorded alongside the
// master document (vtconfig.StorageRoot.MetadataSidecarPath).
type Metadata struct {
	SourceChecksum string   `json:"source_checksum"`
	SourceFiles    []string `json:"source_files"`
	Timestamp      string   `json:"timestamp"`
}

// Pipeline owns the single-writer lock over the master document and the
// debounced rebuild scheduler. A debounce timer fires the rebuild, which
// takes the same single-writer lock as AddAlias, so concurrent add_alias
// calls never race on the binary artefacts.
type Pipeline struct {
	root   vtconfig.StorageRoot
	store  *aliasstore.Store
	logger *vtlog.Logger

	debounce time.Duration

	writeMu sync.Mutex // single-writer lock over the master document

	rebuildMu      sync.Mutex
	rebuildTimer   *time.Timer
	rebuildPending bool
}

// New builds a Pipeline bound to root and store, rebuilding no sooner than
// debounce after the last mutation. logger may be nil, in which case
// conflict-resolution reconciliation in ForceRebuild runs silently.
func New(root vtconfig.StorageRoot, store *aliasstore.Store, debounce time.Duration, logger *vtlog.Logger) *Pipeline {
	return &Pipeline{root: root, store: store, debounce: debounce, logger: logger}
}

// AddAlias hot-patches the in-memory store, merges the alias into the
// master document under the single-writer lock, refreshes the
// process-private cache from the updated master, and schedules a debounced
// full binary rebuild.
func (p *Pipeline) AddAlias(speciesID, aliasRaw, canonical, tilename string) (err error) {
	if !p.store.AddAliasHotpatch(speciesID, aliasRaw, canonical, tilename) {
		return nil // duplicate norm for this species: no-op
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	master, err := p.readMaster()
	if err != nil {
		return err
	}
	merged := false
	for i := range master.Species {
		if master.Species[i].SpeciesID != speciesID {
			continue
		}
		if master.Species[i].AddAlias(aliasRaw, alias.SourceUserFieldTraining) {
			merged = true
		}
		break
	}
	if !merged {
		return nil
	}
	master.Timestamp = nowStamp()

	// The process-private cache refresh always runs, even if writeMaster
	// fails below, so the running process stays consistent (spec §4.6
	// atomicity contract).
	defer func() {
		if cacheErr := p.refreshCacheFromMaster(master); cacheErr != nil && err == nil {
			err = cacheErr
		}
	}()

	if err = p.writeMaster(master); err != nil {
		return err
	}
	p.scheduleRebuild()
	return nil
}

// ForceRebuild synchronously rebuilds master→binary→cache from the master
// document as currently stored on disk.
func (p *Pipeline) ForceRebuild() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	master, err := p.readMaster()
	if err != nil {
		return err
	}
	return p.rebuildAll(master)
}

// SeedFromSpecies performs first-install seeding: it builds a master
// document from the host-supplied species list in deterministic
// (numeric-aware) id order and performs a synchronous full rebuild.
func (p *Pipeline) SeedFromSpecies(speciesIDs []string, speciesMap map[string]alias.SpeciesNames) error {
	entries := make([]alias.SpeciesEntry, 0, len(speciesIDs))
	for _, id := range speciesIDs {
		names := speciesMap[id]
		entries = append(entries, alias.NewSpeciesEntry(id, names.Canonical, names.Tilename))
	}
	alias.SortSpecies(entries)

	master := alias.AliasMaster{
		Version:   "2.1",
		Timestamp: nowStamp(),
		Species:   entries,
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.rebuildAll(master)
}

// RegenerateIfNeeded computes a SHA-256 over the concatenation of
// sourceFiles (in the given order) and rebuilds iff the stored checksum
// differs, or any output artefact is missing.
func (p *Pipeline) RegenerateIfNeeded(sourceFiles []string) error {
	checksum, err := concatenationChecksum(sourceFiles)
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.RegenerateIfNeeded", err)
	}

	meta, haveMeta := p.readMetadata()
	outputsPresent := fileExists(p.root.IndexBinPath()) && fileExists(p.root.OptimizedPath()) && fileExists(p.root.CachePath())

	if haveMeta && outputsPresent && meta.SourceChecksum == checksum {
		return nil
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	master, err := p.readMaster()
	if err != nil {
		return err
	}
	if err := p.rebuildAll(master); err != nil {
		return err
	}

	newMeta := Metadata{SourceChecksum: checksum, SourceFiles: sourceFiles, Timestamp: nowStamp()}
	return p.writeMetadata(newMeta)
}

// MatchSourceGlobs expands doublestar glob patterns against root and
// returns the matched file list sorted for deterministic checksumming,
// used by hosts that configure RegenerateIfNeeded's source_files via
// glob patterns rather than an explicit file list.
func MatchSourceGlobs(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("aliaspersist: bad glob pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			seen[filepath.Join(root, m)] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func (p *Pipeline) rebuildAll(master alias.AliasMaster) (err error) {
	previous := p.store.Snapshot()
	idx := alias.Project(master)

	// The process-private cache refresh always runs, regardless of which
	// artefact write below fails, so the running process stays consistent
	// (spec §4.6 atomicity contract).
	defer func() {
		if cacheErr := p.refreshCacheFromIndex(idx); cacheErr != nil && err == nil {
			err = cacheErr
		}
	}()

	if err = p.writeMaster(master); err != nil {
		return err
	}
	p.logResolvedConflicts(previous, idx)

	if err = p.writeServerdataIndex(idx); err != nil {
		return err
	}
	if err = p.writeOptimized(idx); err != nil {
		return err
	}
	return p.store.ReloadIndex()
}

// resolvedConflict pairs a hot-patched record with the species id the
// master-derived rebuild resolved its norm to (empty if the norm no
// longer appears at all).
type resolvedConflict struct {
	norm                string
	hotpatchedSpeciesID string
	resolvedSpeciesID   string
}

// conflictingNorms returns, for every norm in previous whose species id
// changed (or vanished) in next, the resolution that is about to replace
// it. A norm only diverges here when a hot-patch (aliasstore.AddAliasHotpatch)
// was applied for a species id that turned out not to be present in the
// master document it was reconciled against.
func conflictingNorms(previous, next alias.AliasIndex) []resolvedConflict {
	nextSpeciesByNorm := make(map[string]string, len(next.Records))
	for _, rec := range next.Records {
		nextSpeciesByNorm[rec.Norm] = rec.SpeciesID
	}
	var conflicts []resolvedConflict
	for _, rec := range previous.Records {
		speciesID, ok := nextSpeciesByNorm[rec.Norm]
		if ok && speciesID == rec.SpeciesID {
			continue
		}
		conflicts = append(conflicts, resolvedConflict{
			norm:                rec.Norm,
			hotpatchedSpeciesID: rec.SpeciesID,
			resolvedSpeciesID:   speciesID,
		})
	}
	return conflicts
}

// logResolvedConflicts compares the hot-patched in-memory index against the
// master-derived projection that is about to replace it and logs one
// warning per norm the rebuild resolves away from what was held in memory.
func (p *Pipeline) logResolvedConflicts(previous, next alias.AliasIndex) {
	if p.logger == nil {
		return
	}
	for _, c := range conflictingNorms(previous, next) {
		p.logger.Warn("alias norm conflict resolved against master",
			zap.String("norm", c.norm),
			zap.String("hotpatched_species_id", c.hotpatchedSpeciesID),
			zap.String("resolved_species_id", c.resolvedSpeciesID),
		)
	}
}

func (p *Pipeline) readMaster() (alias.AliasMaster, error) {
	data, err := os.ReadFile(p.root.MasterPath())
	if err != nil {
		return alias.AliasMaster{}, vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.readMaster", err)
	}
	var master alias.AliasMaster
	if err := json.Unmarshal(data, &master); err != nil {
		return alias.AliasMaster{}, vterrors.Wrap(vterrors.KindDecodeFailed, "aliaspersist.readMaster", err)
	}
	return master, nil
}

func (p *Pipeline) writeMaster(master alias.AliasMaster) error {
	data, err := json.MarshalIndent(master, "", "  ")
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.writeMaster", err)
	}
	return atomicWrite(p.root.MasterPath(), data)
}

func (p *Pipeline) writeServerdataIndex(idx alias.AliasIndex) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.writeServerdataIndex", err)
	}
	container, err := vt5bin.Encode(vt5bin.KindAliasIndex, vt5bin.CodecJSON, false, uint32(len(idx.Records)), payload)
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.writeServerdataIndex", err)
	}
	return atomicWrite(p.root.IndexBinPath(), container)
}

func (p *Pipeline) writeOptimized(idx alias.AliasIndex) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.writeOptimized", err)
	}
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.writeOptimized", err)
	}
	if err := gw.Close(); err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.writeOptimized", err)
	}
	return atomicWrite(p.root.OptimizedPath(), buf.Bytes())
}

func (p *Pipeline) refreshCacheFromMaster(master alias.AliasMaster) error {
	return p.refreshCacheFromIndex(alias.Project(master))
}

func (p *Pipeline) refreshCacheFromIndex(idx alias.AliasIndex) error {
	payload, err := json.Marshal(idx)
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.refreshCache", err)
	}
	container, err := vt5bin.Encode(vt5bin.KindAliasIndex, vt5bin.CodecJSON, true, uint32(len(idx.Records)), payload)
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.refreshCache", err)
	}
	// The process-private cache is written last and must always succeed
	// even if the serverdata/binaries rename above failed, so the running
	// process stays consistent (spec §4.6 atomicity contract).
	if err := atomicWrite(p.root.CachePath(), container); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) readMetadata() (Metadata, bool) {
	data, err := os.ReadFile(p.root.MetadataSidecarPath())
	if err != nil {
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, false
	}
	return meta, true
}

func (p *Pipeline) writeMetadata(meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.writeMetadata", err)
	}
	return atomicWrite(p.root.MetadataSidecarPath(), data)
}

// scheduleRebuild coalesces repeated mutations into a single rebuild that
// fires debounce after the last call.
func (p *Pipeline) scheduleRebuild() {
	p.rebuildMu.Lock()
	defer p.rebuildMu.Unlock()

	p.rebuildPending = true
	if p.rebuildTimer != nil {
		p.rebuildTimer.Stop()
	}
	p.rebuildTimer = time.AfterFunc(p.debounce, func() {
		p.rebuildMu.Lock()
		p.rebuildPending = false
		p.rebuildMu.Unlock()
		_ = p.ForceRebuild()
	})
}

// atomicWrite writes data to a temporary sibling of path and renames it
// into place, so readers never observe a partially written file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.atomicWrite", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.atomicWrite", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.atomicWrite", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.atomicWrite", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return vterrors.Wrap(vterrors.KindIoFailed, "aliaspersist.atomicWrite", err)
	}
	return nil
}

func concatenationChecksum(files []string) (string, error) {
	h := sha256.New()
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		if _, err := h.Write(data); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
