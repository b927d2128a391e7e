package aliasstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yvedd/voicetally-core/alias"
	"github.com/yvedd/voicetally-core/vtconfig"
)

func newTestStore(t *testing.T) (*Store, vtconfig.StorageRoot) {
	t.Helper()
	hostRoot := t.TempDir()
	root, err := vtconfig.ResolveStorageRoot(hostRoot)
	require.NoError(t, err)
	// Keep the process-private cache per test; the default location under
	// the user cache directory is shared, so a cache written by one test
	// would satisfy EnsureLoaded in the next.
	root.Cache = filepath.Join(hostRoot, "cache")
	require.NoError(t, root.EnsureDirs())
	return New(root), root
}

func writeMaster(t *testing.T, root vtconfig.StorageRoot) {
	t.Helper()
	master := alias.AliasMaster{
		Version:   "2.1",
		Timestamp: "2026-01-01T00:00:00Z",
		Species: []alias.SpeciesEntry{
			alias.NewSpeciesEntry("101", "Aalscholver", "Aalscholver"),
			alias.NewSpeciesEntry("102", "Koolmees", ""),
		},
	}
	data, err := json.Marshal(master)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(root.MasterPath(), data, 0o644))
}

func TestEnsureLoadedFallsBackToMaster(t *testing.T) {
	store, root := newTestStore(t)
	writeMaster(t, root)

	require.NoError(t, store.EnsureLoaded())
	recs := store.FindExact("aalscholver")
	assert.Len(t, recs, 1)
	assert.Equal(t, "101", recs[0].SpeciesID)
}

func TestEnsureLoadedFailsWithNoSource(t *testing.T) {
	store, _ := newTestStore(t)
	err := store.EnsureLoaded()
	assert.Error(t, err)
}

func TestEnsureLoadedWritesCacheBack(t *testing.T) {
	store, root := newTestStore(t)
	writeMaster(t, root)
	require.NoError(t, store.EnsureLoaded())

	_, err := os.Stat(root.CachePath())
	assert.NoError(t, err)
}

func TestAddAliasHotpatchDedupesByNorm(t *testing.T) {
	store, root := newTestStore(t)
	writeMaster(t, root)
	require.NoError(t, store.EnsureLoaded())

	added := store.AddAliasHotpatch("101", "Aalscholvers", "Aalscholver", "Aalscholver")
	assert.True(t, added)

	dup := store.AddAliasHotpatch("101", "aalscholvers", "Aalscholver", "Aalscholver")
	assert.False(t, dup)
}

func TestFindFuzzyCandidatesRespectsThresholdAndTopN(t *testing.T) {
	store, root := newTestStore(t)
	writeMaster(t, root)
	require.NoError(t, store.EnsureLoaded())

	candidates := store.FindFuzzyCandidates("aalscholver", 1, 0.0)
	assert.Len(t, candidates, 1)
}

func TestReloadIndexRereadsFromChain(t *testing.T) {
	store, root := newTestStore(t)
	writeMaster(t, root)
	require.NoError(t, store.EnsureLoaded())
	require.NoError(t, store.ReloadIndex())
	assert.NotEmpty(t, store.FindExact("koolmees"))
}

func TestEnsureLoadedRejectsSchemaInvalidMaster(t *testing.T) {
	store, root := newTestStore(t)
	// missing the required "aliases" field on the species entry
	invalid := []byte(`{"version":"2.1","timestamp":"2026-01-01T00:00:00Z","species":[{"species_id":"101","canonical":"Aalscholver"}]}`)
	require.NoError(t, os.WriteFile(root.MasterPath(), invalid, 0o644))

	err := store.EnsureLoaded()
	assert.Error(t, err)
}
