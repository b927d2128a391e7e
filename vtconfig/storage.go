package vtconfig

import (
	"os"
	"path/filepath"
)

// storageSubdir is the directory name nested under the process-private
// cache root returned by os.UserCacheDir.
const storageSubdir = "voicetally"

// StorageRoot resolves the four directories the persistence pipeline reads
// and writes: Assets holds the human-readable master, Binaries holds the
// GZIP-compressed optimized artefact, Serverdata holds the VT5BIN10 index,
// and Cache is the process-private writeable area (always available even
// when the other three are read-only host-managed directories).
type StorageRoot struct {
	Assets     string
	Binaries   string
	Serverdata string
	Cache      string
}

// ResolveStorageRoot builds a StorageRoot rooted at hostRoot for the three
// host-managed directories, and under the OS user cache directory for the
// process-private cache.
func ResolveStorageRoot(hostRoot string) (StorageRoot, error) {
	cacheBase, err := os.UserCacheDir()
	if err != nil {
		return StorageRoot{}, err
	}
	return StorageRoot{
		Assets:     filepath.Join(hostRoot, "assets"),
		Binaries:   filepath.Join(hostRoot, "binaries"),
		Serverdata: filepath.Join(hostRoot, "serverdata"),
		Cache:      filepath.Join(cacheBase, storageSubdir),
	}, nil
}

// MasterPath is the canonical human-readable master location.
func (s StorageRoot) MasterPath() string {
	return filepath.Join(s.Assets, "alias_master.json")
}

// OptimizedPath is the GZIP+JSON "aliases_optimized.cbor.gz" artefact
// location (see DESIGN.md for the CBOR-naming/encoding note).
func (s StorageRoot) OptimizedPath() string {
	return filepath.Join(s.Binaries, "aliases_optimized.cbor.gz")
}

// IndexBinPath is the VT5BIN10 serverdata index location.
func (s StorageRoot) IndexBinPath() string {
	return filepath.Join(s.Serverdata, "alias_index.bin")
}

// CachePath is the process-private binary cache location.
func (s StorageRoot) CachePath() string {
	return filepath.Join(s.Cache, "alias_index.cache.bin")
}

// MetadataSidecarPath is the regenerate_if_needed checksum sidecar.
func (s StorageRoot) MetadataSidecarPath() string {
	return filepath.Join(s.Assets, "alias_master.meta.json")
}

// EnsureDirs creates every directory StorageRoot names, if absent.
func (s StorageRoot) EnsureDirs() error {
	for _, dir := range []string{s.Assets, s.Binaries, s.Serverdata, s.Cache} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
