// Package makefilecache implements ports.MakefileCache: a gob-persisted,
// per-target-key cache of a fully planned Makefile.
package makefilecache

import (
	"encoding/gob"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.MakefileCache, keyed by target key (as built by
// IgniteApp, "<project>|<platform>|<configuration>") under a root
// directory.
type Store struct {
	root   string
	mu     sync.Mutex
	logger ports.Logger
}

// NewStore creates a Store persisting makefiles under root.
func NewStore(root string, logger ports.Logger) *Store {
	return &Store{root: root, logger: logger}
}

func (s *Store) path(targetKey string) string {
	return filepath.Join(s.root, targetKey+".makefile.gob")
}

// Load returns the persisted Makefile for targetKey, or ok=false if none
// is cached, the cached archive fails to decode, or its version no
// longer matches: a corrupt or stale makefile cache is logged and
// treated as a cold miss, never a hard error that aborts the CLI.
func (s *Store) Load(targetKey string) (*domain.Makefile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(targetKey)
	//nolint:gosec // path is derived from a caller-supplied target key and the store's configured root
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.Wrap(err, "failed to open makefile cache")
	}
	defer f.Close()

	var mf domain.Makefile
	if err := gob.NewDecoder(f).Decode(&mf); err != nil {
		if s.logger != nil {
			s.logger.Warn("makefile cache entry unreadable, treating as a cold miss", "path", path, "error", err)
		}
		return nil, false, nil
	}
	if mf.Version != domain.MakefileVersion {
		if s.logger != nil {
			s.logger.Warn("makefile cache entry version mismatch, treating as a cold miss", "path", path)
		}
		return nil, false, nil
	}
	return &mf, true, nil
}

// IsValidForSourceFiles reports whether mf still reflects ws: every
// module's current source file list must match what mf was built with,
// exactly (same files, same order); the adaptive file set, the
// generated-code directory layout, and the additional toolchain
// arguments must all be unchanged.
func (s *Store) IsValidForSourceFiles(mf *domain.Makefile, ws domain.WorkingSet) bool {
	if len(ws.ModuleSourceFiles) != len(mf.ModuleSourceFiles) {
		return false
	}
	for module, currentFiles := range ws.ModuleSourceFiles {
		cachedFiles, ok := mf.ModuleSourceFiles[module]
		if !ok || !sameFileList(cachedFiles, currentFiles) {
			return false
		}
	}

	if len(ws.AdaptiveFiles) != len(mf.AdaptiveFiles) {
		return false
	}
	for file := range ws.AdaptiveFiles {
		if !mf.AdaptiveFiles[file] {
			return false
		}
	}

	if len(ws.GeneratedCodeDirs) != len(mf.GeneratedCodeDirs) {
		return false
	}
	for module, currentDirs := range ws.GeneratedCodeDirs {
		cachedDirs, ok := mf.GeneratedCodeDirs[module]
		if !ok || !sameFileList(cachedDirs, currentDirs) {
			return false
		}
	}

	if !sameFileList(mf.AdditionalArguments, ws.AdditionalArguments) {
		return false
	}

	return true
}

func sameFileList(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Save persists mf under targetKey.
func (s *Store) Save(targetKey string, mf *domain.Makefile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create makefile cache directory")
	}

	path := s.path(targetKey)
	tmp := path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // tmp is derived from the store's configured root and a caller-supplied target key
	if err != nil {
		return zerr.Wrap(err, "failed to create makefile cache entry")
	}
	if err := gob.NewEncoder(f).Encode(mf); err != nil {
		f.Close()
		return zerr.Wrap(err, "failed to encode makefile cache entry")
	}
	if err := f.Close(); err != nil {
		return zerr.Wrap(err, "failed to close makefile cache entry")
	}
	return os.Rename(tmp, path)
}
