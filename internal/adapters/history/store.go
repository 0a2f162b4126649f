// Package history implements ports.ActionHistory as a gob-persisted,
// mount-point-partitioned map of produced file -> producing attributes.
package history

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

// Store implements ports.ActionHistory. Each mount point (engine root,
// per-project root) gets its own on-disk partition so a shared engine
// install and several per-project checkouts never contend on one file.
type Store struct {
	mu         sync.RWMutex
	partitions map[string]*partition // keyed by mount point
	resolve    func(absPath string) (mountPoint, archivePath string)
	logger     ports.Logger
}

type partition struct {
	path    string
	dirty   bool
	archive domain.HistoryArchive
}

// NewStore creates a Store whose resolve func maps a produced file's
// absolute path to the mount point that owns it and the archive file
// path for that mount point's partition.
func NewStore(resolve func(absPath string) (mountPoint, archivePath string), logger ports.Logger) *Store {
	return &Store{
		partitions: make(map[string]*partition),
		resolve:    resolve,
		logger:     logger,
	}
}

// emptyArchive returns a fresh, unpersisted archive at the current
// on-disk format version.
func emptyArchive() domain.HistoryArchive {
	return domain.HistoryArchive{
		Version: domain.HistoryPartitionVersion,
		Entries: make(map[string]domain.HistoryEntry),
	}
}

// loadPartition never fails on a corrupt or version-mismatched archive: it
// logs the problem and starts the partition empty, the same policy
// depcache.Store and makefilecache.Store apply. A stale or unreadable
// history archive costs a cold restart of the incremental build, never
// aborts it.
func (s *Store) loadPartition(mountPoint, archivePath string) (*partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.partitions[mountPoint]; ok {
		return p, nil
	}

	p := &partition{path: archivePath, archive: emptyArchive()}

	//nolint:gosec // archivePath is derived from the caller's mount resolver, not user input
	f, err := os.Open(archivePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, zerr.Wrap(err, "failed to open action history partition")
		}
		s.partitions[mountPoint] = p
		return p, nil
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&p.archive); err != nil {
		if s.logger != nil {
			s.logger.Warn("action history partition unreadable, starting empty", "path", archivePath, "error", err)
		}
		p.archive = emptyArchive()
	} else if p.archive.Version != domain.HistoryPartitionVersion {
		if s.logger != nil {
			s.logger.Warn("action history partition version mismatch, starting empty", "path", archivePath)
		}
		p.archive = emptyArchive()
	}

	s.partitions[mountPoint] = p
	return p, nil
}

// Get returns the producing attributes last recorded for absPath.
func (s *Store) Get(absPath string) (domain.HistoryEntry, bool, error) {
	mountPoint, archivePath := s.resolve(absPath)
	p, err := s.loadPartition(mountPoint, archivePath)
	if err != nil {
		return domain.HistoryEntry{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := p.archive.Entries[absPath]
	return entry, ok, nil
}

// Put records the producing attributes for absPath.
func (s *Store) Put(absPath string, entry domain.HistoryEntry) error {
	mountPoint, archivePath := s.resolve(absPath)
	p, err := s.loadPartition(mountPoint, archivePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	p.archive.Entries[absPath] = entry
	p.dirty = true
	s.mu.Unlock()
	return nil
}

// UpdateProducingAttributes atomically swaps newAttributes into the
// history entry for absPath and reports whether the previous value
// differed. Every probe, for any file, is serialized by the store's
// single mutex, which is held only for this one entry's read-and-swap.
func (s *Store) UpdateProducingAttributes(absPath, newAttributes string) (bool, error) {
	mountPoint, archivePath := s.resolve(absPath)
	p, err := s.loadPartition(mountPoint, archivePath)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prior, existed := p.archive.Entries[absPath]
	p.archive.Entries[absPath] = domain.HistoryEntry{ProducingAttributes: newAttributes}
	p.dirty = true

	changed := existed && prior.ProducingAttributes != newAttributes
	return changed, nil
}

// Flush persists every partition modified since the last Flush.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.partitions {
		if !p.dirty {
			continue
		}
		if err := writeArchive(p.path, p.archive); err != nil {
			return err
		}
		p.dirty = false
	}
	return nil
}

func writeArchive(path string, archive domain.HistoryArchive) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create action history directory")
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // tmp is derived from a caller-resolved archive path
	if err != nil {
		return zerr.Wrap(err, "failed to create action history partition")
	}
	if err := gob.NewEncoder(f).Encode(archive); err != nil {
		f.Close()
		return zerr.Wrap(err, "failed to encode action history partition")
	}
	if err := f.Close(); err != nil {
		return zerr.Wrap(err, "failed to close action history partition")
	}
	return os.Rename(tmp, path)
}
