package depcache

import (
	"encoding/gob"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.DependencyCache. It holds one or more
// partitions, each anchored at a base directory; a query routes to the
// first partition whose base directory is an ancestor of the file.
type Store struct {
	mu         sync.RWMutex
	partitions map[string]*partition // keyed by base directory
	order      []string              // base directories, longest first
	logger     ports.Logger
}

type partition struct {
	archivePath string
	dirty       bool
	entries     map[string]domain.DependencyInfo
}

// NewStore creates an empty Store. Partitions are added with AddPartition
// before use.
func NewStore(logger ports.Logger) *Store {
	return &Store{partitions: make(map[string]*partition), logger: logger}
}

// AddPartition registers a partition anchored at baseDir, loading any
// existing archive at archivePath. A decode error or version mismatch is
// logged and treated as an empty cache: a stale or corrupt archive never
// blocks a build, it only costs a cold re-parse.
func (s *Store) AddPartition(baseDir, archivePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	baseDir = filepath.Clean(baseDir)
	p := &partition{archivePath: archivePath, entries: make(map[string]domain.DependencyInfo)}

	if err := loadPartitionArchive(archivePath, p); err != nil {
		if s.logger != nil {
			s.logger.Warn("dependency cache partition unreadable, starting empty", "path", archivePath, "error", err)
		}
		p.entries = make(map[string]domain.DependencyInfo)
	}

	s.partitions[baseDir] = p
	s.order = append(s.order, baseDir)
	sort.Slice(s.order, func(i, j int) bool { return len(s.order[i]) > len(s.order[j]) })
	return nil
}

func loadPartitionArchive(archivePath string, p *partition) error {
	//nolint:gosec // archivePath is derived from caller-configured partitions, not user input
	f, err := os.Open(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to open dependency cache partition")
	}
	defer f.Close()

	var archive domain.DependencyPartitionArchive
	if err := gob.NewDecoder(f).Decode(&archive); err != nil {
		return zerr.Wrap(err, "failed to decode dependency cache partition")
	}
	if archive.Version != domain.DependencyCacheVersion {
		return zerr.With(domain.ErrCacheVersionMismatch, "path", archivePath)
	}

	for path, entryArchive := range archive.Entries {
		p.entries[path] = fromArchiveEntry(entryArchive)
	}
	return nil
}

func (s *Store) partitionFor(path string) *partition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, baseDir := range s.order {
		if strings.HasPrefix(path, baseDir) {
			return s.partitions[baseDir]
		}
	}
	return nil
}

// Get returns the cached DependencyInfo for path if present and not
// stale relative to path's current mtime.
func (s *Store) Get(path string) (domain.DependencyInfo, bool, error) {
	p := s.partitionFor(path)
	if p == nil {
		return domain.DependencyInfo{}, false, nil
	}

	s.mu.RLock()
	info, ok := p.entries[path]
	s.mu.RUnlock()
	if !ok {
		return domain.DependencyInfo{}, false, nil
	}

	fi, err := os.Stat(path)
	if err != nil || fi.ModTime().After(info.ParsedAt) {
		return domain.DependencyInfo{}, false, nil
	}
	return info, true, nil
}

// Put parses path and stores the result in whichever partition's base
// directory is its ancestor; if none matches, the parsed result is
// returned without being cached.
func (s *Store) Put(path string) (domain.DependencyInfo, error) {
	info, err := ParseFile(path)
	if err != nil {
		return domain.DependencyInfo{}, err
	}

	if p := s.partitionFor(path); p != nil {
		s.mu.Lock()
		p.entries[path] = info
		p.dirty = true
		s.mu.Unlock()
	}
	return info, nil
}

// TryGetDependencyInfo returns path's cached DependencyInfo, reparsing it
// via Put when absent or stale relative to path's current mtime.
func (s *Store) TryGetDependencyInfo(path string) (domain.DependencyInfo, error) {
	if info, ok, err := s.Get(path); err != nil {
		return domain.DependencyInfo{}, err
	} else if ok {
		return info, nil
	}
	return s.Put(path)
}

// TryGetProducedModule returns the module name path's dependency document
// reports as produced, reparsing path if needed.
func (s *Store) TryGetProducedModule(path string) (domain.InternedString, bool, error) {
	info, err := s.TryGetDependencyInfo(path)
	if err != nil {
		return domain.InternedString{}, false, err
	}
	return info.ProducedModule, info.HasProducedModule, nil
}

// TryGetImportedModules returns the modules path's dependency document
// reports as imported, reparsing path if needed.
func (s *Store) TryGetImportedModules(path string) ([]domain.ImportedModule, error) {
	info, err := s.TryGetDependencyInfo(path)
	if err != nil {
		return nil, err
	}
	return info.ImportedModules, nil
}

// TryGetDependencies returns the includes path's dependency document
// reports, reparsing path if needed.
func (s *Store) TryGetDependencies(path string) ([]*domain.FileItem, error) {
	info, err := s.TryGetDependencyInfo(path)
	if err != nil {
		return nil, err
	}
	return info.Includes, nil
}

// Flush persists every partition modified since the last Flush.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for baseDir, p := range s.partitions {
		if !p.dirty {
			continue
		}
		if err := s.writePartition(baseDir, p); err != nil {
			return err
		}
		p.dirty = false
	}
	return nil
}

func (s *Store) writePartition(baseDir string, p *partition) error {
	archive := domain.DependencyPartitionArchive{
		Version: domain.DependencyCacheVersion,
		BaseDir: baseDir,
		Entries: make(map[string]domain.DependencyEntryArchive, len(p.entries)),
	}
	for path, info := range p.entries {
		archive.Entries[path] = toArchiveEntry(info)
	}

	if err := os.MkdirAll(filepath.Dir(p.archivePath), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create dependency cache directory")
	}

	tmp := p.archivePath + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // tmp is derived from a caller-configured partition path
	if err != nil {
		return zerr.Wrap(err, "failed to create dependency cache partition")
	}
	if err := gob.NewEncoder(f).Encode(archive); err != nil {
		f.Close()
		return zerr.Wrap(err, "failed to encode dependency cache partition")
	}
	if err := f.Close(); err != nil {
		return zerr.Wrap(err, "failed to close dependency cache partition")
	}
	return os.Rename(tmp, p.archivePath)
}

func toArchiveEntry(info domain.DependencyInfo) domain.DependencyEntryArchive {
	e := domain.DependencyEntryArchive{
		ParsedAt:          info.ParsedAt,
		ProducedModule:    info.ProducedModule.String(),
		HasProducedModule: info.HasProducedModule,
	}
	for _, m := range info.ImportedModules {
		e.ImportedModules = append(e.ImportedModules, domain.ImportedModuleArchive{
			Name:    m.Name.String(),
			BMIPath: m.BMIPath.String(),
		})
	}
	for _, inc := range info.Includes {
		e.Includes = append(e.Includes, inc.AbsPath)
	}
	return e
}

func fromArchiveEntry(e domain.DependencyEntryArchive) domain.DependencyInfo {
	info := domain.DependencyInfo{
		ParsedAt:          e.ParsedAt,
		HasProducedModule: e.HasProducedModule,
	}
	if e.HasProducedModule {
		info.ProducedModule = domain.NewInternedString(e.ProducedModule)
	}
	for _, m := range e.ImportedModules {
		info.ImportedModules = append(info.ImportedModules, domain.ImportedModule{
			Name:    domain.NewInternedString(m.Name),
			BMIPath: domain.NewInternedString(m.BMIPath),
		})
	}
	for _, inc := range e.Includes {
		info.Includes = append(info.Includes, &domain.FileItem{AbsPath: inc})
	}
	return info
}
