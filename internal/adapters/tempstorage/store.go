// Package tempstorage implements ports.TempStorage: a content-addressed
// archive of a pipeline node's tagged output files, persisted locally
// and optionally mirrored to a shared directory so a cooperating driver
// on another machine can hand artifacts between passes. Grounded on the
// teacher's adapters/cas.Store (JSON persistence behind a sync.RWMutex)
// and adapters/fs.Hasher (xxhash per-file content hash).
package tempstorage

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Store implements ports.TempStorage.
type Store struct {
	mu sync.RWMutex

	localRoot   string
	sharedDir   string
	writeShared bool
	readShared  bool

	hasher     ports.Hasher
	duplicable domain.DuplicableOutputs

	manifests map[string]domain.TempStorageManifest // tag name -> manifest
	complete  map[string]bool                       // node name -> complete
	hashOwner map[string]string                     // content hash -> owning node, for duplicate detection
}

// NewStore creates a Store rooted at localRoot, with no shared mirror and
// an empty duplicable-output list. Use ConfigureShared and
// SetDuplicableOutputs to adjust either before the first Store/Fetch
// call.
func NewStore(localRoot string, hasher ports.Hasher) *Store {
	return &Store{
		localRoot:  localRoot,
		hasher:     hasher,
		duplicable: domain.DuplicableOutputs{},
		manifests:  make(map[string]domain.TempStorageManifest),
		complete:   make(map[string]bool),
		hashOwner:  make(map[string]string),
	}
}

// ConfigureShared enables mirroring to a shared directory: writeShared
// pushes newly archived blocks there, readShared pulls blocks from there
// on a local miss. Per §4.9, when writing is disabled but reading is,
// blocks are fetched from shared on retrieve but nothing is pushed back.
func (s *Store) ConfigureShared(dir string, writeShared, readShared bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sharedDir = dir
	s.writeShared = writeShared
	s.readShared = readShared
}

// SetDuplicableOutputs installs the authoritative list of relative
// output paths exempt from the duplicate-build-product check.
func (s *Store) SetDuplicableOutputs(d domain.DuplicableOutputs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicable = d
}

func sanitizeTag(tag string) string {
	return strings.TrimPrefix(tag, "#")
}

func (s *Store) blockDir(root, nodeName, tagName string) string {
	return filepath.Join(root, "blocks", nodeName, sanitizeTag(tagName))
}

func (s *Store) manifestPath(root, tagName string) string {
	return filepath.Join(root, "manifests", sanitizeTag(tagName)+".json")
}

func (s *Store) completeMarker(root, nodeName string) string {
	return filepath.Join(root, "complete", nodeName+".done")
}

// Store archives the files under localRoot that belong to tagName as
// produced by nodeName: it content-hashes each file, rejects any hash
// collision with a different node's block unless the relative path is on
// the duplicable-output list, writes one archive block, and persists the
// resulting manifest.
func (s *Store) Store(nodeName, tagName, localRoot string, relPaths []string) (domain.TempStorageManifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	manifest := domain.TempStorageManifest{
		Version:   domain.TempStorageBlockVersion,
		NodeName:  nodeName,
		TagName:   tagName,
		WrittenAt: time.Now(),
	}

	dstDir := s.blockDir(s.localRoot, nodeName, tagName)
	if err := os.MkdirAll(dstDir, 0o750); err != nil {
		return domain.TempStorageManifest{}, zerr.Wrap(err, "failed to create temp storage block directory")
	}

	for _, rel := range relPaths {
		src := filepath.Join(localRoot, rel)
		info, err := os.Stat(src)
		if err != nil {
			return domain.TempStorageManifest{}, zerr.With(zerr.Wrap(err, "failed to stat output file"), "path", rel)
		}

		sum, err := s.hasher.SumFile(src)
		if err != nil {
			return domain.TempStorageManifest{}, err
		}

		if owner, exists := s.hashOwner[sum]; exists && owner != nodeName && !s.duplicable[rel] {
			return domain.TempStorageManifest{}, zerr.With(zerr.With(domain.ErrDuplicateBuildProduct,
				"path", rel), "other_node", owner)
		}
		s.hashOwner[sum] = nodeName

		dst := filepath.Join(dstDir, filepath.Clean(rel))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return domain.TempStorageManifest{}, zerr.Wrap(err, "failed to create temp storage block subdirectory")
		}
		if err := copyFile(src, dst); err != nil {
			return domain.TempStorageManifest{}, zerr.With(zerr.Wrap(err, "failed to archive output file"), "path", rel)
		}

		manifest.Files = append(manifest.Files, domain.TempStorageFile{
			RelativePath: rel,
			Length:       info.Size(),
			ContentHash:  sum,
		})
		manifest.TotalLength += info.Size()
	}

	if err := s.writeManifest(s.localRoot, manifest); err != nil {
		return domain.TempStorageManifest{}, err
	}

	if s.writeShared && s.sharedDir != "" {
		if err := s.mirrorToShared(nodeName, tagName, dstDir, manifest); err != nil {
			return domain.TempStorageManifest{}, err
		}
	}

	s.manifests[tagName] = manifest
	return manifest, nil
}

func (s *Store) mirrorToShared(nodeName, tagName, localBlockDir string, manifest domain.TempStorageManifest) error {
	sharedBlockDir := s.blockDir(s.sharedDir, nodeName, tagName)
	if err := os.MkdirAll(sharedBlockDir, 0o750); err != nil {
		return zerr.Wrap(err, "failed to create shared temp storage block directory")
	}
	for _, f := range manifest.Files {
		src := filepath.Join(localBlockDir, filepath.Clean(f.RelativePath))
		dst := filepath.Join(sharedBlockDir, filepath.Clean(f.RelativePath))
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return zerr.Wrap(err, "failed to create shared temp storage block subdirectory")
		}
		if err := copyFile(src, dst); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to mirror output file to shared storage"), "path", f.RelativePath)
		}
	}
	return s.writeManifest(s.sharedDir, manifest)
}

func (s *Store) writeManifest(root string, manifest domain.TempStorageManifest) error {
	path := s.manifestPath(root, manifest.TagName)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create temp storage manifest directory")
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode temp storage manifest")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // tmp is derived from a configured storage root and a declared tag name
		return zerr.Wrap(err, "failed to write temp storage manifest")
	}
	return os.Rename(tmp, path)
}

// Manifest returns the manifest previously stored for tagName without
// copying any files, consulting the shared mirror only if readShared is
// enabled and no local copy exists.
func (s *Store) Manifest(tagName string) (domain.TempStorageManifest, bool, error) {
	s.mu.RLock()
	if m, ok := s.manifests[tagName]; ok {
		s.mu.RUnlock()
		return m, true, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok, err := s.loadManifest(s.localRoot, tagName); ok || err != nil {
		if ok {
			s.manifests[tagName] = m
		}
		return m, ok, err
	}

	if s.readShared && s.sharedDir != "" {
		if m, ok, err := s.loadManifest(s.sharedDir, tagName); ok || err != nil {
			if ok {
				s.manifests[tagName] = m
			}
			return m, ok, err
		}
	}

	return domain.TempStorageManifest{}, false, nil
}

func (s *Store) loadManifest(root, tagName string) (domain.TempStorageManifest, bool, error) {
	data, err := os.ReadFile(s.manifestPath(root, tagName)) //nolint:gosec // path is derived from a configured storage root and a declared tag name
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.TempStorageManifest{}, false, nil
		}
		return domain.TempStorageManifest{}, false, zerr.Wrap(err, "failed to read temp storage manifest")
	}
	var m domain.TempStorageManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.TempStorageManifest{}, false, zerr.Wrap(err, "failed to decode temp storage manifest")
	}
	return m, true, nil
}

// Fetch restores the files recorded in tagName's manifest into localRoot,
// verifying each file's content hash after copy, pulling the block from
// the shared directory first if it is not present locally and readShared
// is enabled.
func (s *Store) Fetch(tagName, localRoot string) (domain.TempStorageManifest, error) {
	manifest, ok, err := s.Manifest(tagName)
	if err != nil {
		return domain.TempStorageManifest{}, err
	}
	if !ok {
		return domain.TempStorageManifest{}, zerr.With(domain.ErrTagNotFound, "tag", tagName)
	}

	s.mu.RLock()
	blockDir := s.blockDir(s.localRoot, manifest.NodeName, tagName)
	sharedBlockDir := s.blockDir(s.sharedDir, manifest.NodeName, tagName)
	readShared := s.readShared && s.sharedDir != ""
	s.mu.RUnlock()

	if err := os.MkdirAll(localRoot, 0o750); err != nil {
		return domain.TempStorageManifest{}, zerr.Wrap(err, "failed to create fetch destination")
	}

	for _, f := range manifest.Files {
		src := filepath.Join(blockDir, filepath.Clean(f.RelativePath))
		if _, statErr := os.Stat(src); statErr != nil && readShared {
			src = filepath.Join(sharedBlockDir, filepath.Clean(f.RelativePath))
		}

		dst := filepath.Join(localRoot, f.RelativePath)
		if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
			return domain.TempStorageManifest{}, zerr.Wrap(err, "failed to create fetch destination directory")
		}
		if err := copyFile(src, dst); err != nil {
			return domain.TempStorageManifest{}, zerr.With(zerr.Wrap(err, "failed to fetch output file"), "path", f.RelativePath)
		}

		sum, err := s.hasher.SumFile(dst)
		if err != nil {
			return domain.TempStorageManifest{}, err
		}
		if sum != f.ContentHash {
			return domain.TempStorageManifest{}, zerr.With(domain.ErrIntegrityCheckFailed, "path", f.RelativePath)
		}
	}

	return manifest, nil
}

// IsComplete reports whether nodeName was previously marked complete.
func (s *Store) IsComplete(nodeName string) bool {
	s.mu.RLock()
	if s.complete[nodeName] {
		s.mu.RUnlock()
		return true
	}
	s.mu.RUnlock()

	_, err := os.Stat(s.completeMarker(s.localRoot, nodeName))
	return err == nil
}

// MarkComplete records that nodeName finished successfully, for a later
// -Resume run to skip.
func (s *Store) MarkComplete(nodeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker := s.completeMarker(s.localRoot, nodeName)
	if err := os.MkdirAll(filepath.Dir(marker), 0o750); err != nil {
		return zerr.Wrap(err, "failed to create completion marker directory")
	}
	if err := os.WriteFile(marker, nil, 0o644); err != nil { //nolint:gosec // marker is derived from the store's configured root and a caller-supplied node name
		return zerr.Wrap(err, "failed to write completion marker")
	}
	s.complete[nodeName] = true
	return nil
}

// CleanLocal removes every locally archived block, manifest, and
// completion marker.
func (s *Store) CleanLocal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.localRoot); err != nil {
		return zerr.Wrap(err, "failed to clean local temp storage")
	}
	s.manifests = make(map[string]domain.TempStorageManifest)
	s.complete = make(map[string]bool)
	s.hashOwner = make(map[string]string)
	return nil
}

// CleanLocalNode removes nodeName's archived blocks and completion
// marker, for an explicit -CleanNode re-run.
func (s *Store) CleanLocalNode(nodeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(s.localRoot, "blocks", nodeName)); err != nil {
		return zerr.Wrap(err, "failed to clean node's temp storage blocks")
	}
	if err := os.Remove(s.completeMarker(s.localRoot, nodeName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.Wrap(err, "failed to remove completion marker")
	}
	delete(s.complete, nodeName)
	return nil
}

// CheckLocalIntegrity recomputes the content hash of every file recorded
// in tagNames' manifests and reports whether they still all match,
// without erroring on a mismatch — a drifted node is meant to be
// invalidated and re-run, not treated as a fatal condition.
func (s *Store) CheckLocalIntegrity(nodeName string, tagNames []string) (bool, error) {
	for _, tag := range tagNames {
		manifest, ok, err := s.Manifest(tag)
		if err != nil {
			return false, err
		}
		if !ok || manifest.NodeName != nodeName {
			return false, nil
		}

		s.mu.RLock()
		blockDir := s.blockDir(s.localRoot, nodeName, tag)
		s.mu.RUnlock()

		for _, f := range manifest.Files {
			path := filepath.Join(blockDir, filepath.Clean(f.RelativePath))
			if _, statErr := os.Stat(path); statErr != nil {
				return false, nil
			}
			sum, err := s.hasher.SumFile(path)
			if err != nil {
				return false, err
			}
			if sum != f.ContentHash {
				return false, nil
			}
		}
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // src is a path resolved from a configured storage root or caller-supplied local root
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst) //nolint:gosec // dst is a path resolved from a configured storage root or caller-supplied local root
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
