package depcache_test

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.forgebuild.dev/forge/internal/adapters/depcache"
	"go.forgebuild.dev/forge/internal/adapters/logger"
	"go.forgebuild.dev/forge/internal/core/domain"
)

// TestStore_FlushAndReloadRoundTrips exercises property 4: a dependency
// cache partition written by Flush and reloaded by a fresh Store via
// AddPartition reproduces the same (produced module, imported modules,
// includes) tuple for every cached path.
func TestStore_FlushAndReloadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "deps.gob")

	hdrPath := filepath.Join(dir, "hdr.h")
	require.NoError(t, os.WriteFile(hdrPath, []byte("x"), 0o644))

	docPath := filepath.Join(dir, "a.json")
	doc := `{"Version":"1.1","Data":{"ProvidedModule":"mod.core","ImportedModules":[{"Name":"mod.base","BMI":"mod.base.ifc"}],"Includes":["` + hdrPath + `"]}}`
	require.NoError(t, os.WriteFile(docPath, []byte(doc), 0o644))

	store := depcache.NewStore(nil)
	require.NoError(t, store.AddPartition(dir, archivePath))

	info, err := store.TryGetDependencyInfo(docPath)
	require.NoError(t, err)
	require.True(t, info.HasProducedModule)
	require.Equal(t, "mod.core", info.ProducedModule.String())

	require.NoError(t, store.Flush())
	_, err = os.Stat(archivePath)
	require.NoError(t, err, "Flush must persist a dirty partition to its archive path")

	reloaded := depcache.NewStore(nil)
	require.NoError(t, reloaded.AddPartition(dir, archivePath))

	module, ok, err := reloaded.TryGetProducedModule(docPath)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "mod.core", module.String())

	imported, err := reloaded.TryGetImportedModules(docPath)
	require.NoError(t, err)
	require.Len(t, imported, 1)
	require.Equal(t, "mod.base", imported[0].Name.String())
	require.Equal(t, "mod.base.ifc", imported[0].BMIPath.String())

	includes, err := reloaded.TryGetDependencies(docPath)
	require.NoError(t, err)
	require.Len(t, includes, 1)
	require.Equal(t, hdrPath, includes[0].AbsPath)
}

// TestStore_TryGetDependencyInfo_ReparsesOnStaleCache exercises the
// read-through-and-reparse half of property 4: once the source document's
// mtime advances past the cached entry's ParsedAt, TryGetDependencyInfo
// reparses it instead of returning the stale value.
func TestStore_TryGetDependencyInfo_ReparsesOnStaleCache(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "a.json")

	store := depcache.NewStore(nil)
	require.NoError(t, store.AddPartition(dir, filepath.Join(dir, "deps.gob")))

	require.NoError(t, os.WriteFile(docPath, []byte(`{"Version":"1.1","Data":{"ProvidedModule":"mod.a"}}`), 0o644))
	info, err := store.TryGetDependencyInfo(docPath)
	require.NoError(t, err)
	require.Equal(t, "mod.a", info.ProducedModule.String())

	future := info.ParsedAt.Add(2 * time.Second)
	require.NoError(t, os.WriteFile(docPath, []byte(`{"Version":"1.1","Data":{"ProvidedModule":"mod.b"}}`), 0o644))
	require.NoError(t, os.Chtimes(docPath, future, future))

	info, err = store.TryGetDependencyInfo(docPath)
	require.NoError(t, err)
	require.Equal(t, "mod.b", info.ProducedModule.String(), "a newer mtime must force a reparse rather than returning the cached entry")
}

// TestStore_AddPartition_CorruptArchiveStartsEmpty exercises the
// corruption-handling policy: a gob archive that fails to decode is
// logged and treated as an empty cache, never a hard AddPartition error.
func TestStore_AddPartition_CorruptArchiveStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "deps.gob")
	require.NoError(t, os.WriteFile(archivePath, []byte("not a gob archive"), 0o644))

	var buf bytes.Buffer
	log := logger.New().(*logger.Logger)
	log.SetOutput(&buf)

	store := depcache.NewStore(log)
	require.NoError(t, store.AddPartition(dir, archivePath))
	require.Contains(t, buf.String(), "dependency cache partition unreadable")

	docPath := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"Version":"1.1","Data":{"ProvidedModule":"mod.a"}}`), 0o644))
	info, err := store.TryGetDependencyInfo(docPath)
	require.NoError(t, err)
	require.Equal(t, "mod.a", info.ProducedModule.String(), "a corrupt archive must not prevent the partition from serving fresh parses")
}

// TestStore_AddPartition_VersionMismatchStartsEmpty exercises the same
// policy for a structurally valid archive from an older cache format:
// AddPartition must log and start empty, never return an error.
func TestStore_AddPartition_VersionMismatchStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "deps.gob")

	stale := domain.DependencyPartitionArchive{
		Version: domain.DependencyCacheVersion - 1,
		BaseDir: dir,
		Entries: map[string]domain.DependencyEntryArchive{"stale": {}},
	}
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	require.NoError(t, gob.NewEncoder(f).Encode(stale))
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	log := logger.New().(*logger.Logger)
	log.SetOutput(&buf)

	store := depcache.NewStore(log)
	require.NoError(t, store.AddPartition(dir, archivePath))
	require.Contains(t, buf.String(), "dependency cache partition unreadable")

	docPath := filepath.Join(dir, "a.json")
	require.NoError(t, os.WriteFile(docPath, []byte(`{"Version":"1.1","Data":{"ProvidedModule":"mod.a"}}`), 0o644))
	info, err := store.TryGetDependencyInfo(docPath)
	require.NoError(t, err)
	require.Equal(t, "mod.a", info.ProducedModule.String(), "a version-mismatched archive must not prevent the partition from serving fresh parses")
}
