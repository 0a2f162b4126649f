package history_test

import (
	"bytes"
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.forgebuild.dev/forge/internal/adapters/history"
	"go.forgebuild.dev/forge/internal/adapters/logger"
	"go.forgebuild.dev/forge/internal/core/domain"
)

func singlePartitionResolver(archivePath string) func(string) (string, string) {
	return func(absPath string) (string, string) { return "root", archivePath }
}

// TestStore_PutAndFlushRoundTrips exercises the basic write/persist/reload
// cycle: an entry recorded via Put and flushed to disk is visible to a
// fresh Store reading the same archive path.
func TestStore_PutAndFlushRoundTrips(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "history.gob")
	store := history.NewStore(singlePartitionResolver(archivePath), nil)

	require.NoError(t, store.Put("/build/out.bin", domain.HistoryEntry{ProducingAttributes: "cc -o out.bin (ver 1)"}))
	require.NoError(t, store.Flush())

	reloaded := history.NewStore(singlePartitionResolver(archivePath), nil)
	entry, ok, err := reloaded.Get("/build/out.bin")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cc -o out.bin (ver 1)", entry.ProducingAttributes)
}

// TestStore_UpdateProducingAttributes_ReportsChange exercises scenario
// S2's history half: swapping in a new fingerprint for a previously recorded
// item reports the change; the first observation of an item never does.
func TestStore_UpdateProducingAttributes_ReportsChange(t *testing.T) {
	store := history.NewStore(singlePartitionResolver(filepath.Join(t.TempDir(), "history.gob")), nil)

	changed, err := store.UpdateProducingAttributes("/build/out.bin", "cc -o out.bin (ver 1)")
	require.NoError(t, err)
	require.False(t, changed, "the first recorded attributes for an item are never a change")

	changed, err = store.UpdateProducingAttributes("/build/out.bin", "cc -o out.bin (ver 1)")
	require.NoError(t, err)
	require.False(t, changed, "identical attributes are not a change")

	changed, err = store.UpdateProducingAttributes("/build/out.bin", "cc -O3 -o out.bin (ver 1)")
	require.NoError(t, err)
	require.True(t, changed, "a differing command line must be reported as a change")
}

// TestStore_CorruptArchiveStartsEmpty exercises the corruption-handling
// policy shared with depcache.Store and makefilecache.Store: a gob
// archive that fails to decode is logged and treated as an empty
// partition, never a hard error from Get/Put.
func TestStore_CorruptArchiveStartsEmpty(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "history.gob")
	require.NoError(t, os.WriteFile(archivePath, []byte("not a gob archive"), 0o644))

	var buf bytes.Buffer
	log := logger.New().(*logger.Logger)
	log.SetOutput(&buf)

	store := history.NewStore(singlePartitionResolver(archivePath), log)
	_, ok, err := store.Get("/build/out.bin")
	require.NoError(t, err)
	require.False(t, ok)
	require.Contains(t, buf.String(), "action history partition unreadable")
}

// TestStore_VersionMismatchStartsEmpty exercises the same policy for a
// structurally valid archive from an older history format.
func TestStore_VersionMismatchStartsEmpty(t *testing.T) {
	archivePath := filepath.Join(t.TempDir(), "history.gob")
	stale := domain.HistoryArchive{
		Version: domain.HistoryPartitionVersion + 1,
		Entries: map[string]domain.HistoryEntry{"/build/out.bin": {ProducingAttributes: "stale"}},
	}
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	require.NoError(t, gob.NewEncoder(f).Encode(stale))
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	log := logger.New().(*logger.Logger)
	log.SetOutput(&buf)

	store := history.NewStore(singlePartitionResolver(archivePath), log)
	_, ok, err := store.Get("/build/out.bin")
	require.NoError(t, err)
	require.False(t, ok, "a version-mismatched archive must be treated as empty, not surfaced")
	require.Contains(t, buf.String(), "action history partition version mismatch")
}
