package outdated_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.forgebuild.dev/forge/internal/adapters/depcache"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.forgebuild.dev/forge/internal/engine/actiongraph"
	"go.forgebuild.dev/forge/internal/engine/outdated"
)

func item(path string) *domain.FileItem { return &domain.FileItem{AbsPath: path} }

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

// fakeHistory is an in-memory ports.ActionHistory used to observe whether
// outdated.Compute swaps producing attributes into history even for
// actions whose produced items don't exist yet.
type fakeHistory struct {
	mu      sync.Mutex
	entries map[string]string
	updates int
}

func newFakeHistory() *fakeHistory { return &fakeHistory{entries: map[string]string{}} }

func (h *fakeHistory) Get(absPath string) (domain.HistoryEntry, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.entries[absPath]
	return domain.HistoryEntry{ProducingAttributes: v}, ok, nil
}

func (h *fakeHistory) Put(absPath string, entry domain.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[absPath] = entry.ProducingAttributes
	return nil
}

func (h *fakeHistory) UpdateProducingAttributes(absPath, newAttrs string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prior, existed := h.entries[absPath]
	h.entries[absPath] = newAttrs
	h.updates++
	return existed && prior != newAttrs, nil
}

func (h *fakeHistory) Flush() error { return nil }

func newDepCache(t *testing.T, baseDir string) ports.DependencyCache {
	t.Helper()
	store := depcache.NewStore(nil)
	require.NoError(t, store.AddPartition(baseDir, filepath.Join(baseDir, "depcache.gob")))
	return store
}

// TestCompute_ColdBuildSwapsHistoryUnconditionally exercises scenario S1's
// history-swap half: even when an action's produced item does not exist
// yet, the action-history fingerprint is still recorded for that item
// (spec step 2 runs unconditionally, before the existence check).
func TestCompute_ColdBuildSwapsHistoryUnconditionally(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.bin")
	srcPath := filepath.Join(dir, "in.src")
	touch(t, srcPath, time.Now())

	a := &domain.Action{
		Type:              domain.ActionLink,
		CommandPath:       "tool",
		CommandArguments:  "-o out.bin in.src",
		CommandVersion:    "1",
		PrerequisiteItems: []*domain.FileItem{item(srcPath)},
		ProducedItems:     []*domain.FileItem{item(outPath)},
		UseActionHistory:  true,
	}

	linked, err := actiongraph.Link([]*domain.Action{a})
	require.NoError(t, err)

	hist := newFakeHistory()
	depCache := newDepCache(t, dir)

	outdatedActions, err := outdated.Compute(context.Background(), linked, hist, depCache, outdated.Options{})
	require.NoError(t, err)
	require.Len(t, outdatedActions, 1)

	hist.mu.Lock()
	recorded, ok := hist.entries[outPath]
	hist.mu.Unlock()
	require.True(t, ok, "history must be swapped even though out.bin did not exist yet")
	require.Equal(t, a.ProducingAttributes(), recorded)
}

// TestCompute_IdempotentSecondPass exercises property 6: once an action's
// produced item exists, its prerequisites are no newer than it, and
// history already reflects its current fingerprint, a second pass marks
// nothing outdated.
func TestCompute_IdempotentSecondPass(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.bin")
	srcPath := filepath.Join(dir, "in.src")

	base := time.Now().Add(-time.Hour)
	touch(t, srcPath, base)
	touch(t, outPath, base.Add(time.Minute))

	a := &domain.Action{
		Type:              domain.ActionLink,
		CommandPath:       "tool",
		CommandArguments:  "-o out.bin in.src",
		CommandVersion:    "1",
		PrerequisiteItems: []*domain.FileItem{item(srcPath)},
		ProducedItems:     []*domain.FileItem{item(outPath)},
		UseActionHistory:  true,
	}

	hist := newFakeHistory()
	require.NoError(t, hist.Put(outPath, domain.HistoryEntry{ProducingAttributes: a.ProducingAttributes()}))
	depCache := newDepCache(t, dir)

	linked, err := actiongraph.Link([]*domain.Action{a})
	require.NoError(t, err)
	outdatedActions, err := outdated.Compute(context.Background(), linked, hist, depCache, outdated.Options{})
	require.NoError(t, err)
	require.Empty(t, outdatedActions)
}

// TestCompute_TimestampMonotonicity exercises property 7: a prerequisite
// touched to more than the 1s network-copy-slack after last_execution_time
// marks the action outdated; touched to within the slack does not.
func TestCompute_TimestampMonotonicity(t *testing.T) {
	run := func(t *testing.T, prereqOffset time.Duration) bool {
		dir := t.TempDir()
		outPath := filepath.Join(dir, "out.bin")
		srcPath := filepath.Join(dir, "in.src")

		base := time.Now().Add(-time.Hour)
		touch(t, outPath, base)
		touch(t, srcPath, base.Add(prereqOffset))

		a := &domain.Action{
			Type:              domain.ActionLink,
			CommandPath:       "tool",
			CommandArguments:  "-o out.bin in.src",
			CommandVersion:    "1",
			PrerequisiteItems: []*domain.FileItem{item(srcPath)},
			ProducedItems:     []*domain.FileItem{item(outPath)},
		}

		linked, err := actiongraph.Link([]*domain.Action{a})
		require.NoError(t, err)

		hist := newFakeHistory()
		depCache := newDepCache(t, dir)
		outdatedActions, err := outdated.Compute(context.Background(), linked, hist, depCache, outdated.Options{})
		require.NoError(t, err)
		return len(outdatedActions) == 1
	}

	require.True(t, run(t, 2*time.Second), "touching 2s after last_execution_time must mark outdated")
	require.False(t, run(t, 500*time.Millisecond), "touching 0.5s after last_execution_time must not mark outdated")
}

// TestCompute_DependencyListHeaderDiscovery exercises scenario S3 and the
// dependency cache's read-through-and-reparse path: an action's
// dependency_list_file names a header; touching that header well past the
// action's last execution time re-runs the action, and a cold
// DependencyCache correctly parses and caches the list rather than always
// reporting outdated.
func TestCompute_DependencyListHeaderDiscovery(t *testing.T) {
	run := func(t *testing.T, hdrOffset time.Duration) bool {
		dir := t.TempDir()
		outPath := filepath.Join(dir, "out.bin")
		srcPath := filepath.Join(dir, "in.src")
		hdrPath := filepath.Join(dir, "hdr.h")
		depListPath := filepath.Join(dir, "d.d")

		base := time.Now().Add(-time.Hour)
		touch(t, outPath, base)
		touch(t, srcPath, base)
		touch(t, hdrPath, base.Add(hdrOffset))
		require.NoError(t, os.WriteFile(depListPath, []byte("out.bin: "+hdrPath+"\n"), 0o644))

		a := &domain.Action{
			Type:               domain.ActionCompile,
			CommandPath:        "tool",
			CommandArguments:   "-o out.bin in.src",
			CommandVersion:     "1",
			PrerequisiteItems:  []*domain.FileItem{item(srcPath)},
			ProducedItems:      []*domain.FileItem{item(outPath)},
			DependencyListFile: item(depListPath),
		}

		linked, err := actiongraph.Link([]*domain.Action{a})
		require.NoError(t, err)

		hist := newFakeHistory()
		depCache := newDepCache(t, dir)
		outdatedActions, err := outdated.Compute(context.Background(), linked, hist, depCache, outdated.Options{})
		require.NoError(t, err)
		return len(outdatedActions) == 1
	}

	require.True(t, run(t, 2*time.Second), "a header touched 2s after out.bin's mtime must re-run the action")
	require.False(t, run(t, 500*time.Millisecond), "a header touched 0.5s after out.bin's mtime must not re-run the action")
}

// TestCompute_ImportLibraryExceptionChecksActualProducer exercises the
// import-library outdatedness exception: a stale timestamp on an item is
// forgiven only when it was actually produced by an action that produces
// an import library, not merely because its name ends in ".lib".
func TestCompute_ImportLibraryExceptionChecksActualProducer(t *testing.T) {
	dir := t.TempDir()
	impLibPath := filepath.Join(dir, "imp.lib")
	otherLibPath := filepath.Join(dir, "other.lib")
	cOutPath := filepath.Join(dir, "c.out")
	base := time.Now().Add(-time.Hour)

	build := func() []*domain.Action {
		producesImpLib := &domain.Action{
			Type:                  domain.ActionLink,
			CommandPath:           "librarian",
			CommandArguments:      "imp.lib",
			CommandVersion:        "1",
			ProducedItems:         []*domain.FileItem{item(impLibPath)},
			ProducesImportLibrary: true,
		}
		producesOtherLib := &domain.Action{
			Type:             domain.ActionLink,
			CommandPath:      "librarian",
			CommandArguments: "other.lib",
			CommandVersion:   "1",
			ProducedItems:    []*domain.FileItem{item(otherLibPath)},
		}
		consumer := &domain.Action{
			Type:              domain.ActionLink,
			CommandPath:       "linker",
			CommandArguments:  "-o c.out imp.lib other.lib",
			CommandVersion:    "1",
			PrerequisiteItems: []*domain.FileItem{item(impLibPath), item(otherLibPath)},
			ProducedItems:     []*domain.FileItem{item(cOutPath)},
		}
		return []*domain.Action{producesImpLib, producesOtherLib, consumer}
	}

	touch(t, impLibPath, base.Add(5*time.Second))
	touch(t, otherLibPath, base)
	touch(t, cOutPath, base)

	linked, err := actiongraph.Link(build())
	require.NoError(t, err)

	hist := newFakeHistory()
	depCache := newDepCache(t, dir)
	outdatedActions, err := outdated.Compute(context.Background(), linked, hist, depCache, outdated.Options{IgnoreOutdatedImportLibraries: true})
	require.NoError(t, err)

	require.False(t, containsCommandPath(outdatedActions, "linker"), "a stale import library's own mtime bump must be forgiven")

	touch(t, otherLibPath, base.Add(5*time.Second))
	linked, err = actiongraph.Link(build())
	require.NoError(t, err)
	outdatedActions, err = outdated.Compute(context.Background(), linked, hist, depCache, outdated.Options{IgnoreOutdatedImportLibraries: true})
	require.NoError(t, err)
	require.True(t, containsCommandPath(outdatedActions, "linker"), "a stale .lib not produced by an import-library action must not be forgiven")
}

// TestCompute_ImportLibraryExceptionRequiresLibExtension exercises the
// phase-one half of the import-library exception directly: a companion
// file produced by an import-library-producing action, but whose own
// extension isn't ".lib", is not forgiven just because its producer also
// makes an import library.
func TestCompute_ImportLibraryExceptionRequiresLibExtension(t *testing.T) {
	dir := t.TempDir()
	impLibPath := filepath.Join(dir, "imp.lib")
	impExpPath := filepath.Join(dir, "imp.exp")
	cOutPath := filepath.Join(dir, "c.out")
	base := time.Now().Add(-time.Hour)

	producesImpLib := &domain.Action{
		Type:                  domain.ActionLink,
		CommandPath:           "librarian",
		CommandArguments:      "imp.lib imp.exp",
		CommandVersion:        "1",
		ProducedItems:         []*domain.FileItem{item(impLibPath), item(impExpPath)},
		ProducesImportLibrary: true,
	}
	consumer := &domain.Action{
		Type:              domain.ActionLink,
		CommandPath:       "linker",
		CommandArguments:  "-o c.out imp.exp",
		CommandVersion:    "1",
		PrerequisiteItems: []*domain.FileItem{item(impExpPath)},
		ProducedItems:     []*domain.FileItem{item(cOutPath)},
	}

	touch(t, impLibPath, base)
	touch(t, impExpPath, base.Add(5*time.Second))
	touch(t, cOutPath, base)

	linked, err := actiongraph.Link([]*domain.Action{producesImpLib, consumer})
	require.NoError(t, err)

	hist := newFakeHistory()
	depCache := newDepCache(t, dir)
	outdatedActions, err := outdated.Compute(context.Background(), linked, hist, depCache, outdated.Options{IgnoreOutdatedImportLibraries: true})
	require.NoError(t, err)

	require.True(t, containsCommandPath(outdatedActions, "linker"), "a stale non-.lib file produced by an import-library action must not be forgiven")
}

func containsCommandPath(linked []*domain.LinkedAction, cmd string) bool {
	for _, la := range linked {
		if la.CommandPath == cmd {
			return true
		}
	}
	return false
}
