package tempstorage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.forgebuild.dev/forge/internal/adapters/hasher"
	"go.forgebuild.dev/forge/internal/adapters/tempstorage"
	"go.forgebuild.dev/forge/internal/core/domain"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStoreThenFetch_RoundTrips(t *testing.T) {
	root := t.TempDir()
	s := tempstorage.NewStore(filepath.Join(root, "storage"), hasher.New())

	src := filepath.Join(root, "out")
	writeFile(t, src, "bin/widget", "widget contents")

	manifest, err := s.Store("build-widget", "#widget-bin", src, []string{"bin/widget"})
	require.NoError(t, err)
	require.Len(t, manifest.Files, 1)
	require.Equal(t, int64(len("widget contents")), manifest.TotalLength)

	dst := filepath.Join(root, "in")
	fetched, err := s.Fetch("#widget-bin", dst)
	require.NoError(t, err)
	require.Equal(t, manifest.Files[0].ContentHash, fetched.Files[0].ContentHash)

	data, err := os.ReadFile(filepath.Join(dst, "bin/widget"))
	require.NoError(t, err)
	require.Equal(t, "widget contents", string(data))
}

func TestStore_DuplicateProductRejectedAcrossNodes(t *testing.T) {
	root := t.TempDir()
	s := tempstorage.NewStore(filepath.Join(root, "storage"), hasher.New())

	srcA := filepath.Join(root, "a")
	writeFile(t, srcA, "shared.txt", "same bytes")
	_, err := s.Store("node-a", "#a-out", srcA, []string{"shared.txt"})
	require.NoError(t, err)

	srcB := filepath.Join(root, "b")
	writeFile(t, srcB, "shared.txt", "same bytes")
	_, err = s.Store("node-b", "#b-out", srcB, []string{"shared.txt"})
	require.ErrorIs(t, err, domain.ErrDuplicateBuildProduct)
}

func TestStore_DuplicateProductAllowedWhenDuplicable(t *testing.T) {
	root := t.TempDir()
	s := tempstorage.NewStore(filepath.Join(root, "storage"), hasher.New())
	s.SetDuplicableOutputs(domain.DuplicableOutputs{"shared.txt": true})

	srcA := filepath.Join(root, "a")
	writeFile(t, srcA, "shared.txt", "same bytes")
	_, err := s.Store("node-a", "#a-out", srcA, []string{"shared.txt"})
	require.NoError(t, err)

	srcB := filepath.Join(root, "b")
	writeFile(t, srcB, "shared.txt", "same bytes")
	_, err = s.Store("node-b", "#b-out", srcB, []string{"shared.txt"})
	require.NoError(t, err)
}

func TestManifest_UnknownTagNotOK(t *testing.T) {
	s := tempstorage.NewStore(filepath.Join(t.TempDir(), "storage"), hasher.New())
	_, ok, err := s.Manifest("#never-written")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMarkComplete_IsCompleteSurvivesAcrossInstances(t *testing.T) {
	root := filepath.Join(t.TempDir(), "storage")
	s1 := tempstorage.NewStore(root, hasher.New())
	require.False(t, s1.IsComplete("node-a"))
	require.NoError(t, s1.MarkComplete("node-a"))
	require.True(t, s1.IsComplete("node-a"))

	s2 := tempstorage.NewStore(root, hasher.New())
	require.True(t, s2.IsComplete("node-a"))
}

func TestCheckLocalIntegrity_DetectsTamperedBlock(t *testing.T) {
	root := t.TempDir()
	s := tempstorage.NewStore(filepath.Join(root, "storage"), hasher.New())

	src := filepath.Join(root, "out")
	writeFile(t, src, "bin/widget", "original contents")
	_, err := s.Store("build-widget", "#widget-bin", src, []string{"bin/widget"})
	require.NoError(t, err)

	ok, err := s.CheckLocalIntegrity("build-widget", []string{"#widget-bin"})
	require.NoError(t, err)
	require.True(t, ok)

	blockPath := filepath.Join(root, "storage", "blocks", "build-widget", "widget-bin", "bin", "widget")
	require.NoError(t, os.WriteFile(blockPath, []byte("tampered"), 0o644))

	ok, err = s.CheckLocalIntegrity("build-widget", []string{"#widget-bin"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCleanLocalNode_RemovesBlocksAndCompletion(t *testing.T) {
	root := t.TempDir()
	s := tempstorage.NewStore(filepath.Join(root, "storage"), hasher.New())

	src := filepath.Join(root, "out")
	writeFile(t, src, "bin/widget", "contents")
	_, err := s.Store("build-widget", "#widget-bin", src, []string{"bin/widget"})
	require.NoError(t, err)
	require.NoError(t, s.MarkComplete("build-widget"))

	require.NoError(t, s.CleanLocalNode("build-widget"))
	require.False(t, s.IsComplete("build-widget"))

	_, err = os.Stat(filepath.Join(root, "storage", "blocks", "build-widget"))
	require.True(t, os.IsNotExist(err))
}

func TestSharedStorage_WriteThenReadFromFreshLocal(t *testing.T) {
	root := t.TempDir()
	shared := filepath.Join(root, "shared")

	writer := tempstorage.NewStore(filepath.Join(root, "writer-local"), hasher.New())
	writer.ConfigureShared(shared, true, false)

	src := filepath.Join(root, "out")
	writeFile(t, src, "bin/widget", "shared contents")
	_, err := writer.Store("build-widget", "#widget-bin", src, []string{"bin/widget"})
	require.NoError(t, err)

	reader := tempstorage.NewStore(filepath.Join(root, "reader-local"), hasher.New())
	reader.ConfigureShared(shared, false, true)

	dst := filepath.Join(root, "in")
	manifest, err := reader.Fetch("#widget-bin", dst)
	require.NoError(t, err)
	require.Len(t, manifest.Files, 1)

	data, err := os.ReadFile(filepath.Join(dst, "bin/widget"))
	require.NoError(t, err)
	require.Equal(t, "shared contents", string(data))
}
