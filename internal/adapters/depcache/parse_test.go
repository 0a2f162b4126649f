package depcache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.forgebuild.dev/forge/internal/adapters/depcache"
)

// TestParseFile_MakeRule exercises the .d parser's token grammar: a
// leading target, a colon, and zero or more prerequisite filenames with
// line-continuation backslashes and escaped spaces collapsed.
func TestParseFile_MakeRule(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.d")
	require.NoError(t, os.WriteFile(path, []byte("a.o: in.c \\\n  has\\ space.h\n"), 0o644))

	info, err := depcache.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, info.Includes, 2)
	require.Equal(t, "in.c", info.Includes[0].AbsPath)
	require.Equal(t, "has space.h", info.Includes[1].AbsPath)
}

// TestParseFile_LineList exercises scenario S3's header discovery format:
// one path per line, .tlh/.tli COM-artifact lines dropped, and doubled
// backslashes collapsed to single ones.
func TestParseFile_LineList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	data := "C:\\\\src\\\\in.h\r\n\r\nC:\\\\src\\\\artifact.tlh\r\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	info, err := depcache.ParseFile(path)
	require.NoError(t, err)
	require.Len(t, info.Includes, 1)
	require.Equal(t, `C:\src\in.h`, info.Includes[0].AbsPath)
}

// TestParseFile_JSON exercises the .json source-dependencies document
// format, including a version 1.1 named-module-interface entry.
func TestParseFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.json")
	data := `{"Version":"1.1","Data":{"ProvidedModule":"mod.core","ImportedModules":[{"Name":"mod.base","BMI":"mod.base.ifc"}],"Includes":["in.h"]}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	info, err := depcache.ParseFile(path)
	require.NoError(t, err)
	require.True(t, info.HasProducedModule)
	require.Equal(t, "mod.core", info.ProducedModule.String())
	require.Len(t, info.ImportedModules, 1)
	require.Equal(t, "mod.base", info.ImportedModules[0].Name.String())
	require.Equal(t, "mod.base.ifc", info.ImportedModules[0].BMIPath.String())
	require.Len(t, info.Includes, 1)
}
