package actiongraph_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/engine/actiongraph"
)

// TestExportAction exercises §6's action graph export shape: every field
// named by the JSON document (id, action_type, command_path,
// command_arguments, working_directory, prerequisite_items, produced_items,
// dependency_list_file, produces_import_library, group_names) round-trips
// from an Action.
func TestExportAction(t *testing.T) {
	a := &domain.Action{
		Type:                  domain.ActionLink,
		WorkingDirectory:      "/build",
		CommandPath:           "cc",
		CommandArguments:      "-o out.bin a.o",
		PrerequisiteItems:     []*domain.FileItem{item("a.o")},
		ProducedItems:         []*domain.FileItem{item("out.bin")},
		DependencyListFile:    item("out.d"),
		ProducesImportLibrary: true,
	}

	exported := actiongraph.ExportAction(a, []string{"link-phase"})

	require.Equal(t, "out.bin", exported.ID)
	require.Equal(t, "Link", exported.ActionType)
	require.Equal(t, "cc", exported.CommandPath)
	require.Equal(t, "-o out.bin a.o", exported.CommandArguments)
	require.Equal(t, "/build", exported.WorkingDirectory)
	require.Equal(t, []string{"a.o"}, exported.PrerequisiteItems)
	require.Equal(t, []string{"out.bin"}, exported.ProducedItems)
	require.Equal(t, "out.d", exported.DependencyListFile)
	require.True(t, exported.ProducesImportLibrary)
	require.Equal(t, []string{"link-phase"}, exported.GroupNames)
}

// TestExportAction_IDFallsBackToCommandPath verifies an action with no
// produced items still gets a usable id rather than an empty string.
func TestExportAction_IDFallsBackToCommandPath(t *testing.T) {
	a := &domain.Action{Type: domain.ActionBuildProject, CommandPath: "make"}
	exported := actiongraph.ExportAction(a, nil)
	require.Equal(t, "make", exported.ID)
}
