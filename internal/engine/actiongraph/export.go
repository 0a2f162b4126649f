package actiongraph

import (
	"encoding/json"

	"go.forgebuild.dev/forge/internal/core/domain"
)

// ExportedAction is the JSON action-graph-export shape (§6): the shape
// check_for_conflicts dumps a colliding pair in, and -WriteOutdatedActions
// dumps the outdated action set in.
type ExportedAction struct {
	ID                    string   `json:"id"`
	ActionType            string   `json:"action_type"`
	CommandPath           string   `json:"command_path"`
	CommandArguments      string   `json:"command_arguments"`
	WorkingDirectory      string   `json:"working_directory"`
	PrerequisiteItems     []string `json:"prerequisite_items"`
	ProducedItems         []string `json:"produced_items"`
	DependencyListFile    string   `json:"dependency_list_file,omitempty"`
	ProducesImportLibrary bool     `json:"produces_import_library,omitempty"`
	GroupNames            []string `json:"group_names,omitempty"`
}

// ExportAction converts a to its JSON action-graph-export shape.
// groupNames is supplied separately since it lives on LinkedAction, not
// on Action itself.
func ExportAction(a *domain.Action, groupNames []string) ExportedAction {
	id := a.CommandPath
	if len(a.ProducedItems) > 0 {
		id = a.ProducedItems[0].AbsPath
	}

	prereqs := make([]string, 0, len(a.PrerequisiteItems))
	for _, item := range a.PrerequisiteItems {
		prereqs = append(prereqs, item.AbsPath)
	}
	produced := make([]string, 0, len(a.ProducedItems))
	for _, item := range a.ProducedItems {
		produced = append(produced, item.AbsPath)
	}

	var depListFile string
	if a.DependencyListFile != nil {
		depListFile = a.DependencyListFile.AbsPath
	}

	return ExportedAction{
		ID:                    id,
		ActionType:            string(a.Type),
		CommandPath:           a.CommandPath,
		CommandArguments:      a.CommandArguments,
		WorkingDirectory:      a.WorkingDirectory,
		PrerequisiteItems:     prereqs,
		ProducedItems:         produced,
		DependencyListFile:    depListFile,
		ProducesImportLibrary: a.ProducesImportLibrary,
		GroupNames:            groupNames,
	}
}

// ExportedGraph wraps a set of exported actions with the environment they
// were planned under, per §6's action graph export document shape.
type ExportedGraph struct {
	Environment map[string]string `json:"Environment"`
	Actions     []ExportedAction  `json:"Actions"`
}

// dumpConflictingActions renders a and b in the JSON action-graph-export
// shape, for check_for_conflicts's failure report (§4.3: "dump both
// actions to a JSON-formatted pair").
func dumpConflictingActions(a, b *domain.Action) string {
	pair := []ExportedAction{ExportAction(a, nil), ExportAction(b, nil)}
	data, err := json.Marshal(pair)
	if err != nil {
		return err.Error()
	}
	return string(data)
}
