package domain

import "github.com/zclconf/go-cty/cty"

// TaskParameterSpec declares one named parameter a task type accepts: its
// cty type and whether it must be supplied.
type TaskParameterSpec struct {
	Name     string
	Type     cty.Type
	Required bool
	Default  cty.Value
}

// TaskSchema is the declared shape of a task type: the parameters it
// accepts. Schemas are registered per task type name by the adapter that
// implements that task (internal/adapters/taskbinding).
type TaskSchema struct {
	TaskType   string
	Parameters []TaskParameterSpec
}

// Param looks up a parameter spec by name.
func (s TaskSchema) Param(name string) (TaskParameterSpec, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return TaskParameterSpec{}, false
}

// TaskInfo is one bound task call inside a Node: a task type name plus its
// resolved parameter values and an optional gating condition expression.
type TaskInfo struct {
	TaskType string

	// Parameters holds already-evaluated argument values, keyed by
	// parameter name.
	Parameters map[string]cty.Value

	// Condition, if non-empty, is an HCL expression string; the task only
	// runs when it evaluates true. Empty means unconditional.
	Condition string

	Line int
}
