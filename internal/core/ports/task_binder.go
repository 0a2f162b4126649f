package ports

import (
	"context"

	"go.forgebuild.dev/forge/internal/core/domain"
)

// TaskBinder resolves a TaskInfo's declared task type to its schema,
// validates and type-converts its parameters, and evaluates its optional
// condition expression.
//
//go:generate go run go.uber.org/mock/mockgen -source=task_binder.go -destination=mocks/mock_task_binder.go -package=mocks
type TaskBinder interface {
	// Schema returns the registered schema for a task type name.
	Schema(taskType string) (domain.TaskSchema, bool)

	// Bind validates task.Parameters against the task type's schema,
	// applying declared defaults for absent optional parameters.
	Bind(task domain.TaskInfo) (domain.TaskInfo, error)

	// EvalCondition evaluates task.Condition against the given tag-file
	// set variables and returns whether the task should run.
	EvalCondition(ctx context.Context, task domain.TaskInfo, fileSets map[string]domain.FileSet) (bool, error)

	// Run executes task's bound parameters against the given local
	// working directory, routing fileSets in and reporting files written
	// out for outputs, along with the output tag they belong to (empty
	// if the task type has no notion of a single destination tag).
	Run(ctx context.Context, task domain.TaskInfo, workDir string, fileSets map[string]domain.FileSet) (domain.FileSet, string, error)
}
