// Package taskbinding implements ports.TaskBinder: it holds the registered
// schema for each task type CORE B's graph script can name, type-converts
// and defaults a task's raw parameters against that schema using go-cty,
// evaluates a task's gating condition expression with hcl/v2 over an
// hcl.EvalContext built from the node's current tag file-sets, and runs
// the bound task.
//
// Grounded on burstgridgo's internal/bggohcl (HCL-to-cty type conversion)
// and internal/bggoexpr (expression/traversal handling over hcl.Expression).
package taskbinding

import (
	"sort"
	"sync"

	"github.com/zclconf/go-cty/cty"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// TaskRunFunc is the concrete behavior a registered task type runs once its
// parameters are bound. It receives the bound parameters and a working
// directory and returns the set of relative output paths it wrote, plus
// the output tag those paths belong to (empty if the task type has no
// notion of a single destination tag, e.g. "copy").
type TaskRunFunc func(workDir string, params map[string]cty.Value, fileSets map[string]domain.FileSet) (domain.FileSet, string, error)

type registeredTask struct {
	schema domain.TaskSchema
	run    TaskRunFunc
}

// Binder implements ports.TaskBinder over an in-memory schema registry.
type Binder struct {
	mu    sync.RWMutex
	tasks map[string]registeredTask
}

// New creates a Binder with the built-in task types registered.
func New() *Binder {
	b := &Binder{tasks: make(map[string]registeredTask)}
	registerBuiltins(b)
	return b
}

// Register adds or replaces a task type's schema and run behavior.
func (b *Binder) Register(schema domain.TaskSchema, run TaskRunFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks[schema.TaskType] = registeredTask{schema: schema, run: run}
}

// Schema returns the registered schema for a task type name.
func (b *Binder) Schema(taskType string) (domain.TaskSchema, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[taskType]
	return t.schema, ok
}

// TaskTypes returns the registered task type names in sorted order.
func (b *Binder) TaskTypes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tasks))
	for name := range b.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Binder) lookup(taskType string) (registeredTask, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[taskType]
	if !ok {
		return registeredTask{}, zerr.With(domain.ErrUnknownTask, "task_type", taskType)
	}
	return t, nil
}
