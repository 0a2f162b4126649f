package taskbinding

import (
	"context"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Run dispatches task to its registered TaskRunFunc. task is assumed
// already bound (see Bind); Run does not re-validate parameter types.
// The returned tag names which output tag the produced files belong to,
// empty if the task type doesn't associate its output with one tag.
func (b *Binder) Run(_ context.Context, task domain.TaskInfo, workDir string, fileSets map[string]domain.FileSet) (domain.FileSet, string, error) {
	t, err := b.lookup(task.TaskType)
	if err != nil {
		return nil, "", err
	}
	if t.run == nil {
		return nil, "", zerr.With(zerr.With(domain.ErrUnknownTask, "task_type", task.TaskType), "reason", "no run behavior registered")
	}
	out, tag, err := t.run(workDir, task.Parameters, fileSets)
	if err != nil {
		return nil, "", zerr.With(zerr.Wrap(err, "task run failed"), "task_type", task.TaskType)
	}
	return out, tag, nil
}
