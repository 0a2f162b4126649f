package taskbinding

import (
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Bind validates task.Parameters against the task type's schema,
// converting each supplied value to its declared cty.Type and filling in
// the declared default for any optional parameter left unset. A missing
// required parameter or a value that cannot convert to its declared type
// is reported immediately rather than deferred to run time.
func (b *Binder) Bind(task domain.TaskInfo) (domain.TaskInfo, error) {
	t, err := b.lookup(task.TaskType)
	if err != nil {
		return domain.TaskInfo{}, err
	}

	bound := make(map[string]cty.Value, len(t.schema.Parameters))
	for _, spec := range t.schema.Parameters {
		raw, supplied := task.Parameters[spec.Name]
		if !supplied {
			if spec.Required {
				return domain.TaskInfo{}, zerr.With(domain.ErrMissingParameter, "parameter", spec.Name)
			}
			bound[spec.Name] = spec.Default
			continue
		}
		val, err := convert.Convert(raw, spec.Type)
		if err != nil {
			return domain.TaskInfo{}, zerr.With(zerr.Wrap(err, "failed to convert parameter"), "parameter", spec.Name)
		}
		bound[spec.Name] = val
	}

	for name := range task.Parameters {
		if _, declared := t.schema.Param(name); !declared {
			return domain.TaskInfo{}, zerr.With(domain.ErrInvalidParameter, "parameter", name)
		}
	}

	return domain.TaskInfo{
		TaskType:   task.TaskType,
		Parameters: bound,
		Condition:  task.Condition,
		Line:       task.Line,
	}, nil
}
