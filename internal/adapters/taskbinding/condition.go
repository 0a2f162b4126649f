package taskbinding

import (
	"context"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// EvalCondition parses task.Condition as an HCL expression and evaluates
// it against an EvalContext exposing each tag name as a `tags` map whose
// values are the member file paths as a cty list, plus a `count` map from
// tag name to member count. An empty condition is unconditionally true.
func (b *Binder) EvalCondition(_ context.Context, task domain.TaskInfo, fileSets map[string]domain.FileSet) (bool, error) {
	if task.Condition == "" {
		return true, nil
	}

	expr, diags := hclsyntax.ParseExpression([]byte(task.Condition), "condition", hcl.InitialPos)
	if diags.HasErrors() {
		return false, zerr.With(zerr.Wrap(diags, "failed to parse condition"), "condition", task.Condition)
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"tags":  tagsValue(fileSets),
			"count": countValue(fileSets),
		},
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return false, zerr.With(zerr.Wrap(diags, "failed to evaluate condition"), "condition", task.Condition)
	}

	boolVal, err := convertToBool(val)
	if err != nil {
		return false, zerr.With(err, "condition", task.Condition)
	}
	return boolVal, nil
}

func tagsValue(fileSets map[string]domain.FileSet) cty.Value {
	if len(fileSets) == 0 {
		return cty.MapValEmpty(cty.List(cty.String))
	}
	m := make(map[string]cty.Value, len(fileSets))
	for tag, fs := range fileSets {
		paths := fs.Slice()
		if len(paths) == 0 {
			m[tag] = cty.ListValEmpty(cty.String)
			continue
		}
		elems := make([]cty.Value, len(paths))
		for i, p := range paths {
			elems[i] = cty.StringVal(p)
		}
		m[tag] = cty.ListVal(elems)
	}
	return cty.MapVal(m)
}

func countValue(fileSets map[string]domain.FileSet) cty.Value {
	if len(fileSets) == 0 {
		return cty.MapValEmpty(cty.Number)
	}
	m := make(map[string]cty.Value, len(fileSets))
	for tag, fs := range fileSets {
		m[tag] = cty.NumberIntVal(int64(len(fs)))
	}
	return cty.MapVal(m)
}

func convertToBool(val cty.Value) (bool, error) {
	boolVal, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, zerr.Wrap(err, "condition did not evaluate to a bool")
	}
	if boolVal.IsNull() {
		return false, zerr.New("condition evaluated to null")
	}
	return boolVal.True(), nil
}
