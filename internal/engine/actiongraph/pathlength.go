package actiongraph

import (
	"path/filepath"
	"strings"

	"go.forgebuild.dev/forge/internal/core/domain"
)

// MaxPortablePathLength is the portability limit enforced by
// CheckPathLengths (the historical Windows MAX_PATH-class limit shared
// build farms still have to respect).
const MaxPortablePathLength = 260

// DefaultMaxNestedPathLength is the nested-length limit CheckNestedLength
// applies when the caller doesn't configure one.
const DefaultMaxNestedPathLength = 200

// PathLengthViolation names one item whose absolute path exceeds the
// portability limit and the action that produces or consumes it.
type PathLengthViolation struct {
	ActionIndex int
	Path        string
	Length      int
}

// CheckPathLengths scans every prerequisite and produced item of every
// action and reports all items whose absolute path length reaches or
// exceeds limit.
func CheckPathLengths(actions []*domain.Action, limit int) ([]PathLengthViolation, error) {
	var violations []PathLengthViolation
	for i, a := range actions {
		for _, item := range allItems(a) {
			if n := len(item.AbsPath); n >= limit {
				violations = append(violations, PathLengthViolation{
					ActionIndex: i,
					Path:        item.AbsPath,
					Length:      n,
				})
			}
		}
	}
	if len(violations) > 0 {
		return violations, domain.ErrPathTooLong
	}
	return nil, nil
}

// CheckNestedLength warns, without failing the build, about produced
// items whose path relative to engineRoot exceeds limit characters: a
// softer portability signal than CheckPathLengths' absolute 260-character
// cutoff, aimed at catching deeply nested generated-output trees before
// they approach that cutoff. Items outside engineRoot are not reported.
func CheckNestedLength(actions []*domain.Action, engineRoot string, limit int) []PathLengthViolation {
	if engineRoot == "" {
		return nil
	}
	var violations []PathLengthViolation
	for i, a := range actions {
		for _, item := range a.ProducedItems {
			rel, err := filepath.Rel(engineRoot, item.AbsPath)
			if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				continue
			}
			if n := len(rel); n > limit {
				violations = append(violations, PathLengthViolation{
					ActionIndex: i,
					Path:        item.AbsPath,
					Length:      n,
				})
			}
		}
	}
	return violations
}

func allItems(a *domain.Action) []*domain.FileItem {
	items := make([]*domain.FileItem, 0, len(a.PrerequisiteItems)+len(a.ProducedItems)+len(a.DeleteItems))
	items = append(items, a.PrerequisiteItems...)
	items = append(items, a.ProducedItems...)
	items = append(items, a.DeleteItems...)
	return items
}
