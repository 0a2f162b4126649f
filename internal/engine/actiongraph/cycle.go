package actiongraph

import (
	"fmt"
	"strings"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// topoSort orders linked actions so that every action follows all of its
// prerequisite actions, using an iterative worklist rather than
// recursion: start from the actions with no unresolved prerequisite
// actions, repeatedly fold in any action whose prerequisites have all
// become resolved. If a fixpoint is reached before every action is
// resolved, the unresolved remainder forms one or more cycles.
func topoSort(linked []*domain.LinkedAction) ([]*domain.LinkedAction, error) {
	resolved := make(map[*domain.LinkedAction]bool, len(linked))
	order := make([]*domain.LinkedAction, 0, len(linked))
	remaining := append([]*domain.LinkedAction{}, linked...)

	for len(remaining) > 0 {
		var next []*domain.LinkedAction
		progressed := false

		for _, la := range remaining {
			if allResolved(la.PrerequisiteActions, resolved) {
				resolved[la] = true
				order = append(order, la)
				progressed = true
				continue
			}
			next = append(next, la)
		}

		if !progressed {
			return nil, buildCycleError(next, linked)
		}
		remaining = next
	}

	return order, nil
}

func allResolved(prereqs []*domain.LinkedAction, resolved map[*domain.LinkedAction]bool) bool {
	for _, p := range prereqs {
		if !resolved[p] {
			return false
		}
	}
	return true
}

// buildCycleError enumerates the unresolved actions, each with its index
// in the original action list and the specific unresolved producers that
// keep it cyclic.
func buildCycleError(cyclic []*domain.LinkedAction, all []*domain.LinkedAction) error {
	indexOf := make(map[*domain.LinkedAction]int, len(all))
	for i, la := range all {
		indexOf[la] = i
	}
	cyclicSet := make(map[*domain.LinkedAction]bool, len(cyclic))
	for _, la := range cyclic {
		cyclicSet[la] = true
	}

	var b strings.Builder
	for _, la := range cyclic {
		var stuck []string
		for _, p := range la.PrerequisiteActions {
			if cyclicSet[p] {
				stuck = append(stuck, fmt.Sprintf("#%d %s", indexOf[p], p.CommandPath))
			}
		}
		fmt.Fprintf(&b, "#%d %s (waiting on: %s); ", indexOf[la], la.CommandPath, strings.Join(stuck, ", "))
	}

	return zerr.With(domain.ErrCycleDetected, "cycle", b.String())
}
