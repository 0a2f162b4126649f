package actiongraph

import (
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

// Link builds the produced-item -> producer map for actions, wires each
// action's prerequisite actions, runs cycle detection, and returns the
// actions in a total order where every action follows all of its
// prerequisite actions.
func Link(actions []*domain.Action) ([]*domain.LinkedAction, error) {
	producedBy := make(map[string]*domain.Action, len(actions))

	for _, a := range actions {
		for _, item := range a.ProducedItems {
			if existing, exists := producedBy[item.AbsPath]; exists {
				if equivalent, mask := CheckForConflicts(existing, a); !equivalent {
					return nil, zerr.With(zerr.With(zerr.With(domain.ErrDuplicateProducer,
						"path", item.AbsPath), "conflict_mask", mask), "actions", dumpConflictingActions(existing, a))
				}
				continue
			}
			producedBy[item.AbsPath] = a
		}
	}

	linkedByAction := make(map[*domain.Action]*domain.LinkedAction, len(actions))
	linked := make([]*domain.LinkedAction, 0, len(actions))
	for _, a := range actions {
		la := &domain.LinkedAction{Action: a}
		linkedByAction[a] = la
		linked = append(linked, la)
	}

	for _, la := range linked {
		for _, item := range la.PrerequisiteItems {
			producer, exists := producedBy[item.AbsPath]
			if !exists {
				if item.Exists() {
					continue
				}
				return nil, zerr.With(domain.ErrMissingProducer, "path", item.AbsPath)
			}
			if producer == la.Action {
				continue
			}
			la.PrerequisiteActions = append(la.PrerequisiteActions, linkedByAction[producer])
		}
	}

	order, err := topoSort(linked)
	if err != nil {
		return nil, err
	}

	assignTransitiveDependentCounts(order)

	return order, nil
}

// assignTransitiveDependentCounts walks the already topologically sorted
// order in reverse, so every action's dependents have already had their
// own counts computed, and accumulates each action's transitive
// dependent count from its direct prerequisite actions.
func assignTransitiveDependentCounts(order []*domain.LinkedAction) {
	counts := make(map[*domain.LinkedAction]int, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		la := order[i]
		counts[la] += 0
		for _, prereq := range la.PrerequisiteActions {
			counts[prereq] += counts[la] + 1
		}
	}
	for _, la := range order {
		la.TransitiveDependentCount = counts[la]
	}
}
