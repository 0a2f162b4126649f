// Package actiongraph links a flat action list into a dependency graph,
// detects cycles, reports conflicting producers, and enforces path
// length limits.
package actiongraph

import "go.forgebuild.dev/forge/internal/core/domain"

// CheckForConflicts compares two actions that both claim to produce the
// same item and returns whether they are structurally equivalent (in
// which case the duplicate is harmless — both runs of a generator task,
// say) along with the conflict mask describing which fields diverge.
func CheckForConflicts(a, b *domain.Action) (equivalent bool, mask domain.ConflictMask) {
	return a.Equivalent(b)
}
