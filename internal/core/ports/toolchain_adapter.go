package ports

import "go.forgebuild.dev/forge/internal/core/domain"

// ToolchainAdapter is the external collaborator that knows how to turn a
// target descriptor into a concrete action graph: the compiler/linker
// command lines, module structure, and environment for one project,
// platform, and configuration. The real adapter (a specific C++
// toolchain's rules) is out of scope; only this boundary is specified.
//
//go:generate go run go.uber.org/mock/mockgen -source=toolchain_adapter.go -destination=mocks/mock_toolchain_adapter.go -package=mocks
type ToolchainAdapter interface {
	// PlanActions returns the full set of actions needed to build the
	// given target descriptor, along with the module output map and
	// pre-build steps that belong in the resulting Makefile.
	PlanActions(project, platform, configuration string, ws domain.WorkingSet) (*domain.Makefile, error)
}
