package ports

import "go.forgebuild.dev/forge/internal/core/domain"

// TargetConfigLoader reads a CORE A target descriptor (project, platform,
// configuration, and any per-target YAML overrides) from a working
// directory.
//
//go:generate go run go.uber.org/mock/mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type TargetConfigLoader interface {
	// Load reads the target descriptor at cwd and returns the working
	// set it resolves to.
	Load(cwd string) (project, platform, configuration string, ws domain.WorkingSet, err error)
}

// PipelineGraphLoader reads a CORE B graph script and returns its parsed
// PipelineGraph.
type PipelineGraphLoader interface {
	// Load parses the script at path, along with any -Set/-Append
	// property overrides, into a PipelineGraph.
	Load(path string, properties map[string]string) (*domain.PipelineGraph, error)
}
