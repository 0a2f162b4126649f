package ports

import "go.forgebuild.dev/forge/internal/core/domain"

// DependencyCache loads and persists parsed compiler dependency documents
// (.d/.txt/.json), partitioned by base directory so a workspace spanning
// several mount points keeps one archive per mount.
//
//go:generate go run go.uber.org/mock/mockgen -source=dependency_cache.go -destination=mocks/mock_dependency_cache.go -package=mocks
type DependencyCache interface {
	// TryGetDependencyInfo returns path's cached DependencyInfo, reparsing
	// the dependency-list file when absent or stale relative to its
	// current mtime.
	TryGetDependencyInfo(path string) (domain.DependencyInfo, error)

	// TryGetProducedModule returns the module name path's dependency
	// document reports as produced, reparsing path if needed.
	TryGetProducedModule(path string) (module domain.InternedString, ok bool, err error)

	// TryGetImportedModules returns the modules path's dependency document
	// reports as imported, reparsing path if needed.
	TryGetImportedModules(path string) ([]domain.ImportedModule, error)

	// TryGetDependencies returns the includes path's dependency document
	// reports, reparsing path if needed.
	TryGetDependencies(path string) ([]*domain.FileItem, error)

	// Flush persists all partitions modified since the last Flush.
	Flush() error
}
