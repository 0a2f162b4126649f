package ports

import "go.forgebuild.dev/forge/internal/core/domain"

// MakefileCache loads and persists the per-target planned action set so
// a later run can skip re-invoking the toolchain collaborator entirely
// when nothing relevant changed.
//
//go:generate go run go.uber.org/mock/mockgen -source=makefile_cache.go -destination=mocks/mock_makefile_cache.go -package=mocks
type MakefileCache interface {
	// Load returns the persisted Makefile for the given target key, or
	// ok=false if none is cached.
	Load(targetKey string) (mf *domain.Makefile, ok bool, err error)

	// IsValidForSourceFiles reports whether mf still reflects the given
	// working set, without re-running the toolchain collaborator.
	IsValidForSourceFiles(mf *domain.Makefile, ws domain.WorkingSet) bool

	// Save persists mf under targetKey.
	Save(targetKey string, mf *domain.Makefile) error
}
