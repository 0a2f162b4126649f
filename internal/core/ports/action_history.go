package ports

import "go.forgebuild.dev/forge/internal/core/domain"

// ActionHistory records, per produced file, the command-line attributes
// that produced it on the last successful run, so later runs can detect
// that an action's effective command changed even when its mtime alone
// would not reveal it.
//
//go:generate go run go.uber.org/mock/mockgen -source=action_history.go -destination=mocks/mock_action_history.go -package=mocks
type ActionHistory interface {
	// Get returns the producing attributes last recorded for the
	// produced file at absPath, or ok=false if none.
	Get(absPath string) (entry domain.HistoryEntry, ok bool, err error)

	// Put records the producing attributes for a produced file.
	Put(absPath string, entry domain.HistoryEntry) error

	// UpdateProducingAttributes atomically swaps newAttributes into the
	// history entry for absPath and reports whether the previous value
	// differed (changed=false also when there was no previous entry).
	UpdateProducingAttributes(absPath, newAttributes string) (changed bool, err error)

	// Flush persists all partitions modified since the last Flush.
	Flush() error
}
