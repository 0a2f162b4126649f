package ports

import "go.forgebuild.dev/forge/internal/core/domain"

// TempStorage persists and retrieves a pipeline node's tagged output
// files between the node that writes a tag and every node that later
// reads it, independent of whether the two run as the same process.
//
//go:generate go run go.uber.org/mock/mockgen -source=temp_storage.go -destination=mocks/mock_temp_storage.go -package=mocks
type TempStorage interface {
	// Store archives the files under localRoot that belong to tagName as
	// produced by nodeName, and returns the manifest describing them.
	Store(nodeName, tagName, localRoot string, relPaths []string) (domain.TempStorageManifest, error)

	// Fetch restores the files recorded in a previously stored manifest
	// for tagName into localRoot, verifying each file's content hash.
	Fetch(tagName, localRoot string) (domain.TempStorageManifest, error)

	// Manifest returns the manifest previously stored for tagName
	// without copying any files.
	Manifest(tagName string) (domain.TempStorageManifest, bool, error)

	// IsComplete reports whether nodeName was previously marked complete,
	// for -Resume to decide whether it can be skipped.
	IsComplete(nodeName string) bool

	// MarkComplete records that nodeName finished successfully.
	MarkComplete(nodeName string) error

	// CleanLocal removes every locally archived block, manifest, and
	// completion marker.
	CleanLocal() error

	// CleanLocalNode removes nodeName's archived blocks and completion
	// marker only.
	CleanLocalNode(nodeName string) error

	// CheckLocalIntegrity recomputes the content hash of every file
	// recorded in tagNames' manifests and reports whether they still all
	// match what nodeName originally produced.
	CheckLocalIntegrity(nodeName string, tagNames []string) (bool, error)
}
