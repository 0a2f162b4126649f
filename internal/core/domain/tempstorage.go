package domain

import "time"

// TempStorageBlockVersion is the current on-disk format version for a
// persisted temp-storage manifest.
const TempStorageBlockVersion = 1

// TempStorageFile is one file recorded in a node's temp-storage block: its
// relative path (relative to the node's output root), size, and content
// hash.
type TempStorageFile struct {
	RelativePath string
	Length       int64
	ContentHash  string
}

// TempStorageManifest is the persisted record of one node's produced tag
// output: the set of files it wrote, content-addressed so a later node
// reading the same tag can verify nothing was clobbered or lost between
// the write and the read.
type TempStorageManifest struct {
	Version int

	NodeName string
	TagName  string

	WrittenAt time.Time

	Files []TempStorageFile

	// TotalLength is the sum of all Files[i].Length, cached for quick
	// quota reporting.
	TotalLength int64
}

// DuplicableOutputs is the authoritative list of relative output paths
// exempt from the duplicate-build-product check (e.g. shared third-party
// redistributables copied verbatim by several nodes): when a stored
// file's content hash already belongs to a different node's block, the
// store rejects it with ErrDuplicateBuildProduct unless its relative path
// is on this list.
type DuplicableOutputs map[string]bool
