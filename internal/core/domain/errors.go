package domain

import "go.trai.ch/zerr"

var (
	// ErrCycleDetected is returned when the action graph or pipeline graph
	// contains a dependency cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrDuplicateProducer is returned when two actions produce the same
	// item and are not structurally equivalent.
	ErrDuplicateProducer = zerr.New("duplicate producer")

	// ErrPathTooLong is returned when a produced or prerequisite item's
	// absolute path reaches the portability limit.
	ErrPathTooLong = zerr.New("path exceeds portability limit")

	// ErrMissingProducer is returned when an action's prerequisite item
	// has no action in the set that produces it and the item does not
	// already exist on disk.
	ErrMissingProducer = zerr.New("prerequisite has no producer")

	// ErrDependencyListMissing is returned when an action declares a
	// dependency list file that does not exist.
	ErrDependencyListMissing = zerr.New("dependency list file missing")

	// ErrUnsupportedDependencyVersion is returned for a .json/.md.json
	// dependency document whose Version field is not recognized.
	ErrUnsupportedDependencyVersion = zerr.New("unsupported dependency document version")

	// ErrDependencyParse is returned for a malformed .d/.txt/.json
	// dependency file.
	ErrDependencyParse = zerr.New("failed to parse dependency file")

	// ErrCacheVersionMismatch is returned when a persisted binary archive's
	// version stamp does not match the current format version.
	ErrCacheVersionMismatch = zerr.New("cache version mismatch")

	// ErrMakefileInvalid describes a loaded makefile that can no longer be
	// trusted for the current project state. IsValidForSourceFiles reports
	// that case as a false result, and no code path returns this error.
	ErrMakefileInvalid = zerr.New("makefile no longer valid")

	// ErrTargetNotFound is returned when a CORE B target name does not
	// resolve to any node in the graph.
	ErrTargetNotFound = zerr.New("target not found")

	// ErrNodeNotFound is returned when a node name does not resolve.
	ErrNodeNotFound = zerr.New("node not found")

	// ErrTagNotFound is returned when a referenced tag name has no
	// declaring node output.
	ErrTagNotFound = zerr.New("tag not found")

	// ErrUnknownTask is returned when a TaskInfo names a task type with no
	// registered binding.
	ErrUnknownTask = zerr.New("unknown task")

	// ErrMissingParameter is returned when a required task parameter is
	// absent from a TaskInfo's argument map.
	ErrMissingParameter = zerr.New("missing required parameter")

	// ErrInvalidParameter is returned when a TaskInfo supplies an argument
	// its task type's schema does not declare.
	ErrInvalidParameter = zerr.New("invalid parameter value")

	// ErrUndeclaredTagConsumed names a task consuming a tag that is neither
	// local nor a declared node input. The runtime does not check for this
	// condition, so no code path returns it.
	ErrUndeclaredTagConsumed = zerr.New("task consumes undeclared tag")

	// ErrUndeclaredTagProduced names a task producing a tag that is neither
	// local nor a declared node output. The runtime does not check for this
	// condition and no code path returns it; files a task reports under an
	// undeclared tag are not archived.
	ErrUndeclaredTagProduced = zerr.New("task produces undeclared tag")

	// ErrTokenHeld is returned when a required token is already owned by
	// another signature.
	ErrTokenHeld = zerr.New("token held by another owner")

	// ErrClobbered is returned when a node's input files are modified
	// during its own execution.
	ErrClobbered = zerr.New("input files clobbered during node execution")

	// ErrLinkOutputsMissing is returned when a Link-type action completes
	// without producing all of its declared outputs.
	ErrLinkOutputsMissing = zerr.New("link action did not produce declared outputs")

	// ErrEngineChangeRefused is returned when -NoEngineChanges is set and
	// the planned action set would modify engine files.
	ErrEngineChangeRefused = zerr.New("refusing to modify engine files")

	// ErrNoExecutorAvailable is returned by ignite run when asked for an
	// execution mode this build has no executor for: several target
	// descriptors at once, or an XGE export.
	ErrNoExecutorAvailable = zerr.New("no executor available")

	// ErrDuplicateBuildProduct is returned when a temp storage block
	// writes a file whose content hash already appears under a different
	// node's block and the relative path is not on the duplicable-output
	// list.
	ErrDuplicateBuildProduct = zerr.New("duplicate build product")

	// ErrNodeNotComplete describes a resumed pipeline run finding a node
	// that never finished. No code path returns it: with -Resume, a node
	// that is not complete, or fails its integrity check, is run again.
	ErrNodeNotComplete = zerr.New("node not complete")

	// ErrIntegrityCheckFailed is returned when a temp storage block's
	// on-disk files no longer match the hashes recorded in its manifest.
	ErrIntegrityCheckFailed = zerr.New("temp storage integrity check failed")
)
