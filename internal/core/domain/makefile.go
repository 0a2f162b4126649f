package domain

// MakefileVersion is the current on-disk format version for a persisted
// makefile cache entry.
const MakefileVersion = 1

// Makefile is the serialized bundle produced per target: every action the
// toolchain collaborator planned, plus enough metadata to decide later
// whether the plan is still valid for the current project state.
type Makefile struct {
	Version int

	Actions []*Action

	// ModuleOutputs maps a module name to its produced FileItem path.
	ModuleOutputs map[string]string

	// ModuleSourceFiles records, per module, the source file list this
	// plan was built against, so a later run can detect a module's file
	// set changing without re-invoking the toolchain collaborator.
	ModuleSourceFiles map[string][]string
	// AdaptiveFiles records the adaptive source file set this plan was
	// built against.
	AdaptiveFiles map[string]bool

	PreBuildTargets      []string
	PreBuildScripts      []string
	Environment          map[string]string
	AdditionalArguments  []string
	// GeneratedCodeDirs records, per module, the generated-code
	// directories this plan was built against, mirroring
	// WorkingSet.GeneratedCodeDirs so a later run can detect the
	// generated-code layout changing without re-invoking the toolchain
	// collaborator.
	GeneratedCodeDirs    map[string][]string
	ToolchainDiagnostics []string
	MemoryPerActionMB    int

	// Project, Platform and Configuration identify the descriptor this
	// makefile was built for. IsValidForSourceFiles does not compare them;
	// the caller loads the makefile under a key built from the same three
	// values.
	Project       string
	Platform      string
	Configuration string
}

// WorkingSet is the set of source files the user is currently editing
// ("adaptive source files"), used by IsValidForSourceFiles to decide
// whether a cached makefile's plan still reflects reality.
type WorkingSet struct {
	ModuleSourceFiles map[string][]string
	AdaptiveFiles     map[string]bool
	GeneratedCodeDirs map[string][]string

	// AdditionalArguments are extra toolchain arguments supplied on the
	// command line (e.g. "-DFOO=1"), compared verbatim against the
	// cached plan's AdditionalArguments by IsValidForSourceFiles.
	AdditionalArguments []string
}
