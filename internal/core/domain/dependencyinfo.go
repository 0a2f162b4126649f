package domain

import "time"

// ImportedModule is one module imported by a translation unit, as
// recorded in a compiler-emitted dependency document.
type ImportedModule struct {
	Name InternedString
	// BMIPath is the path to the module's binary-module-interface file.
	// Empty for version "1.0" documents, which carry names only.
	BMIPath InternedString
}

// DependencyInfo is the parsed, cached representation of one compiler-
// emitted dependency file (.d, .txt, or .json/.md.json).
type DependencyInfo struct {
	// ParsedAt is the dependency file's last-write time at parse time,
	// used to decide whether the cached entry is stale.
	ParsedAt time.Time

	// ProducedModule is the module name this translation unit provides,
	// if any.
	ProducedModule    InternedString
	HasProducedModule bool

	ImportedModules []ImportedModule

	Includes []*FileItem
}

// DependencyCacheVersion is the current on-disk format version for a
// persisted dependency-cache partition.
const DependencyCacheVersion = 3

// DependencyPartitionArchive is the serializable shape of one dependency
// cache partition.
type DependencyPartitionArchive struct {
	Version int
	BaseDir string
	Entries map[string]DependencyEntryArchive
}

// DependencyEntryArchive is the gob-serializable projection of a
// DependencyInfo (FileItems are stored as plain path strings).
type DependencyEntryArchive struct {
	ParsedAt          time.Time
	ProducedModule    string
	HasProducedModule bool
	ImportedModules   []ImportedModuleArchive
	Includes          []string
}

// ImportedModuleArchive is the gob-serializable projection of an
// ImportedModule.
type ImportedModuleArchive struct {
	Name    string
	BMIPath string
}
