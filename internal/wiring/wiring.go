// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.forgebuild.dev/forge/internal/adapters/config"
	_ "go.forgebuild.dev/forge/internal/adapters/depcache"
	_ "go.forgebuild.dev/forge/internal/adapters/fileitem"
	_ "go.forgebuild.dev/forge/internal/adapters/hasher"
	_ "go.forgebuild.dev/forge/internal/adapters/history"
	_ "go.forgebuild.dev/forge/internal/adapters/logger"
	_ "go.forgebuild.dev/forge/internal/adapters/makefilecache"
	_ "go.forgebuild.dev/forge/internal/adapters/shell"
	_ "go.forgebuild.dev/forge/internal/adapters/taskbinding"
	_ "go.forgebuild.dev/forge/internal/adapters/telemetry"
	_ "go.forgebuild.dev/forge/internal/adapters/telemetry/progrock"
	_ "go.forgebuild.dev/forge/internal/adapters/tempstorage"
	_ "go.forgebuild.dev/forge/internal/adapters/token"
	_ "go.forgebuild.dev/forge/internal/adapters/toolchain"
	// Register app nodes.
	_ "go.forgebuild.dev/forge/internal/app"
)
