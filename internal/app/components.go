package app

import "go.forgebuild.dev/forge/internal/core/ports"

// Components aggregates every initialized application component the CLI
// layer needs, mirroring the teacher's Components struct: a single graft
// resolution point so cmd/ignite and cmd/forge each receive exactly the
// App and Logger they need without reaching into the dependency graph
// themselves.
type Components struct {
	Ignite *IgniteApp
	Forge  *ForgeApp
	Logger ports.Logger
}
