package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// TracerNodeID identifies this adapter's graft component node.
const TracerNodeID graft.ID = "adapter.telemetry.tracer"

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Tracer, error) {
			return NewOTelTracer("forge"), nil
		},
	})
}
