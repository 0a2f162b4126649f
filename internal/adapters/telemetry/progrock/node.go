package progrock

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.telemetry.vertex_recorder"

func init() {
	graft.Register(graft.Node[ports.VertexRecorder]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.VertexRecorder, error) {
			return New(), nil
		},
	})
}
