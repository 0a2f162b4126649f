package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.config.target_loader"

// GraphNodeID identifies the graph-script loader's graft component node.
const GraphNodeID graft.ID = "adapter.config.graph_loader"

func init() {
	graft.Register(graft.Node[ports.TargetConfigLoader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.TargetConfigLoader, error) {
			return NewTargetFileLoader("forge-target.yaml"), nil
		},
	})

	graft.Register(graft.Node[ports.PipelineGraphLoader]{
		ID:        GraphNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.PipelineGraphLoader, error) {
			return NewGraphFileLoader(), nil
		},
	})
}
