package toolchain

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.toolchain"

func init() {
	graft.Register(graft.Node[ports.ToolchainAdapter]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ToolchainAdapter, error) {
			return NewStub(".forge/out"), nil
		},
	})
}
