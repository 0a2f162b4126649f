package logger

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.logger"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(ctx context.Context) (ports.Logger, error) {
			return New(), nil
		},
	})
}
