package taskbinding

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.task_binder"

func init() {
	graft.Register(graft.Node[ports.TaskBinder]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.TaskBinder, error) {
			return New(), nil
		},
	})
}
