package tempstorage

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/adapters/hasher"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.temp_storage"

func init() {
	graft.Register(graft.Node[ports.TempStorage]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{hasher.NodeID},
		Run: func(ctx context.Context) (ports.TempStorage, error) {
			h, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(".forge/tempstorage", h), nil
		},
	})
}
