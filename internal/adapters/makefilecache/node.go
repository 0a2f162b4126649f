package makefilecache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/adapters/logger"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.makefile_cache"

func init() {
	graft.Register(graft.Node[ports.MakefileCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.MakefileCache, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(".forge/makefiles", log), nil
		},
	})
}
