package depcache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/adapters/logger"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.dependency_cache"

func init() {
	graft.Register(graft.Node[ports.DependencyCache]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.DependencyCache, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			s := NewStore(log)
			if err := s.AddPartition(".", ".forge/depcache.gob"); err != nil {
				return nil, err
			}
			return s, nil
		},
	})
}
