// Package fileitem wires the session-owned domain.FileItemCache into the
// dependency graph. The cache itself is pure in-memory bookkeeping
// (domain.FileItemCache); this package exists only to give it a graft
// lifecycle. No other graft node depends on it, so neither core obtains
// its FileItems through this cache.
package fileitem

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/domain"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.fileitem_cache"

func init() {
	graft.Register(graft.Node[*domain.FileItemCache]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*domain.FileItemCache, error) {
			return domain.NewFileItemCache(), nil
		},
	})
}
