package token

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.token_store"

func init() {
	graft.Register(graft.Node[ports.TokenStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.TokenStore, error) {
			return NewStore(".forge/tokens"), nil
		},
	})
}
