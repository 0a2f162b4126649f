package history

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/adapters/logger"
	"go.forgebuild.dev/forge/internal/core/ports"
)

// NodeID identifies this adapter's graft component node.
const NodeID graft.ID = "adapter.action_history"

func init() {
	graft.Register(graft.Node[ports.ActionHistory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.ActionHistory, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewStore(ancestorMountResolver(DefaultMountPoints()), log), nil
		},
	})
}

// DefaultMountPoints returns the mount points used when no explicit
// configuration overrides them: the absolute working directory is the
// only one. No separate engine-root mount point is returned.
func DefaultMountPoints() []string {
	wd, err := filepathAbs(".")
	if err != nil {
		return nil
	}
	return []string{wd}
}

func filepathAbs(p string) (string, error) {
	return filepath.Abs(p)
}

// ancestorMountResolver builds the resolve func NewStore needs: it
// routes absPath to the longest mount point that is an ancestor of it,
// storing that partition's archive as "<mountPoint>/.forge/history.gob".
func ancestorMountResolver(mountPoints []string) func(absPath string) (string, string) {
	return func(absPath string) (string, string) {
		best := ""
		for _, mp := range mountPoints {
			if strings.HasPrefix(absPath, mp) && len(mp) > len(best) {
				best = mp
			}
		}
		if best == "" && len(mountPoints) > 0 {
			best = mountPoints[0]
		}
		return best, filepath.Join(best, ".forge", "history.gob")
	}
}
