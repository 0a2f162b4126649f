package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/internal/adapters/config"             //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/depcache"           //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/hasher"             //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/history"            //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/logger"             //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/makefilecache"      //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/shell"              //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/taskbinding"        //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/telemetry"          //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/telemetry/progrock" //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/tempstorage"        //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/token"              //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/adapters/toolchain"          //nolint:depguard // wired in app layer
	"go.forgebuild.dev/forge/internal/core/ports"
)

// IgniteNodeID identifies the CORE A App's graft component node.
const IgniteNodeID graft.ID = "app.ignite"

// ForgeNodeID identifies the CORE B App's graft component node.
const ForgeNodeID graft.ID = "app.forge"

// ComponentsNodeID identifies the aggregated Components graft node.
const ComponentsNodeID graft.ID = "app.components"

func init() {
	graft.Register(graft.Node[*IgniteApp]{
		ID:        IgniteNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			toolchain.NodeID,
			makefilecache.NodeID,
			history.NodeID,
			depcache.NodeID,
			shell.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			progrock.NodeID,
		},
		Run: runIgniteNode,
	})

	graft.Register(graft.Node[*ForgeApp]{
		ID:        ForgeNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.GraphNodeID,
			taskbinding.NodeID,
			tempstorage.NodeID,
			token.NodeID,
			hasher.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			progrock.NodeID,
		},
		Run: runForgeNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{IgniteNodeID, ForgeNodeID, logger.NodeID},
		Run:       runComponentsNode,
	})
}

func runIgniteNode(ctx context.Context) (*IgniteApp, error) {
	cfgLoader, err := graft.Dep[ports.TargetConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	toolchainAdapter, err := graft.Dep[ports.ToolchainAdapter](ctx)
	if err != nil {
		return nil, err
	}
	mfCache, err := graft.Dep[ports.MakefileCache](ctx)
	if err != nil {
		return nil, err
	}
	hist, err := graft.Dep[ports.ActionHistory](ctx)
	if err != nil {
		return nil, err
	}
	depC, err := graft.Dep[ports.DependencyCache](ctx)
	if err != nil {
		return nil, err
	}
	exec, err := graft.Dep[ports.Executor](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	vertices, err := graft.Dep[ports.VertexRecorder](ctx)
	if err != nil {
		return nil, err
	}
	return NewIgniteApp(cfgLoader, toolchainAdapter, mfCache, hist, depC, exec, log, tracer, vertices), nil
}

func runForgeNode(ctx context.Context) (*ForgeApp, error) {
	graphLoader, err := graft.Dep[ports.PipelineGraphLoader](ctx)
	if err != nil {
		return nil, err
	}
	binder, err := graft.Dep[ports.TaskBinder](ctx)
	if err != nil {
		return nil, err
	}
	storage, err := graft.Dep[ports.TempStorage](ctx)
	if err != nil {
		return nil, err
	}
	tokens, err := graft.Dep[ports.TokenStore](ctx)
	if err != nil {
		return nil, err
	}
	h, err := graft.Dep[ports.Hasher](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	vertices, err := graft.Dep[ports.VertexRecorder](ctx)
	if err != nil {
		return nil, err
	}
	return NewForgeApp(graphLoader, binder, storage, tokens, h, log, tracer, vertices, ".forge/work"), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	ignite, err := graft.Dep[*IgniteApp](ctx)
	if err != nil {
		return nil, err
	}
	forge, err := graft.Dep[*ForgeApp](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	return &Components{Ignite: ignite, Forge: forge, Logger: log}, nil
}
