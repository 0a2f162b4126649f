package app

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.forgebuild.dev/forge/internal/engine/pipeline"
	"go.trai.ch/zerr"
)

// ForgeOptions configures one CORE B run.
type ForgeOptions struct {
	// Script is the path to the graph script to load.
	Script string

	// Properties are "-Set:"/"-Append:" property overrides merged over
	// the script's own declared properties.
	Properties map[string]string

	// Target names the node, agent, or trigger to resolve and run.
	Target string

	// SingleNode, if non-empty, overrides Target to run exactly one node
	// without culling any of its prerequisites.
	SingleNode string

	// Triggers are trigger names to additionally select in, beyond the
	// graph's ungated default agents.
	Triggers []string

	// SkipTriggers drops every trigger-gated agent from the run,
	// regardless of Triggers.
	SkipTriggers bool

	// SkipTrigger names triggers to exclude even if named in Triggers.
	SkipTrigger []string

	// ListOnly prints the resolved and culled node set without running
	// anything.
	ListOnly bool

	// ShowDeps additionally prints each listed node's direct tag
	// dependencies. Only meaningful with ListOnly.
	ShowDeps bool

	// ShowNotifications additionally prints the graph's declared reports
	// and the names of the nodes each one aggregates. Only meaningful with
	// ListOnly.
	ShowNotifications bool

	// Export, if non-empty, writes the culled graph (nodes, dependencies,
	// tags, triggers) as JSON to this path instead of running it.
	Export string

	// Resume skips nodes TempStorage already marked complete.
	Resume bool

	// Clean removes every locally archived temp-storage block before
	// running.
	Clean bool

	// CleanNode, if non-empty, removes only that node's archived blocks
	// before running.
	CleanNode string

	// SharedStorageDir, if non-empty, configures the shared temp-storage
	// mirror directory.
	SharedStorageDir     string
	WriteToSharedStorage bool

	// TokenSignature identifies this run when acquiring tokens; defaults
	// to a generated value if empty.
	TokenSignature string

	// SkipTargetsWithoutTokens switches the token acquisition policy from
	// fail-fast to skip-missing.
	SkipTargetsWithoutTokens bool

	Parallelism int
}

// ForgeApp drives CORE B's pipeline graph runtime: load the graph script,
// resolve and cull the requested target, and run it.
type ForgeApp struct {
	graphLoader ports.PipelineGraphLoader
	binder      ports.TaskBinder
	storage     ports.TempStorage
	tokens      ports.TokenStore
	hasher      ports.Hasher
	logger      ports.Logger
	tracer      ports.Tracer
	vertices    ports.VertexRecorder

	workRoot string
}

// NewForgeApp creates a ForgeApp from its resolved dependencies.
func NewForgeApp(
	graphLoader ports.PipelineGraphLoader,
	binder ports.TaskBinder,
	storage ports.TempStorage,
	tokens ports.TokenStore,
	hasher ports.Hasher,
	logger ports.Logger,
	tracer ports.Tracer,
	vertices ports.VertexRecorder,
	workRoot string,
) *ForgeApp {
	return &ForgeApp{
		graphLoader: graphLoader,
		binder:      binder,
		storage:     storage,
		tokens:      tokens,
		hasher:      hasher,
		logger:      logger,
		tracer:      tracer,
		vertices:    vertices,
		workRoot:    workRoot,
	}
}

// Run loads opts.Script, resolves opts.Target (or opts.SingleNode), culls
// its prerequisites, and runs the resulting node set.
func (a *ForgeApp) Run(ctx context.Context, opts ForgeOptions) error {
	graph, err := a.graphLoader.Load(opts.Script, opts.Properties)
	if err != nil {
		return zerr.Wrap(err, "failed to load graph script")
	}

	if configurer, ok := a.storage.(interface {
		ConfigureShared(dir string, writeShared, readShared bool)
	}); ok && opts.SharedStorageDir != "" {
		configurer.ConfigureShared(opts.SharedStorageDir, opts.WriteToSharedStorage, true)
	}

	if opts.Clean {
		if err := a.storage.CleanLocal(); err != nil {
			return zerr.Wrap(err, "failed to clean local temp storage")
		}
	}
	if opts.CleanNode != "" {
		if err := a.storage.CleanLocalNode(opts.CleanNode); err != nil {
			return zerr.Wrap(err, "failed to clean node's temp storage")
		}
	}

	var targets []*domain.Node
	if opts.SingleNode != "" {
		n := graph.Node(opts.SingleNode)
		if n == nil {
			return zerr.With(domain.ErrNodeNotFound, "node", opts.SingleNode)
		}
		targets = []*domain.Node{n}
	} else {
		targets, err = graph.SelectTriggers(opts.Triggers, opts.SkipTrigger, opts.SkipTriggers)
		if err != nil {
			return err
		}
		if opts.Target != "" {
			named, err := graph.ResolveTarget(opts.Target)
			if err != nil {
				return err
			}
			targets = unionNodes(targets, named)
		}
	}

	if opts.ListOnly || opts.Export != "" {
		culled, err := graph.Cull(targets)
		if err != nil {
			return err
		}
		if opts.Export != "" {
			if err := exportGraph(opts.Export, graph, culled); err != nil {
				return zerr.Wrap(err, "failed to export culled graph")
			}
		}
		if !opts.ListOnly {
			return nil
		}
		for _, n := range culled {
			a.logger.Info("would run node", "node", n.Name, "agent", n.Agent)
			if opts.ShowDeps {
				deps, err := graph.NodeDependencies(n)
				if err != nil {
					return err
				}
				for _, d := range deps {
					a.logger.Info("  depends on", "node", n.Name, "dependency", d.Name)
				}
			}
		}
		if opts.ShowNotifications {
			for _, report := range graph.Reports {
				a.logger.Info("report", "name", report.Name, "nodes", strings.Join(report.NodeNames, ","))
			}
		}
		return nil
	}

	holderID := opts.TokenSignature
	if holderID == "" {
		holderID = defaultHolderID()
	}

	policy := domain.TokenPolicyFailFast
	if opts.SkipTargetsWithoutTokens {
		policy = domain.TokenPolicySkipMissing
	}

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	rt := &pipeline.Runtime{
		Graph:       graph,
		Binder:      a.binder,
		Storage:     a.storage,
		Tokens:      a.tokens,
		Hasher:      a.hasher,
		Logger:      a.logger,
		Tracer:      a.tracer,
		Vertices:    a.vertices,
		WorkRoot:    a.workRoot,
		HolderID:    holderID,
		TokenPolicy: policy,
		Parallelism: parallelism,
		Resume:      opts.Resume,
	}

	if opts.SingleNode != "" {
		return rt.RunExact(ctx, targets)
	}
	return rt.Run(ctx, targets)
}

// unionNodes merges b into a, deduplicating by node name and preserving
// a's ordering followed by any new nodes from b.
func unionNodes(a, b []*domain.Node) []*domain.Node {
	seen := make(map[string]bool, len(a))
	out := make([]*domain.Node, 0, len(a)+len(b))
	for _, n := range a {
		if !seen[n.Name] {
			seen[n.Name] = true
			out = append(out, n)
		}
	}
	for _, n := range b {
		if !seen[n.Name] {
			seen[n.Name] = true
			out = append(out, n)
		}
	}
	return out
}

// exportGraph writes the culled node set, and the tags flowing between
// them, as a JSON document intended as input to an external orchestrator
// (§6's CORE B graph export).
func exportGraph(path string, graph *domain.PipelineGraph, culled []*domain.Node) error {
	type exportedNode struct {
		Name           string   `json:"name"`
		Agent          string   `json:"agent"`
		Inputs         []string `json:"inputs"`
		Outputs        []string `json:"outputs"`
		Dependencies   []string `json:"dependencies"`
		RequiredTokens []string `json:"requiredTokens"`
	}
	type exportedTrigger struct {
		Name       string   `json:"name"`
		AgentNames []string `json:"agentNames"`
	}
	type exportedGraph struct {
		Nodes    []exportedNode    `json:"nodes"`
		Triggers []exportedTrigger `json:"triggers"`
	}

	doc := exportedGraph{}
	for _, n := range culled {
		deps, err := graph.NodeDependencies(n)
		if err != nil {
			return err
		}
		depNames := make([]string, 0, len(deps))
		for _, d := range deps {
			depNames = append(depNames, d.Name)
		}
		doc.Nodes = append(doc.Nodes, exportedNode{
			Name:           n.Name,
			Agent:          n.Agent,
			Inputs:         n.Inputs,
			Outputs:        n.Outputs,
			Dependencies:   depNames,
			RequiredTokens: n.RequiredTokens,
		})
	}
	for _, t := range graph.Triggers {
		doc.Triggers = append(doc.Triggers, exportedTrigger{Name: t.Name, AgentNames: t.AgentNames})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode graph export")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // path is an operator-supplied CLI flag value
		return zerr.Wrap(err, "failed to write graph export")
	}
	return nil
}

func defaultHolderID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}
	return host + ":" + strconv.Itoa(os.Getpid())
}
