// Package app implements the application layer for both CORE A (ignite)
// and CORE B (forge): it wires the engine algorithms to their adapters
// and exposes one Run entry point per core to the CLI layer, following
// the teacher's app.App/Components split.
package app

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.forgebuild.dev/forge/internal/engine/actiongraph"
	"go.forgebuild.dev/forge/internal/engine/executor"
	"go.forgebuild.dev/forge/internal/engine/outdated"
	"go.trai.ch/zerr"
)

// IgniteOptions configures one CORE A run.
type IgniteOptions struct {
	// SkipBuild computes and reports the outdated action set without
	// executing it.
	SkipBuild bool

	// NoEngineChanges refuses to execute if any outdated action would
	// modify a file under an engine directory.
	NoEngineChanges bool

	// WriteOutdatedActions, if non-empty, dumps the outdated action set
	// as JSON to this path before execution.
	WriteOutdatedActions string

	// IgnoreJunk disables the import-library outdatedness exception.
	IgnoreJunk bool

	// SkipPreBuildTargets suppresses the log line Run writes for each of
	// the makefile's declared pre-build scripts. Run executes neither
	// pre-build targets nor pre-build scripts in either case.
	SkipPreBuildTargets bool

	// MaxNestedPathLength configures the non-fatal nested-path-length
	// warning applied to produced items under the engine root; 0 selects
	// actiongraph.DefaultMaxNestedPathLength.
	MaxNestedPathLength int

	// AdditionalArguments are extra toolchain arguments supplied on the
	// command line; a change here invalidates a cached makefile plan
	// just like a changed source file list does.
	AdditionalArguments []string

	Parallelism int
}

// IgniteApp drives CORE A's incremental action graph engine: plan (or
// load a cached plan), link, compute outdatedness, and execute.
type IgniteApp struct {
	configLoader  ports.TargetConfigLoader
	toolchain     ports.ToolchainAdapter
	makefileCache ports.MakefileCache
	history       ports.ActionHistory
	depCache      ports.DependencyCache
	exec          ports.Executor
	logger        ports.Logger
	tracer        ports.Tracer
	vertices      ports.VertexRecorder
}

// NewIgniteApp creates an IgniteApp from its resolved dependencies.
func NewIgniteApp(
	configLoader ports.TargetConfigLoader,
	toolchain ports.ToolchainAdapter,
	makefileCache ports.MakefileCache,
	history ports.ActionHistory,
	depCache ports.DependencyCache,
	exec ports.Executor,
	logger ports.Logger,
	tracer ports.Tracer,
	vertices ports.VertexRecorder,
) *IgniteApp {
	return &IgniteApp{
		configLoader:  configLoader,
		toolchain:     toolchain,
		makefileCache: makefileCache,
		history:       history,
		depCache:      depCache,
		exec:          exec,
		logger:        logger,
		tracer:        tracer,
		vertices:      vertices,
	}
}

// Run plans (or loads) the target's action graph, computes which actions
// are outdated, and executes them unless opts.SkipBuild is set.
func (a *IgniteApp) Run(ctx context.Context, opts IgniteOptions) error {
	project, platform, configuration, ws, err := a.configLoader.Load(".")
	if err != nil {
		return zerr.Wrap(err, "failed to load target descriptor")
	}
	log := a.logger.With("project", project, "platform", platform, "configuration", configuration)

	ctx, span := a.tracer.Start(ctx, "ignite.run", ports.WithGroup(project))
	defer span.End()

	ws.AdditionalArguments = opts.AdditionalArguments

	targetKey := strings.Join([]string{project, platform, configuration}, "|")

	mf, ok, err := a.makefileCache.Load(targetKey)
	if err != nil {
		return zerr.Wrap(err, "failed to load makefile cache")
	}
	if !ok || !a.makefileCache.IsValidForSourceFiles(mf, ws) {
		log.Info("planning actions via toolchain adapter")
		mf, err = a.toolchain.PlanActions(project, platform, configuration, ws)
		if err != nil {
			return zerr.Wrap(err, "failed to plan actions")
		}
		if err := a.makefileCache.Save(targetKey, mf); err != nil {
			return zerr.Wrap(err, "failed to save makefile cache")
		}
	} else {
		log.Info("reusing cached makefile")
	}

	if !opts.SkipPreBuildTargets {
		for _, script := range mf.PreBuildScripts {
			log.Info("makefile declares pre-build script, not executed", "script", script)
		}
	}

	if _, err := actiongraph.CheckPathLengths(mf.Actions, actiongraph.MaxPortablePathLength); err != nil {
		return err
	}

	engineRoot, err := os.Getwd()
	if err != nil {
		return zerr.Wrap(err, "failed to resolve engine root")
	}
	nestedLimit := opts.MaxNestedPathLength
	if nestedLimit <= 0 {
		nestedLimit = actiongraph.DefaultMaxNestedPathLength
	}
	for _, v := range actiongraph.CheckNestedLength(mf.Actions, engineRoot, nestedLimit) {
		log.Warn("produced item nested deeply under engine root", "path", v.Path, "length", v.Length)
	}

	linked, err := actiongraph.Link(mf.Actions)
	if err != nil {
		return err
	}

	outdatedActions, err := outdated.Compute(ctx, linked, a.history, a.depCache, outdated.Options{
		IgnoreOutdatedImportLibraries: !opts.IgnoreJunk,
	})
	if err != nil {
		return err
	}

	if opts.WriteOutdatedActions != "" {
		if err := writeOutdatedActions(opts.WriteOutdatedActions, mf.Environment, outdatedActions); err != nil {
			return err
		}
	}

	a.tracer.EmitPlan(ctx, actionNames(outdatedActions))

	if opts.NoEngineChanges {
		if violator, found := firstEngineChange(outdatedActions); found {
			return zerr.With(domain.ErrEngineChangeRefused, "path", violator)
		}
	}

	if opts.SkipBuild {
		log.Info("skip-build requested, not executing", "outdated_count", len(outdatedActions))
		return nil
	}

	prepared, err := outdated.PrepareForExecution(outdatedActions)
	if err != nil {
		return zerr.Wrap(err, "failed to prepare outdated actions for execution")
	}

	if err := executor.RunGraph(ctx, a.exec, prepared, opts.Parallelism); err != nil {
		span.RecordError(err)
		return zerr.Wrap(err, "build execution failed")
	}

	if err := executor.RestatAndVerify(prepared); err != nil {
		return err
	}

	if err := a.history.Flush(); err != nil {
		return zerr.Wrap(err, "failed to flush action history")
	}
	if err := a.depCache.Flush(); err != nil {
		return zerr.Wrap(err, "failed to flush dependency cache")
	}

	log.Info("build complete", "executed_count", len(outdatedActions))
	return nil
}

func actionNames(linked []*domain.LinkedAction) []string {
	names := make([]string, 0, len(linked))
	for _, la := range linked {
		names = append(names, la.CommandPath)
	}
	return names
}

// firstEngineChange reports the first produced item path under an
// "engine/" directory component, the heuristic -NoEngineChanges uses to
// recognize a self-modifying build step.
func firstEngineChange(linked []*domain.LinkedAction) (string, bool) {
	for _, la := range linked {
		for _, item := range la.ProducedItems {
			if strings.Contains(item.AbsPath, "/engine/") {
				return item.AbsPath, true
			}
		}
	}
	return "", false
}

// writeOutdatedActions dumps linked in the JSON action-graph-export
// shape (§6): an Environment map alongside the Actions array, each
// action in actiongraph.ExportedAction form.
func writeOutdatedActions(path string, environment map[string]string, linked []*domain.LinkedAction) error {
	doc := actiongraph.ExportedGraph{
		Environment: environment,
		Actions:     make([]actiongraph.ExportedAction, 0, len(linked)),
	}
	for _, la := range linked {
		doc.Actions = append(doc.Actions, actiongraph.ExportAction(la.Action, la.GroupLabels))
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode outdated action dump")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // path is an operator-supplied CLI flag value
		return zerr.Wrap(err, "failed to write outdated action dump")
	}
	return nil
}
