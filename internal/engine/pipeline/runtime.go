// Package pipeline implements CORE B's graph runtime: it culls a
// PipelineGraph down to a target's transitive prerequisites, schedules
// nodes with a bounded worker pool honoring per-agent sequencing and
// token exclusion, and drives each node's tasks through a TaskBinder
// while staging tag inputs and outputs through TempStorage. Grounded on
// the teacher's engine/scheduler.RunGraph worker-pool shape, generalized
// from an action-dependency graph to a tag-dependency one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Runtime drives one run of a PipelineGraph against a target node set.
type Runtime struct {
	Graph    *domain.PipelineGraph
	Binder   ports.TaskBinder
	Storage  ports.TempStorage
	Tokens   ports.TokenStore
	Hasher   ports.Hasher
	Logger   ports.Logger
	Tracer   ports.Tracer
	Vertices ports.VertexRecorder

	// WorkRoot is the local directory under which each node gets its own
	// working subdirectory.
	WorkRoot string

	// HolderID identifies this run when acquiring tokens.
	HolderID string

	TokenPolicy domain.TokenAcquirePolicy
	Parallelism int

	// Resume skips nodes TempStorage already marked complete, provided
	// their recorded output tags still pass an integrity check.
	Resume bool
}

// Run culls targets to their transitive prerequisites and executes the
// resulting node set, returning every error collected across all nodes
// joined together.
func (r *Runtime) Run(ctx context.Context, targets []*domain.Node) error {
	ordered, err := r.Graph.Cull(targets)
	if err != nil {
		return err
	}
	return r.runOrdered(ctx, ordered)
}

// RunExact runs exactly the given nodes, in dependency order among
// themselves, without culling in any of their prerequisites. Used for
// -SingleNode=, where the operator is relying on a prior run (or -Resume)
// having already staged the node's input tags.
func (r *Runtime) RunExact(ctx context.Context, nodes []*domain.Node) error {
	return r.runOrdered(ctx, nodes)
}

func (r *Runtime) runOrdered(ctx context.Context, ordered []*domain.Node) error {
	parallelism := r.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	unavailable, err := r.acquireRunTokens(ordered)
	if err != nil {
		return err
	}

	state := newRunState(ctx, r, ordered, parallelism)
	state.unavailableTokens = unavailable
	for !state.isDone() {
		state.schedule()
		if state.isDone() {
			break
		}
		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			if state.active == 0 {
				state.errs = errors.Join(state.errs, state.ctx.Err())
				return state.errs
			}
		}
	}
	return state.errs
}

type result struct {
	node *domain.Node
	err  error
}

type runState struct {
	ctx    context.Context
	cancel context.CancelFunc
	r      *Runtime

	all        []*domain.Node
	inDegree   map[*domain.Node]int
	dependents map[*domain.Node][]*domain.Node
	ready      []*domain.Node
	skipped    map[*domain.Node]bool
	agentBusy  map[string]bool

	// unavailableTokens names the tokens the pre-run batch acquisition
	// could not obtain under TokenPolicySkipMissing; any node requiring
	// one of them is skipped rather than launched.
	unavailableTokens map[string]bool

	active      int
	resultsCh   chan result
	errs        error
	parallelism int
	mu          sync.Mutex
}

func newRunState(ctx context.Context, r *Runtime, ordered []*domain.Node, parallelism int) *runState {
	ctx, cancel := context.WithCancel(ctx)

	inDegree := make(map[*domain.Node]int, len(ordered))
	dependents := make(map[*domain.Node][]*domain.Node, len(ordered))
	byName := make(map[string]*domain.Node, len(ordered))
	for _, n := range ordered {
		byName[n.Name] = n
	}
	for _, n := range ordered {
		deps, err := r.Graph.NodeDependencies(n)
		if err != nil {
			// Cull already validated the graph; NodeDependencies cannot
			// fail here, but guard against a future divergence.
			continue
		}
		count := 0
		for _, dep := range deps {
			if _, inSet := byName[dep.Name]; !inSet {
				continue
			}
			count++
			dependents[dep] = append(dependents[dep], n)
		}
		inDegree[n] = count
	}

	var ready []*domain.Node
	for _, n := range ordered {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	return &runState{
		ctx:         ctx,
		cancel:      cancel,
		r:           r,
		all:         ordered,
		inDegree:    inDegree,
		dependents:  dependents,
		ready:       ready,
		skipped:     make(map[*domain.Node]bool),
		agentBusy:   make(map[string]bool),
		resultsCh:   make(chan result, len(ordered)),
		parallelism: parallelism,
	}
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

// schedule launches every ready node whose agent is not already busy, up
// to the configured parallelism. Nodes whose agent is busy are left in
// the ready queue for the next pass. A node requiring a token the pre-run
// batch acquisition couldn't obtain is skipped without ever being
// launched.
func (state *runState) schedule() {
	remaining := state.ready[:0:0]
	for _, n := range state.ready {
		if state.active >= state.parallelism {
			remaining = append(remaining, n)
			continue
		}
		if state.ctx.Err() != nil {
			state.skipDependents(n)
			continue
		}
		if state.agentBusy[n.Agent] {
			remaining = append(remaining, n)
			continue
		}
		if state.tokenUnavailable(n) {
			state.r.Logger.With("node", n.Name, "agent", n.Agent).Warn("skipping node: required token unavailable")
			state.markSkipped(n)
			continue
		}

		state.agentBusy[n.Agent] = true
		state.active++
		go func(n *domain.Node) {
			err := state.r.runNode(state.ctx, n)
			state.resultsCh <- result{node: n, err: err}
		}(n)
	}
	state.ready = remaining
}

func (state *runState) tokenUnavailable(n *domain.Node) bool {
	for _, name := range n.RequiredTokens {
		if state.unavailableTokens[name] {
			return true
		}
	}
	return false
}

func (state *runState) handleResult(res result) {
	state.active--
	state.agentBusy[res.node.Agent] = false

	if res.err != nil {
		state.errs = errors.Join(state.errs, zerr.With(zerr.Wrap(res.err, "node failed"), "node", res.node.Name))
		state.cancel()
		state.skipDependents(res.node)
		return
	}
	for _, dep := range state.dependents[res.node] {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}

// markSkipped marks n and every transitive dependent as skipped, and
// advances the direct dependents whose in-degree drops to zero into the
// ready queue (mirroring a normal completion, since a skipped node still
// satisfies its dependents' ordering requirement).
func (state *runState) markSkipped(n *domain.Node) {
	state.skipDependents(n)
	for _, dep := range state.dependents[n] {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}

func (state *runState) skipDependents(n *domain.Node) {
	if state.skipped[n] {
		return
	}
	state.skipped[n] = true
	for _, dep := range state.dependents[n] {
		state.skipDependents(dep)
	}
}

// runNode executes a single node: it stages input tags, runs tasks in
// order, detects input clobbering, archives declared outputs, and marks
// the node complete. Required tokens are acquired once for the whole run
// by acquireRunTokens before any node is scheduled, not here.
func (r *Runtime) runNode(ctx context.Context, n *domain.Node) error {
	log := r.Logger.With("node", n.Name, "agent", n.Agent)

	if r.Resume && r.Storage.IsComplete(n.Name) {
		if ok, checkErr := r.Storage.CheckLocalIntegrity(n.Name, n.Outputs); checkErr == nil && ok {
			log.Info("skipping already-complete node")
			return nil
		}
		log.Warn("resumed node failed integrity check, re-running")
	}

	ctx, span := r.Tracer.Start(ctx, n.Name, ports.WithGroup(n.Agent))
	defer span.End()
	vertex := r.Vertices.Record(ctx, n.Name)

	workDir := filepath.Join(r.WorkRoot, n.Name)
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		err = zerr.Wrap(err, "failed to create node working directory")
		span.RecordError(err)
		vertex.Done(err)
		return err
	}

	fileSets, inputManifests, err := r.stageInputs(n, workDir)
	if err != nil {
		span.RecordError(err)
		vertex.Done(err)
		return err
	}

	untagged := make(domain.FileSet)
	tagged := make(map[string]domain.FileSet)
	for _, task := range n.Tasks {
		ok, err := r.Binder.EvalCondition(ctx, task, fileSets)
		if err != nil {
			span.RecordError(err)
			vertex.Done(err)
			return err
		}
		if !ok {
			continue
		}

		out, tag, err := r.Binder.Run(ctx, task, workDir, fileSets)
		if err != nil {
			span.RecordError(err)
			vertex.Done(err)
			return err
		}
		if tag == "" {
			untagged = untagged.Union(out)
		} else {
			tagged[tag] = tagged[tag].Union(out)
		}
		vertex.Log(fmt.Sprintf("task %s produced %d file(s)", task.TaskType, len(out)))
	}

	if err := r.checkClobber(workDir, inputManifests); err != nil {
		span.RecordError(err)
		vertex.Done(err)
		return err
	}

	if err := r.archiveOutputs(n, workDir, untagged, tagged); err != nil {
		span.RecordError(err)
		vertex.Done(err)
		return err
	}

	if err := r.Storage.MarkComplete(n.Name); err != nil {
		span.RecordError(err)
		vertex.Done(err)
		return err
	}

	vertex.Done(nil)
	return nil
}

// acquireRunTokens acquires, as a single batch step before any node in
// ordered is scheduled, the union of every token the node set requires.
// Per §4.7 a token is held for the lifetime of the work it gates: unlike
// the old per-node acquire/defer-release, nothing here ever releases a
// token on the run's behalf, normal completion included — a token is
// only ever freed by an explicit ports.TokenStore.Release call, which
// outside the rollback described below only tests make. Under
// TokenPolicySkipMissing, a token already held by another holder is
// recorded in unavailable rather than aborting the run; the caller skips
// any node that requires it. Under TokenPolicyFailFast, or on any other
// acquisition error, every token this call itself acquired is rolled
// back before returning, since the run as a whole never starts.
func (r *Runtime) acquireRunTokens(ordered []*domain.Node) (unavailable map[string]bool, err error) {
	seen := make(map[string]bool)
	var names []string
	for _, n := range ordered {
		for _, name := range n.RequiredTokens {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)

	unavailable = make(map[string]bool)
	var acquired []string
	for _, name := range names {
		tok := domain.Token{Name: name, HolderID: r.HolderID}
		ok, acquireErr := r.Tokens.Acquire(tok)
		if acquireErr != nil {
			r.releaseTokens(acquired)
			return nil, acquireErr
		}
		if !ok {
			if r.TokenPolicy == domain.TokenPolicySkipMissing {
				unavailable[name] = true
				continue
			}
			holder, _, _ := r.Tokens.Holder(name)
			r.releaseTokens(acquired)
			return nil, zerr.With(zerr.With(domain.ErrTokenHeld, "token", name), "holder", holder)
		}
		acquired = append(acquired, name)
	}
	return unavailable, nil
}

// releaseTokens rolls back tokens acquireRunTokens itself just acquired
// when the batch as a whole cannot proceed; it is never called once a run
// has actually started.
func (r *Runtime) releaseTokens(names []string) {
	for _, name := range names {
		if err := r.Tokens.Release(domain.Token{Name: name, HolderID: r.HolderID}); err != nil {
			r.Logger.Warn("failed to release token", "token", name, "error", err)
		}
	}
}

// stageInputs fetches each of n's declared input tags into workDir and
// returns a per-tag FileSet for condition evaluation alongside the
// fetched manifests, keyed by tag, for the post-run clobber check.
func (r *Runtime) stageInputs(n *domain.Node, workDir string) (map[string]domain.FileSet, map[string]domain.TempStorageManifest, error) {
	fileSets := make(map[string]domain.FileSet, len(n.Inputs))
	manifests := make(map[string]domain.TempStorageManifest, len(n.Inputs))

	for _, tag := range n.Inputs {
		manifest, err := r.Storage.Fetch(tag, workDir)
		if err != nil {
			return nil, nil, zerr.With(err, "tag", tag)
		}
		manifests[tag] = manifest

		var paths []string
		for _, f := range manifest.Files {
			paths = append(paths, f.RelativePath)
		}
		fileSets[tag] = domain.NewFileSet(paths)
	}
	return fileSets, manifests, nil
}

// checkClobber re-hashes every input file staged into workDir and
// compares it against the manifest it was fetched with, failing the node
// if any of its declared inputs changed underneath it while it ran. Size
// alone can't catch a same-length content tamper, so this compares
// content hashes, the same way tempstorage.Store.Fetch and
// CheckLocalIntegrity verify a file against its manifest.
func (r *Runtime) checkClobber(workDir string, manifests map[string]domain.TempStorageManifest) error {
	for tag, manifest := range manifests {
		for _, f := range manifest.Files {
			path := filepath.Join(workDir, f.RelativePath)
			if _, err := os.Stat(path); err != nil {
				return zerr.With(zerr.With(domain.ErrClobbered, "tag", tag), "path", f.RelativePath)
			}
			sum, err := r.Hasher.SumFile(path)
			if err != nil {
				return zerr.With(zerr.With(zerr.Wrap(err, "failed to hash input file"), "tag", tag), "path", f.RelativePath)
			}
			if sum != f.ContentHash {
				return zerr.With(zerr.With(domain.ErrClobbered, "tag", tag), "path", f.RelativePath)
			}
		}
	}
	return nil
}

// archiveOutputs stores each declared output tag's own partition of the
// files a node's tasks reported as produced: files a task associated
// with a specific tag (e.g. "command"'s output_tag parameter) are
// archived under that tag alone, while files from tasks with no such
// association (e.g. "copy") fall back to every declared output tag, the
// same way an un-partitioned node's single output block always worked.
func (r *Runtime) archiveOutputs(n *domain.Node, workDir string, untagged domain.FileSet, tagged map[string]domain.FileSet) error {
	if len(n.Outputs) == 0 {
		return nil
	}
	for _, tag := range n.Outputs {
		relPaths := untagged.Union(tagged[tag]).Slice()
		if _, err := r.Storage.Store(n.Name, tag, workDir, relPaths); err != nil {
			return zerr.With(err, "tag", tag)
		}
	}
	return nil
}
