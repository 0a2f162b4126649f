// Package executor provides the local parallel Executor implementation
// and the action-graph run loop shared by every Executor: sort by
// descending transitive-dependent count, run a bounded worker pool,
// cancel and skip dependents on the first failure, then re-stat and
// verify outputs.
package executor

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Local pairs a process Executor with a maximum concurrency. It has no
// Execute method of its own: RunGraph takes the executor and the
// concurrency limit directly.
type Local struct {
	run         ports.Executor
	parallelism int
}

// NewLocal returns a Local executor that delegates individual action
// invocations to run (a shell/process adapter) with the given maximum
// concurrent action count.
func NewLocal(run ports.Executor, parallelism int) *Local {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Local{run: run, parallelism: parallelism}
}

// Name identifies this executor in diagnostics.
func (l *Local) Name() string { return "local" }

// Available reports true unconditionally: the local executor can always
// run on the current machine.
func (l *Local) Available(ctx context.Context) bool { return true }

// RunGraph executes every action in linked, ordered by descending
// transitive-dependent count, running at most parallelism actions at
// once (a value below 1 runs them one at a time). On the first action
// failure it stops launching new actions, waits for in-flight actions to
// finish, and returns every error it collected joined together.
func RunGraph(ctx context.Context, exec ports.Executor, linked []*domain.LinkedAction, parallelism int) error {
	if parallelism < 1 {
		parallelism = 1
	}
	ordered := sortByTransitiveDependents(linked)

	state := newRunState(ctx, exec, ordered, parallelism)
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

// sortByTransitiveDependents returns a copy of linked sorted by
// descending TransitiveDependentCount, stable so equal-count actions
// keep their original relative (topological) order.
func sortByTransitiveDependents(linked []*domain.LinkedAction) []*domain.LinkedAction {
	ordered := append([]*domain.LinkedAction{}, linked...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TransitiveDependentCount > ordered[j].TransitiveDependentCount
	})
	return ordered
}

type result struct {
	action *domain.LinkedAction
	err    error
}

type runState struct {
	ctx         context.Context
	cancel      context.CancelFunc
	exec        ports.Executor
	all         []*domain.LinkedAction
	inDegree    map[*domain.LinkedAction]int
	dependents  map[*domain.LinkedAction][]*domain.LinkedAction
	ready       []*domain.LinkedAction
	skipped     map[*domain.LinkedAction]bool
	active      int
	resultsCh   chan result
	errs        error
	parallelism int
	mu          sync.Mutex
}

func newRunState(ctx context.Context, exec ports.Executor, ordered []*domain.LinkedAction, parallelism int) *runState {
	ctx, cancel := context.WithCancel(ctx)

	inDegree := make(map[*domain.LinkedAction]int, len(ordered))
	dependents := make(map[*domain.LinkedAction][]*domain.LinkedAction, len(ordered))
	for _, la := range ordered {
		inDegree[la] = len(la.PrerequisiteActions)
		for _, prereq := range la.PrerequisiteActions {
			dependents[prereq] = append(dependents[prereq], la)
		}
	}

	var ready []*domain.LinkedAction
	for _, la := range ordered {
		if inDegree[la] == 0 {
			ready = append(ready, la)
		}
	}

	return &runState{
		ctx:         ctx,
		cancel:      cancel,
		exec:        exec,
		all:         ordered,
		inDegree:    inDegree,
		dependents:  dependents,
		ready:       ready,
		skipped:     make(map[*domain.LinkedAction]bool),
		resultsCh:   make(chan result, len(ordered)),
		parallelism: parallelism,
	}
}

func (state *runState) isDone() bool {
	return state.active == 0 && len(state.ready) == 0
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.parallelism {
		la := state.ready[0]
		state.ready = state.ready[1:]

		if state.ctx.Err() != nil {
			state.skipDependents(la)
			continue
		}

		state.active++
		go func(la *domain.LinkedAction) {
			_, err := state.exec.Execute(state.ctx, la.Action)
			state.resultsCh <- result{action: la, err: err}
		}(la)
	}
}

func (state *runState) handleResult(res result) {
	state.active--
	if res.err != nil {
		state.errs = errors.Join(state.errs, zerr.With(zerr.Wrap(res.err, "action execution failed"), "command", res.action.CommandPath))
		state.cancel()
		state.skipDependents(res.action)
		return
	}
	for _, dep := range state.dependents[res.action] {
		state.inDegree[dep]--
		if state.inDegree[dep] == 0 {
			state.ready = append(state.ready, dep)
		}
	}
}

// skipDependents marks the transitive dependents of a failed or skipped
// action as skipped so they are never scheduled.
func (state *runState) skipDependents(la *domain.LinkedAction) {
	if state.skipped[la] {
		return
	}
	state.skipped[la] = true
	for _, dep := range state.dependents[la] {
		state.skipDependents(dep)
	}
}
