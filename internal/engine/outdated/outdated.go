// Package outdated computes which linked actions must re-run: a
// two-phase pass over the action graph, phase one per-action and
// parallel, phase two a single topological sweep.
package outdated

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.forgebuild.dev/forge/internal/engine/actiongraph"
	"golang.org/x/sync/errgroup"
)

// networkCopySlack is the mtime tolerance phase one allows between a
// prerequisite item and an action's last execution time, to absorb
// clock skew on network-mounted source trees.
const networkCopySlack = 1 * time.Second

// Options configures outdatedness computation.
type Options struct {
	// IgnoreOutdatedImportLibraries enables the import-library exception
	// in both phase one and phase two.
	IgnoreOutdatedImportLibraries bool
}

// Compute runs the two-phase outdatedness pass over an already-linked
// action list (in the topological order Link produced) and returns the
// subset that must re-run, in linked's order; PrepareForExecution
// re-links that subset into a fresh execution order.
func Compute(ctx context.Context, linked []*domain.LinkedAction, history ports.ActionHistory, depCache ports.DependencyCache, opts Options) ([]*domain.LinkedAction, error) {
	if err := phaseOne(ctx, linked, history, depCache, opts); err != nil {
		return nil, err
	}

	phaseTwo(linked, opts)

	var outdated []*domain.LinkedAction
	for _, la := range linked {
		if la.Outdated {
			outdated = append(outdated, la)
		}
	}
	return outdated, nil
}

// phaseOne considers every action independently and in parallel,
// computing each action's own outdatedness from its produced/prerequisite
// item timestamps, command-fingerprint history, and dependency list.
func phaseOne(ctx context.Context, linked []*domain.LinkedAction, history ports.ActionHistory, depCache ports.DependencyCache, opts Options) error {
	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	var mu sync.RWMutex

	for _, la := range linked {
		la := la
		g.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			outdated, err := evaluateAction(la, history, depCache, opts)
			if err != nil {
				return err
			}
			if outdated {
				mu.Lock()
				la.Outdated = true
				mu.Unlock()
			}
			return nil
		})
	}

	return g.Wait()
}

func evaluateAction(la *domain.LinkedAction, history ports.ActionHistory, depCache ports.DependencyCache, opts Options) (bool, error) {
	historyOutdated, err := checkHistory(la.Action, history)
	if err != nil {
		return true, err
	}

	lastExecutionTime, allProducedExist := lastExecutionTime(la.Action)
	if !allProducedExist {
		return true, nil
	}
	if historyOutdated {
		return true, nil
	}

	if prereqOutdated(la, lastExecutionTime, opts) {
		return true, nil
	}

	if la.DependencyListFile != nil {
		depOutdated, err := checkDependencyList(la.Action, lastExecutionTime, depCache)
		if err != nil {
			return true, err
		}
		if depOutdated {
			return true, nil
		}
	}

	return false, nil
}

// lastExecutionTime computes min(mtime) over produced items that exist,
// skipping zero-length .obj/.o outputs of Compile actions (treated as
// nonexistent to avoid sticky aborted compiles). allExist is false if any
// produced item is missing after that exception, in which case the
// caller should mark the action outdated with last_execution_time = -inf.
func lastExecutionTime(a *domain.Action) (t time.Time, allExist bool) {
	first := true
	for _, item := range a.ProducedItems {
		if !item.Exists() {
			return time.Time{}, false
		}
		if a.Type == domain.ActionCompile && item.Length() == 0 && isObjectExtension(item.AbsPath) {
			return time.Time{}, false
		}
		mt := item.ModTime()
		if first || mt.Before(t) {
			t = mt
			first = false
		}
	}
	return t, true
}

func isObjectExtension(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".obj" || ext == ".o"
}

// checkHistory swaps the new producing attributes into the action
// history and reports whether the previous value differed.
func checkHistory(a *domain.Action, history ports.ActionHistory) (bool, error) {
	outdated := false
	newAttrs := a.ProducingAttributes()
	for _, item := range a.ProducedItems {
		changed, err := history.UpdateProducingAttributes(item.AbsPath, newAttrs)
		if err != nil {
			return false, err
		}
		if changed && a.UseActionHistory && item.Exists() {
			outdated = true
		}
	}
	return outdated, nil
}

func prereqOutdated(la *domain.LinkedAction, lastExecutionTime time.Time, opts Options) bool {
	for _, item := range la.Action.PrerequisiteItems {
		if !item.Exists() {
			continue
		}
		if item.ModTime().Sub(lastExecutionTime) <= networkCopySlack {
			continue
		}
		if opts.IgnoreOutdatedImportLibraries && isImportLibraryProducedItem(la, item) {
			continue
		}
		return true
	}
	return false
}

// isImportLibraryProducedItem reports whether item was produced by one of
// la's prerequisite actions, that action produces an import library, and
// item itself is the .lib file: the phase-one half of the import-library
// exception, which forgives an import library's own mtime bump but not an
// unrelated, non-.lib file the same action happens to also produce.
func isImportLibraryProducedItem(la *domain.LinkedAction, item *domain.FileItem) bool {
	if !strings.EqualFold(filepath.Ext(item.AbsPath), ".lib") {
		return false
	}
	for _, prereq := range la.PrerequisiteActions {
		if !prereq.ProducesImportLibrary {
			continue
		}
		for _, produced := range prereq.ProducedItems {
			if produced.AbsPath == item.AbsPath {
				return true
			}
		}
	}
	return false
}

func checkDependencyList(a *domain.Action, lastExecutionTime time.Time, depCache ports.DependencyCache) (bool, error) {
	includes, err := depCache.TryGetDependencies(a.DependencyListFile.AbsPath)
	if err != nil {
		return false, err
	}
	for _, inc := range includes {
		if !inc.Exists() {
			return true, nil
		}
		if inc.ModTime().Sub(lastExecutionTime) > networkCopySlack {
			return true, nil
		}
	}
	return false, nil
}

// phaseTwo sweeps linked in its already-topological order and propagates
// outdatedness from prerequisite actions to dependents, honoring the
// import-library exception when enabled.
func phaseTwo(linked []*domain.LinkedAction, opts Options) {
	for _, la := range linked {
		if la.Outdated {
			continue
		}
		for _, prereq := range la.PrerequisiteActions {
			if !prereq.Outdated {
				continue
			}
			if opts.IgnoreOutdatedImportLibraries && isImportLibraryException(la.Action, prereq.Action) {
				continue
			}
			la.Outdated = true
			break
		}
	}
}

// isImportLibraryException reports whether prereq produces an import
// library and root's prerequisites reference none of prereq's produced
// items other than its .lib files, in which case prereq being outdated
// does not make root outdated.
func isImportLibraryException(root, prereq *domain.Action) bool {
	if !prereq.ProducesImportLibrary {
		return false
	}
	for _, produced := range prereq.ProducedItems {
		if !strings.EqualFold(filepath.Ext(produced.AbsPath), ".lib") && referencedBy(root, produced) {
			return false
		}
	}
	return true
}

func referencedBy(root *domain.Action, item *domain.FileItem) bool {
	for _, p := range root.PrerequisiteItems {
		if p.AbsPath == item.AbsPath {
			return true
		}
	}
	return false
}

// PrepareForExecution flattens the outdated action set, re-links it so
// the caller gets a fresh total order over just those actions, deletes
// every produced item of every outdated action from disk, and creates
// the directories every produced item will land in.
func PrepareForExecution(outdated []*domain.LinkedAction) ([]*domain.LinkedAction, error) {
	flat := make([]*domain.Action, 0, len(outdated))
	for _, la := range outdated {
		flat = append(flat, la.Action)
	}

	relinked, err := actiongraph.Link(flat)
	if err != nil {
		return nil, err
	}

	for _, la := range relinked {
		for _, item := range la.ProducedItems {
			if item.Exists() {
				if err := os.Remove(item.AbsPath); err != nil && !os.IsNotExist(err) {
					return nil, err
				}
				item.Reset()
			}
			if err := os.MkdirAll(filepath.Dir(item.AbsPath), 0o755); err != nil {
				return nil, err
			}
		}
	}

	return relinked, nil
}
