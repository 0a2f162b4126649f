package ports

import (
	"context"

	"go.forgebuild.dev/forge/internal/core/domain"
)

// Executor runs a single Action's command line to completion.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Name identifies this executor implementation in diagnostics.
	Name() string

	// Available reports whether this executor can run in the current
	// environment (e.g. a remote build farm reachable, local CPU count).
	Available(ctx context.Context) bool

	// Execute runs action and returns its captured stdout+stderr and any
	// execution error. A non-nil error with a non-nil exit status means
	// the command ran and failed; a non-nil error with a nil exit status
	// means the executor itself could not launch it.
	Execute(ctx context.Context, action *domain.Action) (ExecutionResult, error)
}

// ExecutionResult carries one action's completed-process outcome.
type ExecutionResult struct {
	ExitCode int
	Output   string
	Duration int64 // nanoseconds
}
