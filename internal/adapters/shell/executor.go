// Package shell provides the local process Executor adapter: it runs an
// Action's command line as an OS process.
package shell

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"go.forgebuild.dev/forge/internal/core/domain"
	"go.forgebuild.dev/forge/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor by invoking os/exec directly.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a process Executor that streams command output
// through logger as it runs.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{logger: logger}
}

// Name identifies this executor in diagnostics.
func (e *Executor) Name() string { return "local-process" }

// Available reports true unconditionally: a local process executor can
// always run on the current machine.
func (e *Executor) Available(ctx context.Context) bool { return true }

// Execute runs action.CommandPath with action.CommandArguments in
// action.WorkingDirectory, streaming combined output through e's logger
// and returning it alongside the process's exit code.
func (e *Executor) Execute(ctx context.Context, action *domain.Action) (ports.ExecutionResult, error) {
	start := time.Now()

	args, err := splitArguments(action.CommandArguments)
	if err != nil {
		return ports.ExecutionResult{}, zerr.With(zerr.Wrap(err, "invalid command arguments"), "command", action.CommandPath)
	}

	cmd := exec.CommandContext(ctx, action.CommandPath, args...) //nolint:gosec // action command lines are constructed by the toolchain adapter
	cmd.Dir = action.WorkingDirectory

	var buf bytes.Buffer
	cmd.Stdout = &multiWriter{buf: &buf, logger: e.logger, level: "info"}
	cmd.Stderr = &multiWriter{buf: &buf, logger: e.logger, level: "error"}

	runErr := cmd.Run()
	result := ports.ExecutionResult{
		Output:   buf.String(),
		Duration: time.Since(start).Nanoseconds(),
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		return result, zerr.With(zerr.Wrap(runErr, "command failed"), "command", action.CommandPath)
	}

	return result, nil
}

// splitArguments tokenizes a single command-line string on whitespace,
// honoring double-quoted segments, matching the shape of CommandArguments
// as stored on an Action (one flat string, not a pre-split slice).
func splitArguments(s string) ([]string, error) {
	var args []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasToken = true
		case r == ' ' && !inQuotes:
			if hasToken {
				args = append(args, cur.String())
				cur.Reset()
				hasToken = false
			}
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	if inQuotes {
		return nil, zerr.New("unterminated quoted argument")
	}
	if hasToken {
		args = append(args, cur.String())
	}
	return args, nil
}

type multiWriter struct {
	buf    *bytes.Buffer
	logger ports.Logger
	level  string
}

func (w *multiWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for _, line := range strings.Split(strings.TrimSuffix(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		if w.level == "info" {
			w.logger.Info(line)
		} else {
			w.logger.Warn(line)
		}
	}
	return len(p), nil
}
