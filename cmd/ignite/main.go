// Package main is the entry point for the ignite build tool.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/cmd/ignite/commands"
	"go.forgebuild.dev/forge/internal/app"
	"go.forgebuild.dev/forge/internal/core/domain"
	_ "go.forgebuild.dev/forge/internal/wiring"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, _, err := graft.ExecuteFor[*app.Components](ctx)
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		return 1
	}

	cli := commands.New(components.Ignite)

	if err := cli.Execute(ctx); err != nil {
		if errors.Is(err, domain.ErrEngineChangeRefused) {
			return 2
		}
		components.Logger.Error("ignite run failed", err)
		return 1
	}
	return 0
}
