// Package main is the entry point for the forge build graph pipeline tool.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.forgebuild.dev/forge/cmd/forge/commands"
	"go.forgebuild.dev/forge/internal/app"
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

	cli := commands.New(components.Forge)

	if err := cli.Execute(ctx); err != nil {
		components.Logger.Error("forge run failed", err)
		return 1
	}
	return 0
}
