// Package commands implements the CLI commands for the forge build tool.
package commands

import (
	"context"

	"github.com/spf13/cobra"
	"go.forgebuild.dev/forge/internal/app"
	"go.forgebuild.dev/forge/internal/build"
)

// CLI represents the command line interface for forge.
type CLI struct {
	app     *app.ForgeApp
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a *app.ForgeApp) *CLI {
	rootCmd := &cobra.Command{
		Use:           "forge",
		Short:         "Declarative build graph pipeline runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}
