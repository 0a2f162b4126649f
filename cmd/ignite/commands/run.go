package commands

import (
	"github.com/spf13/cobra"
	"go.forgebuild.dev/forge/internal/app"
	"go.forgebuild.dev/forge/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [target...]",
		Short: "Plan and execute the outdated action set for the current target",
		Long: "Plan and execute the outdated action set for the current target.\n" +
			"The target descriptor is always read from the current working directory; " +
			"a single target argument is accepted but not used, and more than one is rejected.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return zerr.With(domain.ErrNoExecutorAvailable, "reason", "merging multiple target descriptors into one action graph is not supported by this build")
			}
			xgeExport, _ := cmd.Flags().GetBool("xge-export")
			if xgeExport {
				return zerr.With(domain.ErrNoExecutorAvailable, "reason", "XGE export requires a distributed executor backend, which is out of scope for this build")
			}
			skipBuild, _ := cmd.Flags().GetBool("skip-build")
			noEngineChanges, _ := cmd.Flags().GetBool("no-engine-changes")
			writeOutdated, _ := cmd.Flags().GetString("write-outdated-actions")
			ignoreJunk, _ := cmd.Flags().GetBool("ignore-junk")
			skipPreBuild, _ := cmd.Flags().GetBool("skip-pre-build-targets")
			parallelism, _ := cmd.Flags().GetInt("parallelism")
			maxNestedPathLength, _ := cmd.Flags().GetInt("max-nested-path-length")
			additionalArguments, _ := cmd.Flags().GetStringArray("additional-argument")
			return c.app.Run(cmd.Context(), app.IgniteOptions{
				SkipBuild:            skipBuild,
				NoEngineChanges:      noEngineChanges,
				WriteOutdatedActions: writeOutdated,
				IgnoreJunk:           ignoreJunk,
				SkipPreBuildTargets:  skipPreBuild,
				MaxNestedPathLength:  maxNestedPathLength,
				AdditionalArguments:  additionalArguments,
				Parallelism:          parallelism,
			})
		},
	}
	cmd.Flags().Bool("skip-build", false, "Compute and report the outdated action set without executing it")
	cmd.Flags().Bool("xge-export", false, "Export the action graph to a distributed executor (unsupported)")
	cmd.Flags().Bool("no-engine-changes", false, "Refuse to execute if an outdated action would modify an engine file")
	cmd.Flags().String("write-outdated-actions", "", "Dump the outdated action set as JSON to this path")
	cmd.Flags().Bool("ignore-junk", false, "Disable the import-library outdatedness exception")
	cmd.Flags().Bool("skip-pre-build-targets", false, "Do not log the makefile's declared pre-build scripts (they are never executed)")
	cmd.Flags().Int("parallelism", 0, "Maximum concurrent actions (0 selects a runtime default)")
	cmd.Flags().Int("max-nested-path-length", 0, "Warn (without failing) on produced items nested this deep under the engine root (0 selects a built-in default)")
	cmd.Flags().StringArray("additional-argument", nil, "Extra toolchain argument; repeat for multiple. A change here invalidates a cached makefile plan")
	return cmd
}
