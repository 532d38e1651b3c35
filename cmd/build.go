package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/grow/internal/services"
)

var buildCmd = &cobra.Command{
	Use:     "build",
	Aliases: []string{"b"},
	Short:   "Render every route to the output directory",
	Long: `Render every concrete route of the pod and write the output to the
build directory. Paths ending in "/" are written as index.html.

Examples:
  grow build                   # Build into ./build
  grow build --out dist        # Build into ./dist
  grow build --clean           # Remove the output directory first`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("out", "o", "", "output directory (default build.out_dir)")
	buildCmd.Flags().Bool("clean", false, "remove the output directory before building")
	buildCmd.Flags().Bool("quiet", false, "do not print progress")
	buildCmd.Flags().Int("workers", 0, "concurrent render batches (0 for one per CPU)")
	buildCmd.Flags().Bool("threaded", true, "render batches concurrently")

	bindFlags(buildCmd.Flags(), map[string]string{
		"build.workers":  "workers",
		"build.threaded": "threaded",
	})
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	clean, _ := cmd.Flags().GetBool("clean")
	quiet, _ := cmd.Flags().GetBool("quiet")

	opts := services.BuildOptions{OutDir: out, Clean: clean}
	if !quiet {
		opts.Progress = services.ProgressPrinter(cmd.ErrOrStderr())
	}

	result, buildErr := services.NewBuildService(cfg, logger).Build(cmd.Context(), opts)
	if result != nil {
		if err := services.PrintBuildSummary(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	}
	return buildErr
}
