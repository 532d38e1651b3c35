package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/grow/internal/services"
)

var (
	initMinimal bool
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:     "init [directory]",
	Aliases: []string{"i"},
	Short:   "Create a new pod",
	Long: `Create a new pod with a podspec, tool configuration, a pages
collection and a base view.

Examples:
  grow init                    # Initialize in the current directory
  grow init my-site            # Initialize in a new directory
  grow init --minimal          # Only the podspec and .grow.yml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initMinimal, "minimal", false, "only write the podspec and configuration")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing pod")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	if err := services.NewInitService().InitPod(services.InitOptions{
		Dir:     dir,
		Minimal: initMinimal,
		Force:   initForce,
	}); err != nil {
		return err
	}
	cmd.Printf("Initialized pod in %s\n", dir)
	return nil
}
