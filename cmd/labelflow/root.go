package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "labelflow",
		Short:         "Annotate robot teleoperation episodes with windowed operators",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")
	flags.StringVarP(&ctx.pipelineFlag, "pipeline", "p", "", "Pipeline file, or a pipeline name from --pipelines (default: built-in dual_arm preset)")
	flags.StringVar(&ctx.pipelinesDir, "pipelines", "", "Directory of pipeline files")
	flags.StringVar(&ctx.repoFlag, "repo-id", "", "Dataset repo id, overrides dataset.repo_id")
	flags.StringVar(&ctx.rootFlag, "root", "", "Dataset root directory, overrides dataset.root")

	rootCmd.AddCommand(newAnnotateCommand(ctx))
	rootCmd.AddCommand(newWorkerCommand(ctx))
	rootCmd.AddCommand(newEnqueueCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newSegmentCommand(ctx))
	rootCmd.AddCommand(newSynthCommand(ctx))
	rootCmd.AddCommand(newOperatorsCommand())
	rootCmd.AddCommand(newPipelineCommand(ctx))

	return rootCmd
}
