package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/labelflow/pkg/operator"
)

func newOperatorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "operators",
		Short: "List the operator types a pipeline can use",
		RunE: func(cmd *cobra.Command, args []string) error {
			types := operator.Types()
			rows := make([][]string, 0, len(types))
			for _, t := range types {
				rows = append(rows, []string{t})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Type"}, rows, nil))
			return nil
		},
	}
}

func newPipelineCommand(ctx *commandContext) *cobra.Command {
	pipelineCmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Pipeline utilities",
	}

	pipelineCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the operators of the selected pipeline in run order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			p, err := ctx.resolvePipeline(cfg)
			if err != nil {
				return err
			}
			ops, err := p.Build()
			if err != nil {
				return fmt.Errorf("build pipeline %s: %w", p.Name, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", p.Name, p.Description)
			rows := make([][]string, 0, len(ops))
			for i, op := range ops {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					op.Name(),
					op.Type(),
					strconv.Itoa(op.WindowSize()),
					strings.Join(op.Inputs(), ", "),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Name", "Type", "Window", "Inputs"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	})

	return pipelineCmd
}
