package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/labelflow/pkg/duck"
	"github.com/siqueiraa/labelflow/pkg/faker"
)

func newSynthCommand(ctx *commandContext) *cobra.Command {
	opts := faker.Options{Episodes: 10, Frames: 200}

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic dual-arm dataset under the dataset directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts.StateKey = cfg.Dataset.StatePrefix

			src, err := duck.NewParquetSource(cfg.Dataset.Dir(), duck.Options{MemoryLimit: cfg.Engine.DuckDBMemory})
			if err != nil {
				return err
			}
			defer func() {
				if err := src.Close(); err != nil {
					log.Printf("[DuckDB] close: %v", err)
				}
			}()

			if err := faker.Generate(cmd.Context(), src, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d episodes of %d frames to %s\n", opts.Episodes, opts.Frames, cfg.Dataset.Dir())
			return nil
		},
	}

	cmd.Flags().IntVarP(&opts.Episodes, "episodes", "n", opts.Episodes, "Number of episodes")
	cmd.Flags().IntVar(&opts.Frames, "frames", opts.Frames, "Frames per episode")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "Random seed")
	return cmd
}
