package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/labelflow/pkg/engine"
)

func newAnnotateCommand(ctx *commandContext) *cobra.Command {
	var (
		workers    int
		episodes   []int
		loadImages bool
		noPublish  bool
	)

	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Run the pipeline over every episode of the dataset",
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
			if workers <= 0 {
				workers = cfg.Engine.Workers
			}

			rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{loadImages: loadImages, publish: !noPublish})
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					log.Printf("[Pipeline] close: %v", err)
				}
			}()

			a := engine.NewAnnotator(selectEpisodes(rt.source, episodes), rt.store, ops, rt.options(cfg, p.Name, workers))
			log.Printf("[Pipeline] Annotating %s with pipeline %s", cfg.Dataset.Dir(), p.Name)

			start := time.Now()
			done, err := a.AnnotateAll(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Annotated %d episodes with %s in %s\n", done, p.Name, time.Since(start).Round(time.Millisecond))
			return err
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent episodes (default: engine.workers)")
	cmd.Flags().IntSliceVarP(&episodes, "episode", "e", nil, "Only annotate these episode indexes")
	cmd.Flags().BoolVar(&loadImages, "images", false, "Load image columns into frames")
	cmd.Flags().BoolVar(&noPublish, "no-publish", false, "Do not publish annotation events to Kafka")
	return cmd
}
