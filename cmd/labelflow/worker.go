package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/labelflow/pkg/engine"
	"github.com/siqueiraa/labelflow/pkg/kafka"
	"github.com/siqueiraa/labelflow/pkg/state"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var loadImages bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Annotate episodes named by jobs on the Kafka jobs topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateWorker(); err != nil {
				return fmt.Errorf("invalid worker configuration: %w", err)
			}
			p, err := ctx.resolvePipeline(cfg)
			if err != nil {
				return err
			}
			ops, err := p.Build()
			if err != nil {
				return fmt.Errorf("build pipeline %s: %w", p.Name, err)
			}

			rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{loadImages: loadImages, publish: true})
			if err != nil {
				return err
			}
			defer func() {
				if err := rt.Close(); err != nil {
					log.Printf("[Pipeline] close: %v", err)
				}
			}()

			var offsets state.OffsetStore
			if store, ok := rt.store.(state.OffsetStore); ok {
				offsets = store
			}
			consumer, err := kafka.NewJobConsumer(cfg.Kafka, offsets)
			if err != nil {
				return err
			}
			defer consumer.Close()

			log.Printf("[Pipeline] Worker group=%s topic=%s pipeline=%s", cfg.Kafka.GroupID, cfg.Kafka.JobsTopic, p.Name)
			a := engine.NewAnnotator(rt.source, rt.store, ops, rt.options(cfg, p.Name, 1))
			return a.Serve(cmd.Context(), consumer)
		},
	}

	cmd.Flags().BoolVar(&loadImages, "images", false, "Load image columns into frames")
	return cmd
}
