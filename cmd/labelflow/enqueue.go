package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/labelflow/pkg/duck"
	"github.com/siqueiraa/labelflow/pkg/kafka"
)

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var episodes []int

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Put annotation jobs on the Kafka jobs topic",
		Long:  "Enqueue one job per episode. Without --episode every episode in the dataset is enqueued.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Kafka.Enabled() {
				return fmt.Errorf("kafka brokers are required")
			}

			if len(episodes) == 0 {
				src, err := duck.NewParquetSource(cfg.Dataset.Dir(), duck.Options{ImagePrefix: cfg.Dataset.ImagePrefix})
				if err != nil {
					return err
				}
				refs, err := src.List(cmd.Context())
				src.Close()
				if err != nil {
					return err
				}
				for _, ref := range refs {
					episodes = append(episodes, ref.Index)
				}
			}
			if len(episodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No episodes to enqueue")
				return nil
			}

			producer, err := kafka.NewJobProducer(cfg.Kafka)
			if err != nil {
				return err
			}
			defer func() {
				if err := producer.Close(); err != nil {
					log.Printf("[Kafka] close producer: %v", err)
				}
			}()

			if err := producer.Enqueue(cmd.Context(), episodes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %d jobs on %s\n", len(episodes), cfg.Kafka.JobsTopic)
			return nil
		},
	}

	cmd.Flags().IntSliceVarP(&episodes, "episode", "e", nil, "Episode indexes to enqueue")
	return cmd
}
