package main

import (
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/labelflow/pkg/segment"
	"github.com/siqueiraa/labelflow/pkg/state"
)

func newSegmentCommand(ctx *commandContext) *cobra.Command {
	var (
		episodeIndex int
		task         string
		keys         []string
	)

	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Split an annotated episode into runs of frames sharing one task prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := state.Open(cfg)
			if err != nil {
				return fmt.Errorf("open state: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Printf("[State] close: %v", err)
				}
			}()

			records, ok, err := store.Load(cmd.Context(), episodeIndex)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("episode %d has no annotations", episodeIndex)
			}

			lines := segment.DefaultLines()
			if len(keys) > 0 {
				lines = lines[:0]
				for _, k := range keys {
					lines = append(lines, segment.Line{Label: k, Keys: []string{k}})
				}
			}
			segments, err := segment.Episode(task, records, lines)
			if err != nil {
				return fmt.Errorf("episode %d: %w", episodeIndex, err)
			}

			rows := make([][]string, 0, len(segments))
			for _, s := range segments {
				rows = append(rows, []string{
					strconv.Itoa(s.Start),
					strconv.Itoa(s.End),
					strconv.Itoa(s.Len()),
					s.Prompt,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Episode %d: %d frames, %d segments\n", episodeIndex, len(records), len(segments))
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Start", "End", "Frames", "Prompt"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&episodeIndex, "episode", "e", 0, "Episode index")
	cmd.Flags().StringVarP(&task, "task", "t", "", "Task description placed at the top of every prompt")
	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "Prompt keys, one line each (default: description, subtask and movement lines)")
	return cmd
}
