package main

import (
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/state"
	"github.com/siqueiraa/labelflow/pkg/stats"
)

const topLabels = 3

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var (
		keys     []string
		episodes []int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize stored annotations",
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

			if len(episodes) == 0 {
				if episodes, err = store.Episodes(cmd.Context()); err != nil {
					return err
				}
			}
			var records []episode.Annotation
			for _, idx := range episodes {
				recs, ok, err := store.Load(cmd.Context(), idx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("episode %d has no annotations", idx)
				}
				records = append(records, recs...)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No annotations found")
				return nil
			}

			if len(keys) == 0 {
				keys = allKeys(records)
			}
			summaries, err := stats.Summarize(records, keys)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d episodes, %d frames\n", len(episodes), len(records))
			fmt.Fprintln(out, renderTable(
				[]string{"Key", "Kind", "Count", "Missing", "Min", "Max", "Mean", "StdDev", "Labels"},
				summaryRows(summaries),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&keys, "key", "k", nil, "Annotation keys to summarize (default: all)")
	cmd.Flags().IntSliceVarP(&episodes, "episode", "e", nil, "Only these episode indexes (default: all annotated)")
	return cmd
}

func allKeys(records []episode.Annotation) []string {
	seen := map[string]struct{}{}
	var keys []string
	for _, rec := range records {
		for _, k := range rec.Keys() {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	slices.Sort(keys)
	return keys
}

func summaryRows(summaries []stats.KeySummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		row := []string{s.Key, string(s.Kind), strconv.Itoa(s.Count), strconv.Itoa(s.Missing)}
		if s.Kind == stats.KindLabel {
			row = append(row, "", "", "", "", formatLabels(s))
		} else if s.Count > 0 {
			row = append(row, formatFloat(s.Min), formatFloat(s.Max), formatFloat(s.Mean), formatFloat(s.StdDev), "")
		}
		rows = append(rows, row)
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatLabels(s stats.KeySummary) string {
	labels := s.LabelsByCount()
	parts := make([]string, 0, topLabels)
	for i, l := range labels {
		if i == topLabels {
			parts = append(parts, fmt.Sprintf("+%d more", len(labels)-topLabels))
			break
		}
		parts = append(parts, fmt.Sprintf("%s=%d", l, s.Labels[l]))
	}
	return strings.Join(parts, ", ")
}
