// Package stats summarizes annotation values across frames and episodes.
package stats

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

// Kind of value found under a key.
type Kind string

const (
	KindScalar Kind = "scalar"
	KindVector Kind = "vector" // summarized by Euclidean norm
	KindLabel  Kind = "label"
)

// KeySummary describes one annotation key.
type KeySummary struct {
	Key     string
	Kind    Kind
	Count   int
	Missing int

	// scalar and vector keys
	Min, Max, Mean, StdDev float64

	// label keys
	Labels map[string]int
}

// LabelsByCount returns the labels from most to least frequent, ties by name.
func (s KeySummary) LabelsByCount() []string {
	out := slices.Sorted(maps.Keys(s.Labels))
	slices.SortStableFunc(out, func(a, b string) int { return s.Labels[b] - s.Labels[a] })
	return out
}

// Summarize computes one KeySummary per key over records. A key holding
// different kinds of value on different frames is an error.
func Summarize(records []episode.Annotation, keys []string) ([]KeySummary, error) {
	out := make([]KeySummary, 0, len(keys))
	for _, key := range keys {
		s, err := summarizeKey(records, key)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func summarizeKey(records []episode.Annotation, key string) (KeySummary, error) {
	s := KeySummary{Key: key}
	var values []float64

	setKind := func(k Kind, frame int) error {
		if s.Kind != "" && s.Kind != k {
			return fmt.Errorf("key %q: frame %d holds a %s, earlier frames a %s", key, frame, k, s.Kind)
		}
		s.Kind = k
		return nil
	}

	for i, rec := range records {
		v, ok := rec[key]
		if !ok || v == nil {
			s.Missing++
			continue
		}
		if label, isLabel := v.(string); isLabel {
			if err := setKind(KindLabel, i); err != nil {
				return s, err
			}
			if s.Labels == nil {
				s.Labels = map[string]int{}
			}
			s.Labels[label]++
			s.Count++
			continue
		}
		if x, err := episode.ToScalar(key, v); err == nil {
			if err := setKind(KindScalar, i); err != nil {
				return s, err
			}
			values = append(values, x)
			s.Count++
			continue
		}
		vec, err := episode.ToVector(key, v)
		if err != nil {
			return s, fmt.Errorf("frame %d: %w", i, err)
		}
		if err := setKind(KindVector, i); err != nil {
			return s, err
		}
		values = append(values, floats.Norm(vec, 2))
		s.Count++
	}

	if len(values) > 0 {
		s.Min = floats.Min(values)
		s.Max = floats.Max(values)
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
		if len(values) < 2 || math.IsNaN(s.StdDev) {
			s.StdDev = 0
		}
	}
	return s, nil
}
