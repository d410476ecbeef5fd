// Package window builds the fixed-size trailing windows operators consume.
//
// For size 3 over [a b c d e] the windows are
//
//	[a a a] [a a b] [a b c] [b c d] [c d e]
//
// Near the start of a sequence the earliest in-range element is repeated as
// padding. Padding entries are deep copies, never shared with the original.
package window

import (
	"fmt"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

// Build returns one window per element of items. Every window has exactly
// max(size, 1) entries and ends with the element at its own index.
func Build[T any](items []T, size int, clone func(T) T) [][]T {
	out := make([][]T, len(items))
	if size <= 1 {
		for i := range items {
			out[i] = []T{items[i]}
		}
		return out
	}

	for i := range items {
		start := max(0, i-size+1)
		w := make([]T, 0, size)
		for pad := size - (i - start + 1); pad > 0; pad-- {
			w = append(w, clone(items[start]))
		}
		w = append(w, items[start:i+1]...)
		out[i] = w
	}
	return out
}

// LengthMismatchError reports frame and annotation sequences that are not
// co-indexed.
type LengthMismatchError struct {
	Frames      int
	Annotations int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("frames and annotations differ in length: %d != %d", e.Frames, e.Annotations)
}

// BuildPair windows frames and annotations together so the i-th frame window
// and the i-th annotation window cover the same indices.
func BuildPair(frames []episode.Frame, annotations []episode.Annotation, size int) ([][]episode.Frame, [][]episode.Annotation, error) {
	if len(frames) != len(annotations) {
		return nil, nil, &LengthMismatchError{Frames: len(frames), Annotations: len(annotations)}
	}
	fw := Build(frames, size, episode.Frame.Clone)
	aw := Build(annotations, size, episode.Annotation.Clone)
	return fw, aw, nil
}
