package engine

import (
	"fmt"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/operator"
	"github.com/siqueiraa/labelflow/pkg/window"
)

// OperatorError wraps a failure of one operator on one frame.
type OperatorError struct {
	Operator string
	Frame    int
	Err      error
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("operator %q failed at frame %d: %v", e.Operator, e.Frame, e.Err)
}

func (e *OperatorError) Unwrap() error { return e.Err }

// DuplicateNameError is returned when two operators of one run share an
// output name.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("operator name %q is used more than once", e.Name)
}

// Run applies ops in order to an episode and returns the updated annotation
// records.
//
// prior, when non-nil, seeds the records (resuming an earlier run) and must
// be co-indexed with frames; it is copied, never modified. Each operator
// sees the output of every operator before it. An operator's results are
// committed only after it succeeds on every frame, so on error the returned
// records hold exactly the operators that completed.
func Run(frames []episode.Frame, prior []episode.Annotation, ops []operator.Operator) ([]episode.Annotation, error) {
	var records []episode.Annotation
	if prior == nil {
		records = make([]episode.Annotation, len(frames))
		for i := range records {
			records[i] = episode.Annotation{}
		}
	} else {
		if len(prior) != len(frames) {
			return nil, &window.LengthMismatchError{Frames: len(frames), Annotations: len(prior)}
		}
		records = episode.CloneAll(prior)
	}

	configured := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if _, dup := configured[op.Name()]; dup {
			return records, &DuplicateNameError{Name: op.Name()}
		}
		configured[op.Name()] = struct{}{}
	}
	isConfigured := func(name string) bool {
		_, ok := configured[name]
		return ok
	}

	// Names that have been written in this run. A configured operator's
	// resumed value from prior must not satisfy a reader declared before it.
	done := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		if err := checkInputs(op, done, isConfigured); err != nil {
			return records, err
		}

		results, err := applyOperator(op, frames, records, isConfigured)
		if err != nil {
			return records, err
		}
		for i, v := range results {
			records[i][op.Name()] = v
		}
		done[op.Name()] = struct{}{}
	}
	return records, nil
}

// checkInputs fails before any frame is evaluated when op reads the output of
// an operator scheduled later in the same run.
func checkInputs(op operator.Operator, done map[string]struct{}, configured func(string) bool) error {
	for _, in := range op.Inputs() {
		if _, ok := done[in]; ok {
			continue
		}
		if configured(in) {
			return &operator.MissingDependencyError{Operator: op.Name(), Dependency: in}
		}
	}
	return nil
}

// applyOperator evaluates op on every frame into a private buffer.
func applyOperator(op operator.Operator, frames []episode.Frame, records []episode.Annotation, configured func(string) bool) ([]any, error) {
	frameWindows, annotationWindows, err := window.BuildPair(frames, records, op.WindowSize())
	if err != nil {
		return nil, err
	}
	results := make([]any, len(frames))
	for i := range frames {
		v, err := op.Apply(frameWindows[i], annotationWindows[i])
		if err != nil {
			return nil, &OperatorError{
				Operator: op.Name(),
				Frame:    i,
				Err:      operator.ClassifyLookup(op.Name(), err, configured),
			}
		}
		results[i] = v
	}
	return results, nil
}
