// Package episode holds the per-frame records an annotation run reads and
// writes: raw Frames from the recording and derived Annotations keyed by
// operator name.
package episode

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// FrameIndexKey is persisted in every annotation record.
const FrameIndexKey = "frame_index"

// Source tells which side of a window a missing key was looked up on.
type Source string

const (
	SourceFrame      Source = "frame"
	SourceAnnotation Source = "annotation"
)

// ErrKeyNotFound is wrapped by every KeyError.
var ErrKeyNotFound = errors.New("key not found")

// KeyError is returned by the accessors when a key is absent.
type KeyError struct {
	Source Source
	Key    string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s key %q not found", e.Source, e.Key)
}

func (e *KeyError) Unwrap() error { return ErrKeyNotFound }

// TypeError is returned when a key holds a value of the wrong kind.
type TypeError struct {
	Key  string
	Want string
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("key %q: expected %s, got %T", e.Key, e.Want, e.Got)
}

// Ref identifies one recorded episode and where its frames live.
type Ref struct {
	Index int
	Path  string
}

func (r Ref) String() string { return fmt.Sprintf("episode %d (%s)", r.Index, r.Path) }

// Frame is one time-step of raw recording data. Frames are treated as
// immutable once read.
type Frame struct {
	Index        int
	EpisodeIndex int
	Vectors      map[string][]float64
	Images       map[string][]byte
}

// Vector returns the named state/action vector.
func (f Frame) Vector(key string) ([]float64, error) {
	v, ok := f.Vectors[key]
	if !ok {
		return nil, &KeyError{Source: SourceFrame, Key: key}
	}
	return v, nil
}

// Clone deep-copies the frame, including image buffers.
func (f Frame) Clone() Frame {
	out := Frame{Index: f.Index, EpisodeIndex: f.EpisodeIndex}
	if f.Vectors != nil {
		out.Vectors = make(map[string][]float64, len(f.Vectors))
		for k, v := range f.Vectors {
			out.Vectors[k] = slices.Clone(v)
		}
	}
	if f.Images != nil {
		out.Images = make(map[string][]byte, len(f.Images))
		for k, v := range f.Images {
			out.Images[k] = slices.Clone(v)
		}
	}
	return out
}

// Annotation is one frame's derived values keyed by operator name. Values
// are float64, []float64, string or int; records decoded from JSON may hold
// []any and float64 in their place, which the accessors accept.
type Annotation map[string]any

// NewAnnotations returns n records each carrying its frame_index.
func NewAnnotations(n int) []Annotation {
	out := make([]Annotation, n)
	for i := range out {
		out[i] = Annotation{FrameIndexKey: i}
	}
	return out
}

// Clone deep-copies the record.
func (a Annotation) Clone() Annotation {
	if a == nil {
		return nil
	}
	out := make(Annotation, len(a))
	for k, v := range a {
		out[k] = cloneValue(v)
	}
	return out
}

// Has reports whether key is present.
func (a Annotation) Has(key string) bool {
	_, ok := a[key]
	return ok
}

// Keys returns the record's keys sorted.
func (a Annotation) Keys() []string {
	return slices.Sorted(maps.Keys(a))
}

// Vector returns key as a float vector.
func (a Annotation) Vector(key string) ([]float64, error) {
	v, ok := a[key]
	if !ok {
		return nil, &KeyError{Source: SourceAnnotation, Key: key}
	}
	return ToVector(key, v)
}

// Scalar returns key as a float.
func (a Annotation) Scalar(key string) (float64, error) {
	v, ok := a[key]
	if !ok {
		return 0, &KeyError{Source: SourceAnnotation, Key: key}
	}
	return ToScalar(key, v)
}

// Label returns key as a string label.
func (a Annotation) Label(key string) (string, error) {
	v, ok := a[key]
	if !ok {
		return "", &KeyError{Source: SourceAnnotation, Key: key}
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Key: key, Want: "label", Got: v}
	}
	return s, nil
}

// ToVector coerces a stored value into []float64.
func ToVector(key string, v any) ([]float64, error) {
	switch t := v.(type) {
	case []float64:
		return t, nil
	case []float32:
		out := make([]float64, len(t))
		for i, f := range t {
			out[i] = float64(f)
		}
		return out, nil
	case []any:
		out := make([]float64, len(t))
		for i, e := range t {
			f, err := ToScalar(key, e)
			if err != nil {
				return nil, &TypeError{Key: key, Want: "vector", Got: v}
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, &TypeError{Key: key, Want: "vector", Got: v}
	}
}

// ToScalar coerces a stored value into float64.
func ToScalar(key string, v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	default:
		return 0, &TypeError{Key: key, Want: "scalar", Got: v}
	}
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []float64:
		return slices.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// CloneAll deep-copies a sequence of records.
func CloneAll(in []Annotation) []Annotation {
	out := make([]Annotation, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
