package episode

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFrameCloneIsDeep(t *testing.T) {
	f := Frame{
		Index:   3,
		Vectors: map[string][]float64{"observation.state": {1, 2, 3}},
		Images:  map[string][]byte{"observation.images.cam_high": {0xff, 0xd8}},
	}
	c := f.Clone()
	if diff := cmp.Diff(f, c); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}

	c.Vectors["observation.state"][0] = 42
	c.Images["observation.images.cam_high"][0] = 0
	if f.Vectors["observation.state"][0] != 1 {
		t.Errorf("mutating clone changed original vector")
	}
	if f.Images["observation.images.cam_high"][0] != 0xff {
		t.Errorf("mutating clone changed original image")
	}
}

func TestAnnotationAccessors(t *testing.T) {
	a := Annotation{
		"pos":   []float64{1, 2, 3},
		"json":  []any{1.0, 2.0, 3.0},
		"vel":   0.5,
		"count": 2,
		"label": "up",
	}

	vec, err := a.Vector("json")
	if err != nil {
		t.Fatalf("Vector(json): %v", err)
	}
	if diff := cmp.Diff([]float64{1, 2, 3}, vec); diff != "" {
		t.Errorf("Vector(json) mismatch:\n%s", diff)
	}

	if s, err := a.Scalar("count"); err != nil || s != 2 {
		t.Errorf("Scalar(count) = %v, %v", s, err)
	}
	if l, err := a.Label("label"); err != nil || l != "up" {
		t.Errorf("Label(label) = %q, %v", l, err)
	}

	_, err = a.Vector("missing")
	var keyErr *KeyError
	if !errors.As(err, &keyErr) || keyErr.Key != "missing" || keyErr.Source != SourceAnnotation {
		t.Errorf("expected annotation KeyError, got %v", err)
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("KeyError should unwrap to ErrKeyNotFound")
	}

	var typeErr *TypeError
	if _, err := a.Scalar("label"); !errors.As(err, &typeErr) {
		t.Errorf("expected TypeError, got %v", err)
	}
}

func TestAnnotationClone(t *testing.T) {
	a := Annotation{"pos": []float64{1, 2}, "json": []any{1.0}}
	c := a.Clone()
	c["pos"].([]float64)[0] = 9
	c["json"].([]any)[0] = 9.0
	if a["pos"].([]float64)[0] != 1 || a["json"].([]any)[0] != 1.0 {
		t.Errorf("clone shares backing arrays with original")
	}
}

func TestNewAnnotations(t *testing.T) {
	as := NewAnnotations(3)
	for i, a := range as {
		if a[FrameIndexKey] != i {
			t.Errorf("record %d has frame_index %v", i, a[FrameIndexKey])
		}
	}
}
