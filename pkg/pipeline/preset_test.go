package pipeline

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/siqueiraa/labelflow/pkg/operator"
)

func TestDefaultPreset(t *testing.T) {
	p := DefaultPreset()
	ops, err := p.Build()
	if err != nil {
		t.Fatalf("DefaultPreset does not build: %v", err)
	}
	if len(ops) != 16 {
		t.Fatalf("Expected 16 operators, got %d", len(ops))
	}
	if err := ValidateOrder(ops); err != nil {
		t.Errorf("DefaultPreset order: %v", err)
	}

	windows := map[string]int{"pos_left": 1, "dir_right": 1, "mov_left": 10, "vel_right": 1, "accel_left": 5, "accel_summary_right": 1}
	byName := map[string]operator.Operator{}
	for _, op := range ops {
		byName[op.Name()] = op
	}
	for name, want := range windows {
		op, ok := byName[name]
		if !ok {
			t.Errorf("Missing operator %s", name)
			continue
		}
		if op.WindowSize() != want {
			t.Errorf("%s window = %d, want %d", name, op.WindowSize(), want)
		}
	}

	pos := byName["pos_right"].(*operator.Position)
	if pos.Range[0] != 10 || pos.Range[1] != 13 {
		t.Errorf("pos_right range = %v", pos.Range)
	}
}

func TestShippedPipelines(t *testing.T) {
	pipelines, err := LoadDir(filepath.Join("..", "..", "pipelines"))
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	for _, name := range []string{"dual_arm", "single_arm"} {
		if _, ok := Find(pipelines, name); !ok {
			t.Errorf("Missing shipped pipeline %s", name)
		}
	}

	shipped, _ := Find(pipelines, DefaultPresetName)
	fromFile, err := shipped.Build()
	if err != nil {
		t.Fatalf("dual_arm.yaml does not build: %v", err)
	}
	builtin, err := DefaultPreset().Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(fromFile) != len(builtin) {
		t.Fatalf("dual_arm.yaml has %d operators, preset has %d", len(fromFile), len(builtin))
	}
	for i := range builtin {
		a, b := fromFile[i], builtin[i]
		if a.Name() != b.Name() || a.Type() != b.Type() || a.WindowSize() != b.WindowSize() ||
			strings.Join(a.Inputs(), ",") != strings.Join(b.Inputs(), ",") {
			t.Errorf("operator %d: file %s/%s/%d, preset %s/%s/%d",
				i, a.Name(), a.Type(), a.WindowSize(), b.Name(), b.Type(), b.WindowSize())
		}
	}
}

func TestDefaultPresetFor(t *testing.T) {
	ops, err := DefaultPresetFor("obs.joints").Build()
	if err != nil {
		t.Fatal(err)
	}
	pos := ops[0].(*operator.Position)
	if pos.StateKey != "obs.joints" {
		t.Errorf("state key = %q", pos.StateKey)
	}
}

func TestSingleArmTableFrameOffset(t *testing.T) {
	p, err := LoadFromFile(filepath.Join("..", "..", "pipelines", "single_arm.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	ops, err := p.Build()
	if err != nil {
		t.Fatal(err)
	}
	for _, op := range ops {
		var offset []float64
		switch o := op.(type) {
		case *operator.PositionRotation:
			offset = o.Offset
		case *operator.AngleRotation:
			offset = o.Offset
		default:
			continue
		}
		// offsets are degrees: a quarter turn about z
		if len(offset) != 3 || offset[2] != 90 {
			t.Errorf("%s offset = %v, want [0 0 90]", op.Name(), offset)
		}
	}
}
