package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/siqueiraa/labelflow/pkg/operator"
)

const testPipeline = `
name: single_arm
description: one arm, no summaries
strict_order: true
operators:
  - type: position
    name: pos
    state_key: observation.state
    range: [0, 3]
  - type: movement
    name: mov
    window_size: 2
    position_key: pos
  - type: velocity
    name: vel
    movement_key: mov
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "single_arm.yaml", testPipeline)

	p, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if p.Name != "single_arm" {
		t.Errorf("Expected name 'single_arm', got '%s'", p.Name)
	}
	if !p.StrictOrder {
		t.Error("Expected strict_order to be set")
	}
	if len(p.Operators) != 3 {
		t.Fatalf("Expected 3 operators, got %d", len(p.Operators))
	}

	mov := p.Operators[1]
	if mov.Type != operator.TypeMovement || mov.WindowSize != 2 {
		t.Errorf("Unexpected movement config: %+v", mov)
	}
	if mov.Params["position_key"] != "pos" {
		t.Errorf("Expected position_key 'pos' in params, got %v", mov.Params)
	}
	if _, ok := mov.Params["window_size"]; ok {
		t.Error("window_size must not leak into params")
	}

	ops, err := p.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if ops[1].WindowSize() != 2 || ops[2].WindowSize() != 1 {
		t.Errorf("Unexpected window sizes %d, %d", ops[1].WindowSize(), ops[2].WindowSize())
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"invalid yaml", "name: [unterminated"},
		{"missing name", "operators:\n  - {type: position, name: p, state_key: s, range: [0, 3]}\n"},
		{"no operators", "name: x\n"},
		{"unknown type", "name: x\noperators:\n  - {type: teleport, name: t}\n"},
		{"unknown param", "name: x\noperators:\n  - {type: velocity, name: v, movement_key: m, speed: 3}\n"},
		{"bad window", "name: x\noperators:\n  - {type: velocity, name: v, movement_key: m, window_size: -1}\n"},
	}

	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, "p.yaml", tt.content)
			if _, err := LoadFromFile(path); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

func TestLoadFromFileUnknownTypeError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "p.yaml", "name: x\noperators:\n  - {type: teleport, name: t}\n")
	_, err := LoadFromFile(path)
	if !errors.Is(err, operator.ErrUnknownOperatorType) {
		t.Errorf("Expected ErrUnknownOperatorType, got %v", err)
	}
}

func TestStrictOrder(t *testing.T) {
	forward := `
name: forward
strict_order: %s
operators:
  - {type: velocity, name: vel, movement_key: mov}
  - {type: movement, name: mov, window_size: 2, position_key: pos}
  - {type: position, name: pos, state_key: observation.state, range: [0, 3]}
`
	dir := t.TempDir()

	strict := writeFile(t, dir, "strict.yaml", fmt.Sprintf(forward, "true"))
	_, err := LoadFromFile(strict)
	var missing *operator.MissingDependencyError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingDependencyError, got %v", err)
	}
	if missing.Operator != "vel" || missing.Dependency != "mov" {
		t.Errorf("Unexpected error fields: %+v", missing)
	}

	lenient := writeFile(t, dir, "lenient.yaml", fmt.Sprintf(forward, "false"))
	if _, err := LoadFromFile(lenient); err != nil {
		t.Errorf("Expected lenient pipeline to load, got %v", err)
	}
}

func TestValidateOrderExternalInputs(t *testing.T) {
	// inputs that no operator produces may come from prior annotations
	ops, err := operator.NewAll([]operator.Config{
		{Type: operator.TypeVelocity, Name: "vel", Params: map[string]any{"movement_key": "mov_from_earlier_run"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidateOrder(ops); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yml", "name: b\noperators:\n  - {type: gripper, name: g, state_key: s, index: 0}\n")
	writeFile(t, dir, "a.yaml", testPipeline)
	writeFile(t, dir, "notes.txt", "ignored")

	ps, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(ps) != 2 || ps[0].Name != "single_arm" || ps[1].Name != "b" {
		t.Fatalf("Unexpected pipelines: %v, %v", ps[0].Name, ps[1].Name)
	}
	if _, ok := Find(ps, "b"); !ok {
		t.Error("Expected to find pipeline b")
	}
	if _, ok := Find(ps, "nope"); ok {
		t.Error("Did not expect to find pipeline nope")
	}

	writeFile(t, dir, "c.yaml", "name: b\noperators:\n  - {type: gripper, name: g, state_key: s, index: 0}\n")
	if _, err := LoadDir(dir); err == nil {
		t.Error("Expected duplicate pipeline name error")
	}
}
