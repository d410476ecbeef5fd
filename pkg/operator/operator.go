// Package operator implements the per-frame annotation operators.
//
// Each operator is configured once and then applied to every frame of an
// episode with that frame's trailing window of raw frames and annotations.
// The last window entry is the current frame, the first is the oldest
// sample (possibly a padded repeat near the start of the episode).
package operator

import (
	"bytes"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

// Operator produces one derived value for the current frame of a window.
// Apply must be deterministic and must not modify its inputs.
type Operator interface {
	Name() string
	Type() string
	WindowSize() int
	// Inputs lists the annotation keys, produced by other operators, that
	// Apply reads.
	Inputs() []string
	Apply(frames []episode.Frame, annotations []episode.Annotation) (any, error)
}

// Config is the declarative form of an operator. Operator-specific
// parameters sit next to the common fields and are decoded by the
// operator's constructor.
//
//	- type: movement
//	  name: mov_left
//	  window_size: 10
//	  position_key: pos_left
type Config struct {
	Type       string         `yaml:"type"`
	Name       string         `yaml:"name"`
	WindowSize int            `yaml:"window_size,omitempty"`
	Params     map[string]any `yaml:",inline"`
}

type constructor func(b base, cfg Config) (Operator, error)

var constructors = map[string]constructor{
	TypePosition:               newPosition,
	TypeAngle:                  newAngle,
	TypeDirection:              newAngle,
	TypeGripper:                newGripper,
	TypePositionRotation:       newPositionRotation,
	TypeAngleRotation:          newAngleRotation,
	TypeMovement:               newMovement,
	TypeGripperMovement:        newGripperMovement,
	TypeVelocity:               newVelocity,
	TypeAcceleration:           newAcceleration,
	TypeGripperSummary:         newGripperSummary,
	TypeMovementSummary:        newMovementSummary,
	TypeGripperMovementSummary: newGripperMovementSummary,
	TypeVelocitySummary:        newVelocitySummary,
	TypeAccelerationSummary:    newAccelerationSummary,
}

// Operator type tags.
const (
	TypePosition               = "position"
	TypeAngle                  = "angle"
	TypeDirection              = "direction" // older name for angle
	TypeGripper                = "gripper"
	TypePositionRotation       = "position_rotation"
	TypeAngleRotation          = "angle_rotation"
	TypeMovement               = "movement"
	TypeGripperMovement        = "gripper_movement"
	TypeVelocity               = "velocity"
	TypeAcceleration           = "acceleration"
	TypeGripperSummary         = "gripper_summary"
	TypeMovementSummary        = "movement_summary"
	TypeGripperMovementSummary = "gripper_movement_summary"
	TypeVelocitySummary        = "velocity_summary"
	TypeAccelerationSummary    = "acceleration_summary"
)

// Types returns every registered type tag, sorted.
func Types() []string {
	return slices.Sorted(maps.Keys(constructors))
}

// New builds an operator from its configuration.
func New(cfg Config) (Operator, error) {
	ctor, ok := constructors[cfg.Type]
	if !ok {
		return nil, &UnknownOperatorTypeError{Type: cfg.Type, Name: cfg.Name}
	}
	if cfg.Name == "" {
		return nil, &ConfigError{Type: cfg.Type, Field: "name", Reason: "is required"}
	}
	if cfg.WindowSize == 0 {
		cfg.WindowSize = 1
	}
	if cfg.WindowSize < 1 {
		return nil, &ConfigError{Operator: cfg.Name, Type: cfg.Type, Field: "window_size",
			Reason: fmt.Sprintf("must be >= 1, got %d", cfg.WindowSize)}
	}
	return ctor(base{name: cfg.Name, typ: cfg.Type, windowSize: cfg.WindowSize}, cfg)
}

// NewAll builds a list of operators, failing on the first bad entry.
func NewAll(cfgs []Config) ([]Operator, error) {
	ops := make([]Operator, 0, len(cfgs))
	for i, cfg := range cfgs {
		op, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("operator %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

type base struct {
	name       string
	typ        string
	windowSize int
}

func (b base) Name() string    { return b.name }
func (b base) Type() string    { return b.typ }
func (b base) WindowSize() int { return b.windowSize }

func (b base) configError(field, format string, args ...any) error {
	return &ConfigError{Operator: b.name, Type: b.typ, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// decodeParams round-trips the inline parameters through YAML into a typed
// struct, rejecting fields the operator does not know.
func (b base) decodeParams(cfg Config, out any) error {
	data, err := yaml.Marshal(cfg.Params)
	if err != nil {
		return b.configError("params", "%v", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return b.configError("params", "%v", err)
	}
	return nil
}

func (b base) requireKey(field, value string) error {
	if value == "" {
		return b.configError(field, "is required")
	}
	return nil
}

func current[T any](w []T) T { return w[len(w)-1] }
func oldest[T any](w []T) T  { return w[0] }

// indexRange is a half-open [start, end) slice of a state vector.
type indexRange []int

func (b base) pickRange(field string, primary, alias indexRange) (indexRange, error) {
	r := primary
	if len(r) == 0 {
		r = alias
	}
	if len(r) != 2 {
		return nil, b.configError(field, "must be [start, end], got %v", []int(r))
	}
	if r[0] < 0 || r[1] <= r[0] {
		return nil, b.configError(field, "invalid range %v", []int(r))
	}
	return r, nil
}

func (r indexRange) slice(key string, v []float64) ([]float64, error) {
	if r[1] > len(v) {
		return nil, fmt.Errorf("range %v out of bounds for %q of length %d", []int(r), key, len(v))
	}
	return slices.Clone(v[r[0]:r[1]]), nil
}
