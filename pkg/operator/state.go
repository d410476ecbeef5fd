package operator

import (
	"fmt"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/geom"
)

// Position slices the current frame's state vector.
type Position struct {
	base
	StateKey string
	Range    indexRange
}

type positionParams struct {
	StateKey string     `yaml:"state_key"`
	Range    indexRange `yaml:"range"`
	XYZRange indexRange `yaml:"xyz_range"`
}

func newPosition(b base, cfg Config) (Operator, error) {
	var p positionParams
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("state_key", p.StateKey); err != nil {
		return nil, err
	}
	r, err := b.pickRange("range", p.Range, p.XYZRange)
	if err != nil {
		return nil, err
	}
	return &Position{base: b, StateKey: p.StateKey, Range: r}, nil
}

func (o *Position) Inputs() []string { return nil }

func (o *Position) Apply(frames []episode.Frame, _ []episode.Annotation) (any, error) {
	state, err := current(frames).Vector(o.StateKey)
	if err != nil {
		return nil, err
	}
	return o.Range.slice(o.StateKey, state)
}

// Angle slices the current frame's state vector and decodes it to Euler
// degrees: four values are a quaternion, six the 6D encoding, nine a
// matrix; any other length is taken as Euler angles already.
type Angle struct {
	base
	StateKey string
	Range    indexRange
	Order    geom.QuaternionOrder
}

type angleParams struct {
	StateKey    string     `yaml:"state_key"`
	Range       indexRange `yaml:"range"`
	RPYRange    indexRange `yaml:"rpy_range"`
	ScalarFirst bool       `yaml:"scalar_first"`
}

func newAngle(b base, cfg Config) (Operator, error) {
	var p angleParams
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("state_key", p.StateKey); err != nil {
		return nil, err
	}
	r, err := b.pickRange("range", p.Range, p.RPYRange)
	if err != nil {
		return nil, err
	}
	order := geom.ScalarLast
	if p.ScalarFirst {
		order = geom.ScalarFirst
	}
	return &Angle{base: b, StateKey: p.StateKey, Range: r, Order: order}, nil
}

func (o *Angle) Inputs() []string { return nil }

func (o *Angle) Apply(frames []episode.Frame, _ []episode.Annotation) (any, error) {
	state, err := current(frames).Vector(o.StateKey)
	if err != nil {
		return nil, err
	}
	raw, err := o.Range.slice(o.StateKey, state)
	if err != nil {
		return nil, err
	}
	return geom.DecodeAngle(raw, o.Order)
}

// Gripper reads one element of the current frame's state vector.
type Gripper struct {
	base
	StateKey string
	Index    int
}

type gripperParams struct {
	StateKey string `yaml:"state_key"`
	Index    *int   `yaml:"index"`
}

func newGripper(b base, cfg Config) (Operator, error) {
	var p gripperParams
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("state_key", p.StateKey); err != nil {
		return nil, err
	}
	if p.Index == nil {
		return nil, b.configError("index", "is required")
	}
	if *p.Index < 0 {
		return nil, b.configError("index", "must be >= 0, got %d", *p.Index)
	}
	return &Gripper{base: b, StateKey: p.StateKey, Index: *p.Index}, nil
}

func (o *Gripper) Inputs() []string { return nil }

func (o *Gripper) Apply(frames []episode.Frame, _ []episode.Annotation) (any, error) {
	state, err := current(frames).Vector(o.StateKey)
	if err != nil {
		return nil, err
	}
	if o.Index >= len(state) {
		return nil, fmt.Errorf("index %d out of bounds for %q of length %d", o.Index, o.StateKey, len(state))
	}
	return state[o.Index], nil
}
