package operator

import (
	"gonum.org/v1/gonum/floats"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/geom"
)

// Movement is the displacement of a position across the window: current
// minus oldest. With a window shorter than two it is the zero vector.
type Movement struct {
	base
	PositionKey string
}

func newMovement(b base, cfg Config) (Operator, error) {
	var p struct {
		PositionKey string `yaml:"position_key"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("position_key", p.PositionKey); err != nil {
		return nil, err
	}
	return &Movement{base: b, PositionKey: p.PositionKey}, nil
}

func (o *Movement) Inputs() []string { return []string{o.PositionKey} }

func (o *Movement) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	if o.windowSize < 2 {
		// zero whatever the input; sized like the position when there is one
		if curr, err := current(annotations).Vector(o.PositionKey); err == nil {
			return make([]float64, len(curr)), nil
		}
		return make([]float64, geom.PositionLen), nil
	}
	curr, err := current(annotations).Vector(o.PositionKey)
	if err != nil {
		return nil, err
	}
	prev, err := oldest(annotations).Vector(o.PositionKey)
	if err != nil {
		return nil, err
	}
	return geom.PositionSubtract(curr, prev)
}

// GripperMovement is the change of a gripper reading across the window.
type GripperMovement struct {
	base
	GripperKey string
}

func newGripperMovement(b base, cfg Config) (Operator, error) {
	var p struct {
		GripperKey string `yaml:"gripper_key"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("gripper_key", p.GripperKey); err != nil {
		return nil, err
	}
	return &GripperMovement{base: b, GripperKey: p.GripperKey}, nil
}

func (o *GripperMovement) Inputs() []string { return []string{o.GripperKey} }

func (o *GripperMovement) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	return scalarDelta(annotations, o.GripperKey, o.windowSize)
}

// Velocity is the Euclidean norm of the current movement vector.
type Velocity struct {
	base
	MovementKey string
}

func newVelocity(b base, cfg Config) (Operator, error) {
	var p struct {
		MovementKey string `yaml:"movement_key"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("movement_key", p.MovementKey); err != nil {
		return nil, err
	}
	return &Velocity{base: b, MovementKey: p.MovementKey}, nil
}

func (o *Velocity) Inputs() []string { return []string{o.MovementKey} }

func (o *Velocity) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	mov, err := current(annotations).Vector(o.MovementKey)
	if err != nil {
		return nil, err
	}
	if len(mov) == 0 {
		return 0.0, nil
	}
	return floats.Norm(mov, 2), nil
}

// Acceleration is the change of velocity across the window.
type Acceleration struct {
	base
	VelocityKey string
}

func newAcceleration(b base, cfg Config) (Operator, error) {
	var p struct {
		VelocityKey string `yaml:"vel_key"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("vel_key", p.VelocityKey); err != nil {
		return nil, err
	}
	return &Acceleration{base: b, VelocityKey: p.VelocityKey}, nil
}

func (o *Acceleration) Inputs() []string { return []string{o.VelocityKey} }

func (o *Acceleration) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	return scalarDelta(annotations, o.VelocityKey, o.windowSize)
}

func scalarDelta(annotations []episode.Annotation, key string, windowSize int) (any, error) {
	if windowSize < 2 {
		return 0.0, nil
	}
	curr, err := current(annotations).Scalar(key)
	if err != nil {
		return nil, err
	}
	prev, err := oldest(annotations).Scalar(key)
	if err != nil {
		return nil, err
	}
	return curr - prev, nil
}
