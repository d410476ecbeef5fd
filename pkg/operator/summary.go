package operator

import (
	"math"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/geom"
)

// Labels emitted by the summary operators.
const (
	LabelOpen   = "open"
	LabelClosed = "closed"

	LabelStationary = "stationary"
	LabelLeft       = "left"
	LabelRight      = "right"
	LabelForward    = "forward"
	LabelBackward   = "backward"
	LabelUp         = "up"
	LabelDown       = "down"

	LabelOpening = "opening"
	LabelClosing = "closing"
	LabelHolding = "holding"

	LabelSlow = "slow"
	LabelFast = "fast"

	LabelDecelerating = "decelerating"
	LabelAccelerating = "accelerating"
	LabelConstant     = "constant"
)

// Default thresholds.
const (
	DefaultGripperThreshold         = 0.5
	DefaultMovementThreshold        = 1e-3
	DefaultGripperMovementThreshold = 1e-3
	DefaultSlowThreshold            = 1e-3
	DefaultFastThreshold            = 5e-3
	DefaultDecelThreshold           = -1e-4
	DefaultAccelThreshold           = 1e-4
)

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// GripperSummary labels the gripper open when its reading is above the
// threshold.
type GripperSummary struct {
	base
	GripperKey string
	Threshold  float64
}

func newGripperSummary(b base, cfg Config) (Operator, error) {
	var p struct {
		GripperKey string   `yaml:"gripper_key"`
		Threshold  *float64 `yaml:"threshold"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("gripper_key", p.GripperKey); err != nil {
		return nil, err
	}
	return &GripperSummary{
		base:       b,
		GripperKey: p.GripperKey,
		Threshold:  orDefault(p.Threshold, DefaultGripperThreshold),
	}, nil
}

func (o *GripperSummary) Inputs() []string { return []string{o.GripperKey} }

func (o *GripperSummary) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	g, err := current(annotations).Scalar(o.GripperKey)
	if err != nil {
		return nil, err
	}
	if g > o.Threshold {
		return LabelOpen, nil
	}
	return LabelClosed, nil
}

// MovementSummary names the dominant axis of the current movement vector.
// x maps to right/left, y to forward/backward, z to up/down. Below the
// threshold, or when no single axis dominates, the label is stationary.
type MovementSummary struct {
	base
	MovementKey string
	Threshold   float64
}

func newMovementSummary(b base, cfg Config) (Operator, error) {
	var p struct {
		MovementKey string   `yaml:"movement_key"`
		Threshold   *float64 `yaml:"threshold"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("movement_key", p.MovementKey); err != nil {
		return nil, err
	}
	return &MovementSummary{
		base:        b,
		MovementKey: p.MovementKey,
		Threshold:   orDefault(p.Threshold, DefaultMovementThreshold),
	}, nil
}

func (o *MovementSummary) Inputs() []string { return []string{o.MovementKey} }

func (o *MovementSummary) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	mov, err := current(annotations).Vector(o.MovementKey)
	if err != nil {
		return nil, err
	}
	if len(mov) != geom.PositionLen {
		return nil, &geom.ShapeError{Func: "MovementSummary", Want: []int{geom.PositionLen}, Got: len(mov)}
	}
	return ClassifyMovement(mov[0], mov[1], mov[2], o.Threshold), nil
}

// ClassifyMovement is the movement_summary rule on its own.
func ClassifyMovement(dx, dy, dz, threshold float64) string {
	ax, ay, az := math.Abs(dx), math.Abs(dy), math.Abs(dz)
	if max(ax, ay, az) < threshold {
		return LabelStationary
	}
	switch {
	case ax > ay && ax > az:
		if dx > 0 {
			return LabelRight
		}
		return LabelLeft
	case ay > ax && ay > az:
		if dy > 0 {
			return LabelForward
		}
		return LabelBackward
	case az > ax && az > ay:
		if dz > 0 {
			return LabelUp
		}
		return LabelDown
	default:
		return LabelStationary
	}
}

// GripperMovementSummary labels the gripper as opening, closing or holding.
type GripperMovementSummary struct {
	base
	GripperMovementKey string
	Threshold          float64
}

func newGripperMovementSummary(b base, cfg Config) (Operator, error) {
	var p struct {
		GripperMovementKey string   `yaml:"gripper_movement_key"`
		Threshold          *float64 `yaml:"threshold"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("gripper_movement_key", p.GripperMovementKey); err != nil {
		return nil, err
	}
	return &GripperMovementSummary{
		base:               b,
		GripperMovementKey: p.GripperMovementKey,
		Threshold:          orDefault(p.Threshold, DefaultGripperMovementThreshold),
	}, nil
}

func (o *GripperMovementSummary) Inputs() []string { return []string{o.GripperMovementKey} }

func (o *GripperMovementSummary) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	d, err := current(annotations).Scalar(o.GripperMovementKey)
	if err != nil {
		return nil, err
	}
	switch {
	case d > o.Threshold:
		return LabelOpening, nil
	case d < -o.Threshold:
		return LabelClosing, nil
	default:
		return LabelHolding, nil
	}
}

// VelocitySummary buckets speed. Both bounds are exclusive on the low side:
// a velocity equal to the slow threshold is already slow, one equal to the
// fast threshold is fast.
type VelocitySummary struct {
	base
	VelocityKey   string
	SlowThreshold float64
	FastThreshold float64
}

func newVelocitySummary(b base, cfg Config) (Operator, error) {
	var p struct {
		VelocityKey   string   `yaml:"vel_key"`
		SlowThreshold *float64 `yaml:"slow_threshold"`
		FastThreshold *float64 `yaml:"fast_threshold"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("vel_key", p.VelocityKey); err != nil {
		return nil, err
	}
	op := &VelocitySummary{
		base:          b,
		VelocityKey:   p.VelocityKey,
		SlowThreshold: orDefault(p.SlowThreshold, DefaultSlowThreshold),
		FastThreshold: orDefault(p.FastThreshold, DefaultFastThreshold),
	}
	if op.FastThreshold < op.SlowThreshold {
		return nil, b.configError("fast_threshold", "must be >= slow_threshold (%g < %g)", op.FastThreshold, op.SlowThreshold)
	}
	return op, nil
}

func (o *VelocitySummary) Inputs() []string { return []string{o.VelocityKey} }

func (o *VelocitySummary) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	v, err := current(annotations).Scalar(o.VelocityKey)
	if err != nil {
		return nil, err
	}
	switch {
	case v < o.SlowThreshold:
		return LabelStationary, nil
	case v < o.FastThreshold:
		return LabelSlow, nil
	default:
		return LabelFast, nil
	}
}

// AccelerationSummary labels the change in speed.
type AccelerationSummary struct {
	base
	AccelerationKey string
	DecelThreshold  float64
	AccelThreshold  float64
}

func newAccelerationSummary(b base, cfg Config) (Operator, error) {
	var p struct {
		AccelerationKey string   `yaml:"accel_key"`
		DecelThreshold  *float64 `yaml:"decel_threshold"`
		AccelThreshold  *float64 `yaml:"accel_threshold"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("accel_key", p.AccelerationKey); err != nil {
		return nil, err
	}
	return &AccelerationSummary{
		base:            b,
		AccelerationKey: p.AccelerationKey,
		DecelThreshold:  orDefault(p.DecelThreshold, DefaultDecelThreshold),
		AccelThreshold:  orDefault(p.AccelThreshold, DefaultAccelThreshold),
	}, nil
}

func (o *AccelerationSummary) Inputs() []string { return []string{o.AccelerationKey} }

func (o *AccelerationSummary) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	a, err := current(annotations).Scalar(o.AccelerationKey)
	if err != nil {
		return nil, err
	}
	switch {
	case a < o.DecelThreshold:
		return LabelDecelerating, nil
	case a > o.AccelThreshold:
		return LabelAccelerating, nil
	default:
		return LabelConstant, nil
	}
}
