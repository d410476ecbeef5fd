package operator

import (
	"slices"

	"github.com/siqueiraa/labelflow/pkg/episode"
	"github.com/siqueiraa/labelflow/pkg/geom"
)

func (b base) pickOffset(offset []float64) ([]float64, error) {
	if len(offset) == 0 {
		return []float64{0, 0, 0}, nil
	}
	if len(offset) != geom.EulerLen {
		return nil, b.configError("offset", "must have 3 elements, got %d", len(offset))
	}
	return slices.Clone(offset), nil
}

// PositionRotation re-expresses the current position in another frame
// convention by rotating it with a fixed Euler offset.
type PositionRotation struct {
	base
	PositionKey string
	Offset      []float64
}

func newPositionRotation(b base, cfg Config) (Operator, error) {
	var p struct {
		PositionKey string    `yaml:"position_key"`
		Offset      []float64 `yaml:"offset"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("position_key", p.PositionKey); err != nil {
		return nil, err
	}
	offset, err := b.pickOffset(p.Offset)
	if err != nil {
		return nil, err
	}
	return &PositionRotation{base: b, PositionKey: p.PositionKey, Offset: offset}, nil
}

func (o *PositionRotation) Inputs() []string { return []string{o.PositionKey} }

func (o *PositionRotation) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	pos, err := current(annotations).Vector(o.PositionKey)
	if err != nil {
		return nil, err
	}
	return geom.PositionRotate(pos, o.Offset)
}

// AngleRotation composes a fixed offset onto the current angle.
type AngleRotation struct {
	base
	AngleKey string
	Offset   []float64
}

func newAngleRotation(b base, cfg Config) (Operator, error) {
	var p struct {
		AngleKey string    `yaml:"angle_key"`
		Offset   []float64 `yaml:"offset"`
	}
	if err := b.decodeParams(cfg, &p); err != nil {
		return nil, err
	}
	if err := b.requireKey("angle_key", p.AngleKey); err != nil {
		return nil, err
	}
	offset, err := b.pickOffset(p.Offset)
	if err != nil {
		return nil, err
	}
	return &AngleRotation{base: b, AngleKey: p.AngleKey, Offset: offset}, nil
}

func (o *AngleRotation) Inputs() []string { return []string{o.AngleKey} }

func (o *AngleRotation) Apply(_ []episode.Frame, annotations []episode.Annotation) (any, error) {
	angle, err := current(annotations).Vector(o.AngleKey)
	if err != nil {
		return nil, err
	}
	return geom.EulerAdd(angle, o.Offset)
}
