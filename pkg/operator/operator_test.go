package operator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siqueiraa/labelflow/pkg/episode"
)

const stateKey = "observation.state"

func mustNew(t *testing.T, cfg Config) Operator {
	t.Helper()
	op, err := New(cfg)
	require.NoError(t, err)
	return op
}

func frameWith(state ...float64) episode.Frame {
	return episode.Frame{Vectors: map[string][]float64{stateKey: state}}
}

func ann(kv ...any) episode.Annotation {
	a := episode.Annotation{}
	for i := 0; i+1 < len(kv); i += 2 {
		a[kv[i].(string)] = kv[i+1]
	}
	return a
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(Config{Type: "teleport", Name: "x"})
	var typeErr *UnknownOperatorTypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "teleport", typeErr.Type)
	assert.ErrorIs(t, err, ErrUnknownOperatorType)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing name", Config{Type: TypePosition, Params: map[string]any{"state_key": stateKey, "range": []int{0, 3}}}},
		{"negative window", Config{Type: TypeMovement, Name: "m", WindowSize: -2, Params: map[string]any{"position_key": "p"}}},
		{"missing state key", Config{Type: TypePosition, Name: "p", Params: map[string]any{"range": []int{0, 3}}}},
		{"bad range", Config{Type: TypePosition, Name: "p", Params: map[string]any{"state_key": stateKey, "range": []int{3, 1}}}},
		{"short range", Config{Type: TypeAngle, Name: "a", Params: map[string]any{"state_key": stateKey, "range": []int{3}}}},
		{"missing reference", Config{Type: TypeVelocity, Name: "v"}},
		{"unknown param", Config{Type: TypeVelocity, Name: "v", Params: map[string]any{"movement_key": "m", "speed": 1}}},
		{"bad offset", Config{Type: TypeAngleRotation, Name: "r", Params: map[string]any{"angle_key": "a", "offset": []float64{1, 2}}}},
		{"gripper without index", Config{Type: TypeGripper, Name: "g", Params: map[string]any{"state_key": stateKey}}},
		{"inverted velocity thresholds", Config{Type: TypeVelocitySummary, Name: "vs",
			Params: map[string]any{"vel_key": "v", "slow_threshold": 0.5, "fast_threshold": 0.1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestDefaultWindowSize(t *testing.T) {
	op := mustNew(t, Config{Type: TypeVelocity, Name: "v", Params: map[string]any{"movement_key": "m"}})
	assert.Equal(t, 1, op.WindowSize())
	assert.Equal(t, []string{"m"}, op.Inputs())
}

func TestTypesIncludesCatalog(t *testing.T) {
	types := Types()
	for _, want := range []string{TypePosition, TypeAngle, TypeDirection, TypeGripper, TypeMovementSummary, TypeAccelerationSummary} {
		assert.Contains(t, types, want)
	}
}

func TestPositionAndAngle(t *testing.T) {
	pos := mustNew(t, Config{Type: TypePosition, Name: "pos", Params: map[string]any{"state_key": stateKey, "xyz_range": []int{1, 4}}})
	got, err := pos.Apply([]episode.Frame{frameWith(9, 1, 2, 3, 8)}, []episode.Annotation{{}})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, got)

	_, err = pos.Apply([]episode.Frame{frameWith(1, 2)}, []episode.Annotation{{}})
	assert.Error(t, err)

	// identity quaternion, scalar last
	angle := mustNew(t, Config{Type: TypeDirection, Name: "dir", Params: map[string]any{"state_key": stateKey, "rpy_range": []int{0, 4}}})
	got, err = angle.Apply([]episode.Frame{frameWith(0, 0, 0, 1)}, []episode.Annotation{{}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, got, 1e-12)

	raw := mustNew(t, Config{Type: TypeAngle, Name: "rpy", Params: map[string]any{"state_key": stateKey, "range": []int{0, 3}}})
	got, err = raw.Apply([]episode.Frame{frameWith(0.1, 0.2, 0.3)}, []episode.Annotation{{}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, got)
}

func TestGripper(t *testing.T) {
	g := mustNew(t, Config{Type: TypeGripper, Name: "g", Params: map[string]any{"state_key": stateKey, "index": 2}})
	got, err := g.Apply([]episode.Frame{frameWith(0, 0, 0.75)}, []episode.Annotation{{}})
	require.NoError(t, err)
	assert.Equal(t, 0.75, got)

	_, err = g.Apply([]episode.Frame{frameWith(0)}, []episode.Annotation{{}})
	assert.Error(t, err)
}

func TestRotations(t *testing.T) {
	pr := mustNew(t, Config{Type: TypePositionRotation, Name: "pr",
		Params: map[string]any{"position_key": "pos", "offset": []float64{0, 0, 90}}})
	got, err := pr.Apply(nil, []episode.Annotation{ann("pos", []float64{1, 0, 0})})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, got, 1e-12)

	ar := mustNew(t, Config{Type: TypeAngleRotation, Name: "ar",
		Params: map[string]any{"angle_key": "dir", "offset": []float64{0, 0, 180}}})
	got, err = ar.Apply(nil, []episode.Annotation{ann("dir", []any{10.0, 20.0, 30.0})})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 210}, got)
}

func TestZeroBelowWindowTwo(t *testing.T) {
	window := []episode.Annotation{
		ann("pos", []float64{5, 5, 5}, "vel", 3.0, "grip", 0.2),
	}
	mov := mustNew(t, Config{Type: TypeMovement, Name: "m", WindowSize: 1, Params: map[string]any{"position_key": "pos"}})
	got, err := mov.Apply(nil, window)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, got)

	acc := mustNew(t, Config{Type: TypeAcceleration, Name: "a", Params: map[string]any{"vel_key": "vel"}})
	got, err = acc.Apply(nil, window)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	gm := mustNew(t, Config{Type: TypeGripperMovement, Name: "gm", Params: map[string]any{"gripper_key": "grip"}})
	got, err = gm.Apply(nil, window)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestZeroBelowWindowTwoIgnoresInput(t *testing.T) {
	empty := []episode.Annotation{{}}
	cfgs := []Config{
		{Type: TypeMovement, Name: "m", Params: map[string]any{"position_key": "pos"}},
		{Type: TypeAcceleration, Name: "a", Params: map[string]any{"vel_key": "vel"}},
		{Type: TypeGripperMovement, Name: "gm", Params: map[string]any{"gripper_key": "grip"}},
	}
	want := []any{[]float64{0, 0, 0}, 0.0, 0.0}
	for i, cfg := range cfgs {
		got, err := mustNew(t, cfg).Apply(nil, empty)
		require.NoError(t, err, cfg.Type)
		assert.Equal(t, want[i], got, cfg.Type)
	}
}

func TestDifferencesAcrossWindow(t *testing.T) {
	window := []episode.Annotation{
		ann("pos", []float64{0, 0, 0}, "vel", 1.0, "grip", 0.9),
		ann("pos", []float64{0, 1, 0}, "vel", 1.5, "grip", 0.5),
		ann("pos", []float64{1, 1, 2}, "vel", 0.5, "grip", 0.1),
	}
	mov := mustNew(t, Config{Type: TypeMovement, Name: "m", WindowSize: 3, Params: map[string]any{"position_key": "pos"}})
	got, err := mov.Apply(nil, window)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 2}, got)

	acc := mustNew(t, Config{Type: TypeAcceleration, Name: "a", WindowSize: 3, Params: map[string]any{"vel_key": "vel"}})
	got, err = acc.Apply(nil, window)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, got, 1e-12)

	gm := mustNew(t, Config{Type: TypeGripperMovement, Name: "gm", WindowSize: 3, Params: map[string]any{"gripper_key": "grip"}})
	got, err = gm.Apply(nil, window)
	require.NoError(t, err)
	assert.InDelta(t, -0.8, got, 1e-12)

	vel := mustNew(t, Config{Type: TypeVelocity, Name: "v", Params: map[string]any{"movement_key": "mov"}})
	got, err = vel.Apply(nil, []episode.Annotation{ann("mov", []float64{3, 4, 0})})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-12)
}

func TestClassifyMovement(t *testing.T) {
	tests := []struct {
		name       string
		dx, dy, dz float64
		want       string
	}{
		{"all zero", 0, 0, 0, LabelStationary},
		{"below threshold", 0.005, -0.002, 0.001, LabelStationary},
		{"right", 0.5, 0.1, 0.1, LabelRight},
		{"left", -0.5, 0.1, 0.1, LabelLeft},
		{"forward", 0.1, 0.3, -0.2, LabelForward},
		{"backward", 0.1, -0.3, -0.2, LabelBackward},
		{"up", 0.1, 0.1, 0.4, LabelUp},
		{"down", 0.1, 0.1, -0.4, LabelDown},
		{"three-way tie", 0.2, -0.2, 0.2, LabelStationary},
		{"two-way tie on max", 0.3, 0.3, 0.1, LabelStationary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMovement(tt.dx, tt.dy, tt.dz, 0.01))
		})
	}
}

func TestMovementSummaryShape(t *testing.T) {
	ms := mustNew(t, Config{Type: TypeMovementSummary, Name: "ms", Params: map[string]any{"movement_key": "mov"}})
	_, err := ms.Apply(nil, []episode.Annotation{ann("mov", []float64{1, 2})})
	assert.Error(t, err)

	got, err := ms.Apply(nil, []episode.Annotation{ann("mov", []float64{0, 0, 0})})
	require.NoError(t, err)
	assert.Equal(t, LabelStationary, got)
}

func TestVelocitySummaryBoundaries(t *testing.T) {
	vs := mustNew(t, Config{Type: TypeVelocitySummary, Name: "vs",
		Params: map[string]any{"vel_key": "vel", "slow_threshold": 0.1, "fast_threshold": 0.5}})
	tests := []struct {
		vel  float64
		want string
	}{
		{0.0, LabelStationary},
		{0.0999, LabelStationary},
		{0.1, LabelSlow},
		{0.4999, LabelSlow},
		{0.5, LabelFast},
		{3, LabelFast},
	}
	for _, tt := range tests {
		got, err := vs.Apply(nil, []episode.Annotation{ann("vel", tt.vel)})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "vel=%v", tt.vel)
	}
}

func TestScalarSummaries(t *testing.T) {
	gs := mustNew(t, Config{Type: TypeGripperSummary, Name: "gs", Params: map[string]any{"gripper_key": "g", "threshold": 0.3}})
	gms := mustNew(t, Config{Type: TypeGripperMovementSummary, Name: "gms", Params: map[string]any{"gripper_movement_key": "gm"}})
	as := mustNew(t, Config{Type: TypeAccelerationSummary, Name: "as", Params: map[string]any{"accel_key": "a"}})

	tests := []struct {
		op   Operator
		rec  episode.Annotation
		want string
	}{
		{gs, ann("g", 0.31), LabelOpen},
		{gs, ann("g", 0.3), LabelClosed},
		{gms, ann("gm", 0.01), LabelOpening},
		{gms, ann("gm", -0.01), LabelClosing},
		{gms, ann("gm", 0.001), LabelHolding},
		{as, ann("a", -0.001), LabelDecelerating},
		{as, ann("a", 0.001), LabelAccelerating},
		{as, ann("a", 0.0), LabelConstant},
	}
	for _, tt := range tests {
		got, err := tt.op.Apply(nil, []episode.Annotation{tt.rec})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s on %v", tt.op.Name(), tt.rec)
	}
}

func TestClassifyLookup(t *testing.T) {
	configured := func(name string) bool { return name == "pos_left" }

	err := ClassifyLookup("mov", &episode.KeyError{Source: episode.SourceAnnotation, Key: "pos_left"}, configured)
	var missing *MissingDependencyError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "pos_left", missing.Dependency)
	assert.ErrorIs(t, err, ErrMissingDependency)

	err = ClassifyLookup("mov", &episode.KeyError{Source: episode.SourceAnnotation, Key: "pos_typo"}, configured)
	assert.ErrorIs(t, err, ErrUnknownKey)

	err = ClassifyLookup("pos", &episode.KeyError{Source: episode.SourceFrame, Key: "pos_left"}, configured)
	assert.ErrorIs(t, err, ErrUnknownKey)

	other := errors.New("boom")
	assert.Equal(t, other, ClassifyLookup("x", other, configured))
}
