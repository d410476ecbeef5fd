package pipeline

import "github.com/siqueiraa/labelflow/pkg/operator"

// DefaultPresetName names the built-in dual-arm pipeline.
const DefaultPresetName = "dual_arm"

// DefaultStateKey is the LeRobot state column.
const DefaultStateKey = "observation.state"

// DefaultPreset is the dual-arm pipeline for a 20-dimension state vector:
// xyz at [0,3) and [10,13), Euler angles at [3,6) and [13,16) for the left
// and right arm.
func DefaultPreset() Pipeline {
	return DefaultPresetFor(DefaultStateKey)
}

// DefaultPresetFor is DefaultPreset reading from another state column.
func DefaultPresetFor(stateKey string) Pipeline {
	var ops []operator.Config
	add := func(typ, name string, window int, params map[string]any) {
		ops = append(ops, operator.Config{Type: typ, Name: name, WindowSize: window, Params: params})
	}

	arms := []struct {
		side     string
		xyz, rpy []int
	}{
		{side: "left", xyz: []int{0, 3}, rpy: []int{3, 6}},
		{side: "right", xyz: []int{10, 13}, rpy: []int{13, 16}},
	}
	for _, a := range arms {
		add(operator.TypePosition, "pos_"+a.side, 1, map[string]any{"state_key": stateKey, "xyz_range": a.xyz})
	}
	for _, a := range arms {
		add(operator.TypeDirection, "dir_"+a.side, 1, map[string]any{"state_key": stateKey, "rpy_range": a.rpy})
	}
	for _, a := range arms {
		add(operator.TypeMovement, "mov_"+a.side, 10, map[string]any{"position_key": "pos_" + a.side})
	}
	for _, a := range arms {
		add(operator.TypeVelocity, "vel_"+a.side, 1, map[string]any{"movement_key": "mov_" + a.side})
	}
	for _, a := range arms {
		add(operator.TypeAcceleration, "accel_"+a.side, 5, map[string]any{"vel_key": "vel_" + a.side})
	}
	for _, a := range arms {
		add(operator.TypeMovementSummary, "mov_summary_"+a.side, 0, map[string]any{"movement_key": "mov_" + a.side})
	}
	for _, a := range arms {
		add(operator.TypeVelocitySummary, "vel_summary_"+a.side, 0, map[string]any{"vel_key": "vel_" + a.side})
	}
	for _, a := range arms {
		add(operator.TypeAccelerationSummary, "accel_summary_"+a.side, 0, map[string]any{"accel_key": "accel_" + a.side})
	}

	return Pipeline{
		Name:        DefaultPresetName,
		Description: "position, direction, kinematics and summaries for both arms",
		StrictOrder: true,
		Operators:   ops,
	}
}
