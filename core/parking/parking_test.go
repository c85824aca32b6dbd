package parking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"example.com/fuzzy-park/core/fuzzy"
)

func TestNewEngine(t *testing.T) {
	e, err := NewEngine(zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Len(t, e.Rules(), len(Rules))
	assert.Len(t, e.Inputs(), 2)
	assert.Len(t, e.Outputs(), 2)

	e.Evaluate()
	assert.Zero(t, e.Skipped())
}

func TestRuleBase(t *testing.T) {
	tests := []struct {
		name     string
		angle    float64
		distance float64
		speed    float64
		steering float64
	}{
		// Zero AND Far and Zero both fire: ForwardFast and ReverseFast share
		// the speed output.
		{name: "Aligned far", angle: 0, distance: 17, speed: -4.875 / 8.25, steering: 0},
		{name: "Small right near", angle: 20, distance: 0, speed: -9, steering: 16.42857142857143},
		{name: "Small left near", angle: -20, distance: 0, speed: -9, steering: -16.428571428571427},
		{name: "Far behind right", angle: 170, distance: 0, speed: -3.4444444444444446, steering: 38.93939393939394},
	}

	e, err := NewEngine(zaptest.NewLogger(t))
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, e.SetInput(AngleInput, tt.angle))
			require.NoError(t, e.SetInput(DistanceInput, tt.distance))
			e.Evaluate()
			speed, err := e.GetOutput(SpeedOutput)
			require.NoError(t, err)
			steering, err := e.GetOutput(SteeringOutput)
			require.NoError(t, err)
			assert.InDelta(t, tt.speed, speed, 1e-9)
			assert.InDelta(t, tt.steering, steering, 1e-9)
		})
	}
}

func TestControllerStep(t *testing.T) {
	e, err := NewEngine(zaptest.NewLogger(t))
	require.NoError(t, err)
	c := NewController(zaptest.NewLogger(t), e)
	assert.Equal(t, 12.0, c.Regulator.Span)

	cmd, err := c.Step(Observation{Angle: 20, Distance: 0})
	require.NoError(t, err)
	assert.InDelta(t, -9, cmd.Speed, 1e-9)
	assert.InDelta(t, 16.42857142857143, cmd.SteerAngle, 1e-9)
	assert.Less(t, cmd.Torque, 0.0)
	assert.GreaterOrEqual(t, cmd.Torque, -DefaultMotorTorque)

	cmd, err = c.Step(Observation{Angle: 170, Distance: 0})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSteeringAngle, cmd.SteerAngle)
	assert.Greater(t, cmd.Steering, DefaultMaxSteeringAngle)
}

func TestControllerSpeedSpanIgnoresCase(t *testing.T) {
	e := fuzzy.NewEngine(zaptest.NewLogger(t))
	for _, v := range Inputs() {
		require.NoError(t, e.AddInput(v))
	}
	outs := Outputs()
	outs[0].Name = " speed"
	for _, v := range outs {
		require.NoError(t, e.AddOutput(v))
	}
	c := NewController(nil, e)
	assert.Equal(t, 12.0, c.Regulator.Span)

	cmd, err := c.Step(Observation{Angle: 20, Distance: 0})
	require.NoError(t, err)
	assert.InDelta(t, -9, cmd.Speed, 1e-9)
}

func TestControllerMissingInput(t *testing.T) {
	e := fuzzy.NewEngine(zaptest.NewLogger(t))
	require.NoError(t, e.AddInput(Inputs()[0]))
	for _, v := range Outputs() {
		require.NoError(t, e.AddOutput(v))
	}
	c := NewController(nil, e)

	_, err := c.Step(Observation{})
	var cerr *fuzzy.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, DistanceInput, cerr.Name)
}

func TestSpot(t *testing.T) {
	tests := []struct {
		name         string
		spot         Spot
		distance     float64
		misalignment float64
		want         bool
	}{
		{name: "Inside", spot: DefaultSpot(), distance: 4, misalignment: 10, want: true},
		{name: "On tolerance", spot: DefaultSpot(), distance: 5, misalignment: 180, want: true},
		{name: "Too far", spot: DefaultSpot(), distance: 6, misalignment: 0, want: false},
		{name: "Misaligned", spot: Spot{Tolerance: 5, AngleTolerance: 10}, distance: 1, misalignment: -15, want: false},
		{name: "Aligned", spot: Spot{Tolerance: 5, AngleTolerance: 10}, distance: 1, misalignment: -5, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spot.IsParked(tt.distance, tt.misalignment))
		})
	}
}
