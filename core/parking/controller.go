package parking

import (
	"math"

	"go.uber.org/zap"

	"example.com/fuzzy-park/base/floats"
	"example.com/fuzzy-park/base/zaplog"
	"example.com/fuzzy-park/core/fuzzy"
	"example.com/fuzzy-park/core/pi"
)

const (
	DefaultMaxSteeringAngle = 30.0
	DefaultMotorTorque      = 1500.0
	DefaultTolerance        = 5.0
	DefaultAngleTolerance   = 180.0
)

// Observation is what the vehicle reports each tick.
type Observation struct {
	// Angle is the signed angle from the vehicle heading to the spot center,
	// in degrees.
	Angle float64
	// Distance is the distance to the nearest obstacle.
	Distance float64
	// Speed is the current signed vehicle speed.
	Speed float64
	// SpotDistance is the distance from the vehicle to the spot center.
	SpotDistance float64
	// Misalignment is the angle between the vehicle and spot headings, in
	// degrees.
	Misalignment float64
}

type Command struct {
	Speed      float64
	Steering   float64
	SteerAngle float64
	Torque     float64
	Skipped    int
}

// Spot is a parking spot acceptance region.
type Spot struct {
	Tolerance      float64
	AngleTolerance float64
}

func DefaultSpot() Spot {
	return Spot{Tolerance: DefaultTolerance, AngleTolerance: DefaultAngleTolerance}
}

func (s Spot) IsParked(distance, misalignment float64) bool {
	return distance <= s.Tolerance && math.Abs(misalignment) <= s.AngleTolerance
}

// Controller turns observations into wheel commands: the fuzzy engine yields a
// target speed and a steering angle, and a fuzzy PI regulator tracks the
// target speed with motor torque.
type Controller struct {
	Log              *zap.Logger
	Engine           *fuzzy.Engine
	Regulator        *pi.FuzzyController
	MaxSteeringAngle float64
	MotorTorque      float64
}

func NewController(log *zap.Logger, eng *fuzzy.Engine) *Controller {
	if log == nil {
		log = zaplog.Logger()
	}
	span := 1.0
	if v, err := eng.OutputVariable(SpeedOutput); err == nil && len(v.Sets) != 0 {
		span = math.Max(math.Abs(v.Min()), math.Abs(v.Max()))
	}
	return &Controller{
		Log:              log,
		Engine:           eng,
		Regulator:        &pi.FuzzyController{Log: log, Span: span},
		MaxSteeringAngle: DefaultMaxSteeringAngle,
		MotorTorque:      DefaultMotorTorque,
	}
}

func (c *Controller) Step(o Observation) (Command, error) {
	if err := c.Engine.SetInput(AngleInput, o.Angle); err != nil {
		return Command{}, err
	}
	if err := c.Engine.SetInput(DistanceInput, o.Distance); err != nil {
		return Command{}, err
	}
	c.Engine.Evaluate()

	speed, err := c.Engine.GetOutput(SpeedOutput)
	if err != nil {
		return Command{}, err
	}
	steering, err := c.Engine.GetOutput(SteeringOutput)
	if err != nil {
		return Command{}, err
	}

	u := c.Regulator.Do(speed - o.Speed)
	cmd := Command{
		Speed:      speed,
		Steering:   steering,
		SteerAngle: floats.Clamp(steering, -c.MaxSteeringAngle, c.MaxSteeringAngle),
		Torque:     floats.Clamp(u, -1, 1) * c.MotorTorque,
		Skipped:    c.Engine.Skipped(),
	}
	c.Log.Debug("control step",
		zap.Float64("angle", o.Angle),
		zap.Float64("distance", o.Distance),
		zap.Float64("speed", o.Speed),
		zap.Float64("target_speed", cmd.Speed),
		zap.Float64("steer_angle", cmd.SteerAngle),
		zap.Float64("torque", cmd.Torque),
	)
	return cmd, nil
}
