package parking

import (
	"go.uber.org/zap"

	"example.com/fuzzy-park/core/fuzzy"
)

const (
	AngleInput     = "AngleToParkingSpot"
	DistanceInput  = "DistanceToObstacle"
	SpeedOutput    = "Speed"
	SteeringOutput = "Steering"
)

// Inputs returns the input variables of the parking controller. Angles are in
// degrees (negative to the left), distances in meters.
func Inputs() []fuzzy.Variable {
	return []fuzzy.Variable{
		fuzzy.NewVariable(AngleInput,
			fuzzy.NewMembershipFunction("VeryNegative", -180, -180, -135, -90),
			fuzzy.NewMembershipFunction("NegativeLarge", -135, -90, -90, -45),
			fuzzy.NewMembershipFunction("NegativeSmall", -60, -30, -15, 0),
			fuzzy.NewMembershipFunction("Zero", -5, 0, 0, 5),
			fuzzy.NewMembershipFunction("PositiveSmall", 0, 15, 30, 60),
			fuzzy.NewMembershipFunction("PositiveLarge", 45, 90, 90, 135),
			fuzzy.NewMembershipFunction("VeryPositive", 90, 135, 180, 180),
		),
		fuzzy.NewVariable(DistanceInput,
			fuzzy.NewMembershipFunction("Near", 0, 0, 2, 5),
			fuzzy.NewMembershipFunction("Medium", 3, 6, 8, 11),
			fuzzy.NewMembershipFunction("Far", 10, 15, 20, 25),
		),
	}
}

// Outputs returns the output variables: signed speed (negative reverses) and
// steering angle in degrees.
func Outputs() []fuzzy.Variable {
	return []fuzzy.Variable{
		fuzzy.NewVariable(SpeedOutput,
			fuzzy.NewMembershipFunction("ForwardSlow", 1, 2, 3, 4),
			fuzzy.NewMembershipFunction("ForwardModerate", 3, 5, 6, 8),
			fuzzy.NewMembershipFunction("ForwardFast", 7, 9, 10, 12),
			fuzzy.NewMembershipFunction("Stop", 0, 0, 0, 0),
			fuzzy.NewMembershipFunction("ReverseSlow", -5, -5, -3, -1),
			fuzzy.NewMembershipFunction("ReverseModerate", -8, -6, -5, -3),
			fuzzy.NewMembershipFunction("ReverseFast", -12, -10, -8, -6),
		),
		fuzzy.NewVariable(SteeringOutput,
			fuzzy.NewMembershipFunction("SharpLeft", -60, -45, -30, -20),
			fuzzy.NewMembershipFunction("Left", -30, -20, -10, -5),
			fuzzy.NewMembershipFunction("Straight", -2, 0, 0, 2),
			fuzzy.NewMembershipFunction("Right", 5, 10, 20, 30),
			fuzzy.NewMembershipFunction("SharpRight", 20, 30, 45, 60),
		),
	}
}

// Rules is the parking rule base. Forward rules apply while the obstacle is
// medium or far away; the reverse rules depend on the angle only.
var Rules = []string{
	"IF AngleToParkingSpot IS Zero AND DistanceToObstacle IS Far THEN Speed IS ForwardFast AND Steering IS Straight",
	"IF AngleToParkingSpot IS PositiveSmall AND DistanceToObstacle IS Far THEN Speed IS ForwardModerate AND Steering IS Right",
	"IF AngleToParkingSpot IS NegativeSmall AND DistanceToObstacle IS Far THEN Speed IS ForwardModerate AND Steering IS Left",
	"IF AngleToParkingSpot IS PositiveLarge AND DistanceToObstacle IS Far THEN Speed IS ForwardSlow AND Steering IS Right",
	"IF AngleToParkingSpot IS NegativeLarge AND DistanceToObstacle IS Far THEN Speed IS ForwardSlow AND Steering IS Left",

	"IF AngleToParkingSpot IS VeryNegative THEN Speed IS ReverseSlow AND Steering IS SharpLeft",
	"IF AngleToParkingSpot IS NegativeLarge THEN Speed IS ReverseModerate AND Steering IS Left",
	"IF AngleToParkingSpot IS NegativeSmall THEN Speed IS ReverseFast AND Steering IS Left",
	"IF AngleToParkingSpot IS Zero THEN Speed IS ReverseFast AND Steering IS Straight",
	"IF AngleToParkingSpot IS PositiveSmall THEN Speed IS ReverseFast AND Steering IS Right",
	"IF AngleToParkingSpot IS PositiveLarge THEN Speed IS ReverseModerate AND Steering IS Right",
	"IF AngleToParkingSpot IS VeryPositive THEN Speed IS ReverseSlow AND Steering IS SharpRight",

	"IF AngleToParkingSpot IS Zero AND DistanceToObstacle IS Medium THEN Speed IS ForwardModerate AND Steering IS Straight",
	"IF AngleToParkingSpot IS PositiveSmall AND DistanceToObstacle IS Medium THEN Speed IS ForwardSlow AND Steering IS Right",
	"IF AngleToParkingSpot IS NegativeSmall AND DistanceToObstacle IS Medium THEN Speed IS ForwardSlow AND Steering IS Left",
}

// NewEngine returns a compiled engine loaded with the parking rule base.
func NewEngine(log *zap.Logger) (*fuzzy.Engine, error) {
	e := fuzzy.NewEngine(log)
	for _, v := range Inputs() {
		if err := e.AddInput(v); err != nil {
			return nil, err
		}
	}
	for _, v := range Outputs() {
		if err := e.AddOutput(v); err != nil {
			return nil, err
		}
	}
	for _, r := range Rules {
		if err := e.AddRule(r); err != nil {
			return nil, err
		}
	}
	if err := e.Compile(); err != nil {
		return nil, err
	}
	return e, nil
}
