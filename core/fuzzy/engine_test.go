package fuzzy

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func angleVariable() Variable {
	return NewVariable("Angle",
		NewMembershipFunction("Negative", -60, -30, -15, 0),
		NewMembershipFunction("Zero", -5, 0, 0, 5),
		NewMembershipFunction("Positive", 0, 15, 30, 60),
	)
}

func distanceVariable() Variable {
	return NewVariable("Distance",
		NewMembershipFunction("Near", 0, 0, 2, 5),
		NewMembershipFunction("Medium", 3, 6, 8, 11),
		NewMembershipFunction("Far", 10, 15, 20, 25),
	)
}

func steeringVariable() Variable {
	return NewVariable("Steering",
		NewMembershipFunction("Left", -30, -20, -10, -5),
		NewMembershipFunction("Straight", -2, 0, 0, 2),
		NewMembershipFunction("Right", 5, 10, 20, 30),
	)
}

func speedVariable() Variable {
	return NewVariable("Speed",
		NewMembershipFunction("Stop", 0, 0, 0, 0),
		NewMembershipFunction("Slow", 1, 2, 3, 4),
		NewMembershipFunction("Fast", 7, 9, 10, 12),
	)
}

var testRules = []string{
	"IF Angle IS Zero AND Distance IS Far THEN Speed IS Fast AND Steering IS Straight",
	"IF Angle IS Positive THEN Steering IS Right AND Speed IS Slow",
	"IF Angle IS Negative THEN Steering IS Left AND Speed IS Slow",
	"IF (Angle IS Zero) AND (Distance IS Medium OR Distance IS Near) THEN Speed IS Slow",
	"IF Distance IS Near THEN Speed IS Stop",
}

func newTestEngine(t *testing.T, rules []string) *Engine {
	t.Helper()
	e := NewEngine(zaptest.NewLogger(t))
	require.NoError(t, e.AddInput(angleVariable()))
	require.NoError(t, e.AddInput(distanceVariable()))
	require.NoError(t, e.AddOutput(steeringVariable()))
	require.NoError(t, e.AddOutput(speedVariable()))
	for _, r := range rules {
		require.NoError(t, e.AddRule(r))
	}
	require.NoError(t, e.Compile())
	return e
}

func outputs(t *testing.T, e *Engine) (steering, speed float64) {
	t.Helper()
	steering, err := e.GetOutput("Steering")
	require.NoError(t, err)
	speed, err = e.GetOutput("Speed")
	require.NoError(t, err)
	return steering, speed
}

func TestEngineFuzzifiesInput(t *testing.T) {
	e := newTestEngine(t, nil)
	require.NoError(t, e.SetInput("Angle", 0))
	v, err := e.State().Input("Angle")
	require.NoError(t, err)
	assert.Equal(t, 1.0, angleVariable().Sets[1].Fuzzify(v))
}

func TestEngineSingleRuleYieldsCentroid(t *testing.T) {
	e := newTestEngine(t, []string{"IF Angle IS Zero THEN Steering IS Straight"})
	require.NoError(t, e.SetInput("Angle", 0))
	e.Evaluate()

	assert.Equal(t, 1.0, e.State().Strength(0))
	got, err := e.GetOutput("Steering")
	require.NoError(t, err)
	assert.Equal(t, steeringVariable().Sets[1].Centroid(), got)
}

func TestEngineSingleRuleAsymmetricSet(t *testing.T) {
	e := newTestEngine(t, []string{"IF Angle IS Zero THEN Steering IS Right"})
	require.NoError(t, e.SetInput("Angle", 0))
	e.Evaluate()

	got, err := e.GetOutput("Steering")
	require.NoError(t, err)
	assert.InDelta(t, steeringVariable().Sets[2].Centroid(), got, 1e-12)
}

func TestEngineMaxAggregation(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))
	ramp := NewMembershipFunction("Ramp", 0, 10, 20, 30)
	require.NoError(t, e.AddInput(NewVariable("X", ramp)))
	require.NoError(t, e.AddInput(NewVariable("Y", ramp)))
	require.NoError(t, e.AddOutput(steeringVariable()))
	require.NoError(t, e.AddRule("IF X IS Ramp THEN Steering IS Right"))
	require.NoError(t, e.AddRule("IF Y IS Ramp THEN Steering IS Right"))

	require.NoError(t, e.SetInput("X", 3))
	require.NoError(t, e.SetInput("Y", 7))
	e.Evaluate()

	assert.Equal(t, 0.3, e.State().Strength(0))
	assert.Equal(t, 0.7, e.State().Strength(1))
	act, err := e.State().Activation("Steering", "Right")
	require.NoError(t, err)
	assert.Equal(t, 0.7, act)
}

func TestEngineNestedEqualsFlat(t *testing.T) {
	e := newTestEngine(t, []string{
		"IF ((Angle IS Zero) AND (Distance IS Far)) THEN Speed IS Fast",
		"IF Angle IS Zero AND Distance IS Far THEN Speed IS Fast",
		"IF (((Angle IS Zero)) AND Distance IS Far) THEN Speed IS Fast",
	})
	for _, in := range [][2]float64{{2, 12}, {0, 17}, {-4, 24}, {9, 12}} {
		require.NoError(t, e.SetInput("Angle", in[0]))
		require.NoError(t, e.SetInput("Distance", in[1]))
		e.Evaluate()
		s := e.State()
		assert.Equal(t, s.Strength(1), s.Strength(0), "inputs %v", in)
		assert.Equal(t, s.Strength(1), s.Strength(2), "inputs %v", in)
	}
	require.NoError(t, e.SetInput("Angle", 2))
	require.NoError(t, e.SetInput("Distance", 12))
	e.Evaluate()
	assert.InDelta(t, 0.4, e.State().Strength(0), 1e-12)
}

func TestEngineLeftToRightFolding(t *testing.T) {
	e := newTestEngine(t, []string{
		"IF 0.9 OR 0.1 AND 0.2 THEN Speed IS Fast",
		"IF 0.9 OR (0.1 AND 0.2) THEN Speed IS Fast",
		"IF 0.2 AND 0.9 OR 0.5 THEN Speed IS Fast",
		"IF 1.5 THEN Speed IS Fast",
	})
	e.Evaluate()
	s := e.State()
	assert.Equal(t, 0.2, s.Strength(0))
	assert.Equal(t, 0.9, s.Strength(1))
	assert.Equal(t, 0.5, s.Strength(2))
	assert.Equal(t, 1.5, s.Strength(3))
}

func TestEngineOrderIndependence(t *testing.T) {
	inputs := [][2]float64{{0, 17}, {2, 12}, {-20, 4}, {40, 9}, {-3, 1}, {100, 30}}

	ref := newTestEngine(t, testRules)
	want := make([][2]float64, len(inputs))
	for i, in := range inputs {
		require.NoError(t, ref.SetInput("Angle", in[0]))
		require.NoError(t, ref.SetInput("Distance", in[1]))
		ref.Evaluate()
		want[i][0], want[i][1] = outputs(t, ref)
	}

	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 10; n++ {
		rules := append([]string(nil), testRules...)
		rng.Shuffle(len(rules), func(i, j int) { rules[i], rules[j] = rules[j], rules[i] })
		e := newTestEngine(t, rules)
		for i, in := range inputs {
			require.NoError(t, e.SetInput("Angle", in[0]))
			require.NoError(t, e.SetInput("Distance", in[1]))
			e.Evaluate()
			steering, speed := outputs(t, e)
			assert.Equal(t, want[i][0], steering, "permutation %d inputs %v", n, in)
			assert.Equal(t, want[i][1], speed, "permutation %d inputs %v", n, in)
		}
	}
}

func TestEngineIdempotentEvaluate(t *testing.T) {
	e := newTestEngine(t, testRules)
	require.NoError(t, e.SetInput("Angle", 3))
	require.NoError(t, e.SetInput("Distance", 14))
	e.Evaluate()
	steering1, speed1 := outputs(t, e)
	e.Evaluate()
	steering2, speed2 := outputs(t, e)
	assert.Equal(t, steering1, steering2)
	assert.Equal(t, speed1, speed2)
}

func TestEngineResetsActivation(t *testing.T) {
	e := newTestEngine(t, testRules)
	require.NoError(t, e.SetInput("Angle", 20))
	e.Evaluate()
	fired, err := e.Fired("Steering")
	require.NoError(t, err)
	require.True(t, fired)

	require.NoError(t, e.SetInput("Angle", 500))
	require.NoError(t, e.SetInput("Distance", 500))
	e.Evaluate()
	fired, err = e.Fired("Steering")
	require.NoError(t, err)
	assert.False(t, fired)
	steering, speed := outputs(t, e)
	assert.Equal(t, 0.0, steering)
	assert.Equal(t, 0.0, speed)
}

func TestEngineZeroOutputBeforeEvaluate(t *testing.T) {
	e := newTestEngine(t, testRules)
	steering, speed := outputs(t, e)
	assert.Equal(t, 0.0, steering)
	assert.Equal(t, 0.0, speed)
}

func TestEngineCaseInsensitiveNames(t *testing.T) {
	e := newTestEngine(t, []string{"IF  angle is ZERO THEN steering IS straight"})
	require.NoError(t, e.SetInput("  ANGLE ", 0))
	e.Evaluate()
	assert.Equal(t, 1.0, e.State().Strength(0))
	act, err := e.State().Activation(" Steering", "STRAIGHT")
	require.NoError(t, err)
	assert.Equal(t, 1.0, act)
}

func TestEngineUnknownNames(t *testing.T) {
	e := newTestEngine(t, testRules)

	err := e.SetInput("Heading", 1)
	var cerr *ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "Heading", cerr.Name)

	_, err = e.GetOutput("Throttle")
	require.ErrorAs(t, err, &cerr)
	assert.ErrorIs(t, err, ErrNotFound)

	// The engine stays usable after API misuse.
	require.NoError(t, e.SetInput("Angle", 0))
	require.NoError(t, e.SetInput("Distance", 17))
	e.Evaluate()
	speed, err := e.GetOutput("Speed")
	require.NoError(t, err)
	assert.Greater(t, speed, 0.0)
}

func TestEngineSkipsUnresolvedRules(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))
	require.NoError(t, e.AddInput(angleVariable()))
	require.NoError(t, e.AddOutput(steeringVariable()))
	require.NoError(t, e.AddRule("IF Heading IS Zero THEN Steering IS Left"))
	require.NoError(t, e.AddRule("IF Angle IS Sideways THEN Steering IS Left"))
	require.NoError(t, e.AddRule("IF Angle IS Zero THEN Throttle IS Left"))
	require.NoError(t, e.AddRule("IF Angle IS Zero THEN Steering IS Hard"))
	require.NoError(t, e.AddRule("IF Angle IS Zero THEN Steering IS Straight"))

	err := e.Compile()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var rerr *RuleError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 0, rerr.Index)
	var nerr *NotFoundError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "Heading", nerr.Name)

	require.NoError(t, e.SetInput("Angle", 0))
	e.Evaluate()
	assert.Equal(t, 4, e.Skipped())
	left, err := e.State().Activation("Steering", "Left")
	require.NoError(t, err)
	assert.Equal(t, 0.0, left)
	straight, err := e.State().Activation("Steering", "Straight")
	require.NoError(t, err)
	assert.Equal(t, 1.0, straight)
}

func TestEngineConfigurationErrors(t *testing.T) {
	e := NewEngine(nil)
	require.NoError(t, e.AddInput(angleVariable()))

	err := e.AddInput(NewVariable(" angle "))
	assert.ErrorIs(t, err, ErrDuplicate)

	err = e.AddInput(NewVariable("  "))
	assert.ErrorIs(t, err, ErrEmptyName)

	err = e.AddOutput(NewVariable("Speed",
		NewMembershipFunction("Slow", 1, 2, 3, 4),
		NewMembershipFunction("SLOW", 1, 2, 3, 4),
	))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, e.Outputs())

	err = e.AddRule("Angle IS Zero THEN Speed IS Slow")
	var ferr *FormatError
	assert.ErrorAs(t, err, &ferr)
	assert.Empty(t, e.Rules())

	require.NoError(t, e.AddOutput(speedVariable()))
	require.NoError(t, e.AddRule("IF Angle IS Zero THEN Speed IS Slow"))
	require.NoError(t, e.Compile())

	assert.ErrorIs(t, e.AddRule("IF Angle IS Zero THEN Speed IS Fast"), ErrFrozen)
	assert.ErrorIs(t, e.AddInput(distanceVariable()), ErrFrozen)
	assert.Len(t, e.Rules(), 1)
}

func TestEngineIndependentStates(t *testing.T) {
	e := newTestEngine(t, testRules)
	a, b := e.NewState(), e.NewState()
	require.NoError(t, a.SetInput("Angle", 20))
	require.NoError(t, b.SetInput("Angle", -20))
	a.Evaluate()
	b.Evaluate()

	sa, err := a.Output("Steering")
	require.NoError(t, err)
	sb, err := b.Output("Steering")
	require.NoError(t, err)
	assert.Greater(t, sa, 0.0)
	assert.Less(t, sb, 0.0)
	assert.InDelta(t, sa, -sb, 1e-9)

	steering, _ := outputs(t, e)
	assert.Equal(t, 0.0, steering)
}

func TestEngineErrorMessages(t *testing.T) {
	e := newTestEngine(t, nil)
	err := e.SetInput("Heading", 1)
	assert.EqualError(t, err, `set input "Heading": input variable not found: "Heading"`)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOutputVariable(t *testing.T) {
	e := NewEngine(zaptest.NewLogger(t))
	require.NoError(t, e.AddOutput(steeringVariable()))

	v, err := e.OutputVariable("  STEERING ")
	require.NoError(t, err)
	assert.Equal(t, "Steering", v.Name)

	_, err = e.OutputVariable("Speed")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluateWithoutDebugDoesNotAllocate(t *testing.T) {
	e := NewEngine(zap.NewNop())
	require.NoError(t, e.AddInput(angleVariable()))
	require.NoError(t, e.AddInput(distanceVariable()))
	require.NoError(t, e.AddOutput(steeringVariable()))
	require.NoError(t, e.AddRule("IF Angle IS Positive AND Distance IS Far THEN Steering IS Straight"))
	require.NoError(t, e.AddRule("IF (Angle IS Zero OR Angle IS Negative) THEN Steering IS Left"))
	require.NoError(t, e.Compile())

	s := e.NewState()
	require.NoError(t, s.SetInput("Angle", 20))
	require.NoError(t, s.SetInput("Distance", 17))
	allocs := testing.AllocsPerRun(100, s.Evaluate)
	assert.Zero(t, allocs)
}
