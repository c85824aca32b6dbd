package pi

import (
	"math"

	"go.uber.org/zap"

	"example.com/fuzzy-park/base/floats"
	"example.com/fuzzy-park/base/zaplog"
	"example.com/fuzzy-park/core/fuzzy"
)

const (
	DefaultWindowSize    = 8
	DefaultReversalLimit = 4
	DefaultIntegralLimit = 1.0

	defaultKP = 0.1
	defaultKI = 0.1

	minKP, maxKP = 0.01, 0.5
	minKI, maxKI = 0.01, 0.6

	oscillationStdDev = 0.2
	settledError      = 0.06
	fastDelta         = 0.2
)

// Names of the gain schedule variables.
const (
	ErrorInput = "Error"
	DeltaInput = "Delta"
	KPOutput   = "KP"
	KIOutput   = "KI"
)

var (
	errorSets = []fuzzy.MembershipFunction{
		fuzzy.NewMembershipFunction("Small", 0, 0, 0.1, 0.2),
		fuzzy.NewMembershipFunction("Medium", 0.1, 0.5, 0.5, 1.0),
		fuzzy.NewMembershipFunction("Large", 0.8, 1.0, 1.0, 1.0),
	}
	deltaSets = []fuzzy.MembershipFunction{
		fuzzy.NewMembershipFunction("Negative", -1, -1, -0.5, 0),
		fuzzy.NewMembershipFunction("Zero", -0.1, 0, 0, 0.1),
		fuzzy.NewMembershipFunction("Positive", 0, 0.5, 1, 1),
	}
	kpSets = []fuzzy.MembershipFunction{
		fuzzy.NewMembershipFunction("Low", 0.01, 0.02, 0.08, 0.12),
		fuzzy.NewMembershipFunction("Medium", 0.08, 0.12, 0.18, 0.25),
		fuzzy.NewMembershipFunction("High", 0.2, 0.25, 0.4, 0.5),
	}
	kiSets = []fuzzy.MembershipFunction{
		fuzzy.NewMembershipFunction("Low", 0.01, 0.01, 0.05, 0.1),
		fuzzy.NewMembershipFunction("Medium", 0.08, 0.1, 0.3, 0.35),
		fuzzy.NewMembershipFunction("High", 0.3, 0.4, 0.6, 0.6),
	}

	scheduleRules = []string{
		"IF Error IS Small AND Delta IS Negative THEN KP IS Low AND KI IS High",
		"IF Error IS Small AND Delta IS Zero THEN KP IS Low AND KI IS High",
		"IF Error IS Small AND Delta IS Positive THEN KP IS Low AND KI IS Medium",
		"IF Error IS Medium AND Delta IS Negative THEN KP IS Medium AND KI IS Medium",
		"IF Error IS Medium AND Delta IS Zero THEN KP IS Medium AND KI IS Medium",
		"IF Error IS Medium AND Delta IS Positive THEN KP IS High AND KI IS Low",
		"IF Error IS Large AND Delta IS Negative THEN KP IS Medium AND KI IS Low",
		"IF Error IS Large AND Delta IS Zero THEN KP IS High AND KI IS Low",
		"IF Error IS Large AND Delta IS Positive THEN KP IS High AND KI IS Low",
	}
)

// NewSchedule returns the fuzzy engine that maps the normalized error
// magnitude and its change to proportional and integral gains.
func NewSchedule(log *zap.Logger) (*fuzzy.Engine, error) {
	e := fuzzy.NewEngine(log)
	if err := e.AddInput(fuzzy.NewVariable(ErrorInput, errorSets...)); err != nil {
		return nil, err
	}
	if err := e.AddInput(fuzzy.NewVariable(DeltaInput, deltaSets...)); err != nil {
		return nil, err
	}
	if err := e.AddOutput(fuzzy.NewVariable(KPOutput, kpSets...)); err != nil {
		return nil, err
	}
	if err := e.AddOutput(fuzzy.NewVariable(KIOutput, kiSets...)); err != nil {
		return nil, err
	}
	for _, r := range scheduleRules {
		if err := e.AddRule(r); err != nil {
			return nil, err
		}
	}
	if err := e.Compile(); err != nil {
		return nil, err
	}
	return e, nil
}

// FuzzyController is a PI controller whose gains are scheduled by a fuzzy
// engine and then scaled down when the error oscillates and up while it stays
// away from zero. Errors are normalized by Span before use, so the returned
// control value is in the same normalized units.
type FuzzyController struct {
	Log           *zap.Logger
	Span          float64
	WindowSize    int
	ReversalLimit int
	IntegralLimit float64

	KP, KI float64

	schedule    *fuzzy.State
	prevErr     float64
	prevDelta   float64
	reversals   int
	p, i        float64
	window      []float64
	windowIndex int
}

func (c *FuzzyController) init() {
	if c.schedule != nil {
		return
	}
	if c.Log == nil {
		c.Log = zaplog.Logger()
	}
	if c.Span <= 0 {
		c.Span = 1
	}
	if c.WindowSize <= 0 {
		c.WindowSize = DefaultWindowSize
	}
	if c.ReversalLimit <= 0 {
		c.ReversalLimit = DefaultReversalLimit
	}
	if c.IntegralLimit <= 0 {
		c.IntegralLimit = DefaultIntegralLimit
	}
	e, err := NewSchedule(c.Log)
	if err != nil {
		panic("unexpected gain schedule error: " + err.Error())
	}
	c.schedule = e.NewState()
}

// Do consumes one error sample and returns the control value.
func (c *FuzzyController) Do(err float64) float64 {
	c.init()

	e := floats.Clamp(err/c.Span, -1, 1)
	delta := e - c.prevErr

	// Slope reversals
	if (delta > 0 && c.prevDelta < 0) || (delta < 0 && c.prevDelta > 0) {
		c.reversals++
	}
	c.prevDelta = delta
	c.prevErr = e

	c.addToWindow(e)
	mean := floats.Mean(c.window)
	stddev := floats.StdDev(c.window)

	c.KP, c.KI = c.gains(e, delta)

	kpScale, kiScale := 1.0, 1.0
	if c.reversals >= c.ReversalLimit || stddev > oscillationStdDev {
		kpScale *= 0.9
		kiScale *= 0.95
		c.reversals = 0
	}
	if math.Abs(mean) > settledError {
		if math.Abs(delta) > fastDelta {
			kpScale *= 1.15
			kiScale *= 0.9
		} else {
			kpScale *= 1.05
			kiScale *= 1.05
		}
	} else {
		kpScale *= 0.95
		kiScale *= 0.95
	}
	c.KP = floats.Clamp(c.KP*kpScale, minKP, maxKP)
	c.KI = floats.Clamp(c.KI*kiScale, minKI, maxKI)

	c.p = e * c.KP
	c.i = floats.Clamp(c.i+e*c.KI, -c.IntegralLimit, c.IntegralLimit)

	c.Log.Debug("PI iteration",
		zap.Float64("error", e),
		zap.Float64("delta", delta),
		zap.Float64("mean", mean),
		zap.Float64("stddev", stddev),
		zap.Float64("kp", c.KP),
		zap.Float64("ki", c.KI),
		zap.Float64("p", c.p),
		zap.Float64("i", c.i),
	)
	return c.p + c.i
}

// gains evaluates the schedule. When no schedule rule fires the default gains
// apply.
func (c *FuzzyController) gains(e, delta float64) (float64, float64) {
	s := c.schedule
	_ = s.SetInput(ErrorInput, math.Abs(e))
	_ = s.SetInput(DeltaInput, floats.Clamp(delta, -1, 1))
	s.Evaluate()
	fired, _ := s.Fired(KPOutput)
	if !fired {
		return defaultKP, defaultKI
	}
	kp, _ := s.Output(KPOutput)
	ki, _ := s.Output(KIOutput)
	return kp, ki
}

func (c *FuzzyController) Reset() {
	c.prevErr, c.prevDelta = 0, 0
	c.reversals = 0
	c.p, c.i = 0, 0
	c.window = c.window[:0]
	c.windowIndex = 0
}

func (c *FuzzyController) addToWindow(e float64) {
	if len(c.window) < c.WindowSize {
		c.window = append(c.window, e)
	} else {
		c.window[c.windowIndex] = e
		c.windowIndex = (c.windowIndex + 1) % c.WindowSize
	}
}
