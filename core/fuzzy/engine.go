// Package fuzzy implements rule-based fuzzy inference over trapezoidal
// membership functions with max aggregation and centroid defuzzification.
package fuzzy

import (
	"errors"
	"slices"

	"go.uber.org/zap"

	"example.com/fuzzy-park/base/zaplog"
)

// Engine is a rule-based fuzzy inference engine. Variables and rules are
// registered first; the first call to Compile, SetInput, Evaluate or
// GetOutput freezes the configuration.
//
// The Engine methods that take or return values share one built-in State
// and must not be used concurrently. Callers that need independent
// evaluation contexts over the same configuration use NewState.
type Engine struct {
	log     *zap.Logger
	inputs  registry
	outputs registry
	rules   []*Rule

	prog  *program
	state *State
}

type compiledRule struct {
	rule    *Rule
	targets []int
	err     error
}

type compiledOutput struct {
	base      int
	centroids []float64
}

// program is the frozen, read-only form of an engine configuration.
type program struct {
	log     *zap.Logger
	inputs  *registry
	outputs *registry
	outs    []compiledOutput
	rules   []compiledRule
	nsets   int
	errs    []error
}

func NewEngine(log *zap.Logger) *Engine {
	if log == nil {
		log = zaplog.Logger()
	}
	return &Engine{
		log:     log,
		inputs:  newRegistry("input"),
		outputs: newRegistry("output"),
	}
}

func (e *Engine) AddInput(v Variable) error {
	return e.add(&e.inputs, "add input", v)
}

func (e *Engine) AddOutput(v Variable) error {
	return e.add(&e.outputs, "add output", v)
}

func (e *Engine) add(r *registry, op string, v Variable) error {
	if e.prog != nil {
		return &ConfigurationError{Op: op, Name: v.Name, Err: ErrFrozen}
	}
	if err := r.add(v); err != nil {
		return &ConfigurationError{Op: op, Name: v.Name, Err: err}
	}
	return nil
}

// AddRule parses text and appends the rule. Malformed text yields a
// *FormatError and leaves the engine unchanged.
func (e *Engine) AddRule(text string) error {
	if e.prog != nil {
		return &ConfigurationError{Op: "add rule", Name: text, Err: ErrFrozen}
	}
	r, err := ParseRule(text)
	if err != nil {
		return err
	}
	e.rules = append(e.rules, r)
	return nil
}

func (e *Engine) Inputs() []Variable  { return slices.Clone(e.inputs.vars) }
func (e *Engine) Outputs() []Variable { return slices.Clone(e.outputs.vars) }
func (e *Engine) Rules() []*Rule      { return slices.Clone(e.rules) }

// OutputVariable returns the output variable registered under name, matched
// the same way rules and GetOutput match names.
func (e *Engine) OutputVariable(name string) (Variable, error) {
	vi, err := e.outputs.lookup(name)
	if err != nil {
		return Variable{}, err
	}
	return e.outputs.vars[vi], nil
}

// Compile freezes the configuration and binds every rule to registry
// handles. Rules naming unknown variables or membership functions are kept
// but skipped on every evaluation; the returned error joins one *RuleError
// per such rule. Compile is idempotent.
func (e *Engine) Compile() error {
	if e.prog == nil {
		e.prog = e.compile()
		e.state = e.prog.newState()
	}
	return errors.Join(e.prog.errs...)
}

func (e *Engine) compile() *program {
	p := &program{
		log:     e.log,
		inputs:  &e.inputs,
		outputs: &e.outputs,
	}
	for _, v := range e.outputs.vars {
		o := compiledOutput{base: p.nsets, centroids: make([]float64, len(v.Sets))}
		for j, mf := range v.Sets {
			o.centroids[j] = mf.Centroid()
		}
		p.outs = append(p.outs, o)
		p.nsets += len(v.Sets)
	}
	for i, r := range e.rules {
		cr := compiledRule{rule: r}
		cr.err = r.expr.resolve(&e.inputs)
		for _, c := range r.Consequents {
			if cr.err != nil {
				break
			}
			vi, err := e.outputs.lookup(c.Variable)
			if err != nil {
				cr.err = err
				break
			}
			si, err := e.outputs.lookupSet(vi, c.Set)
			if err != nil {
				cr.err = err
				break
			}
			cr.targets = append(cr.targets, p.outs[vi].base+si)
		}
		if cr.err != nil {
			cr.targets = nil
			cr.err = &RuleError{Index: i, Rule: r.Text, Err: cr.err}
			p.errs = append(p.errs, cr.err)
			e.log.Warn("skipping rule", zap.Int("index", i),
				zap.String("rule", r.Text), zap.Error(cr.err))
		}
		p.rules = append(p.rules, cr)
	}
	return p
}

// NewState returns a fresh evaluation context. States created from one
// engine share its configuration and may be used from different goroutines.
func (e *Engine) NewState() *State {
	_ = e.Compile()
	return e.prog.newState()
}

func (e *Engine) SetInput(name string, value float64) error {
	_ = e.Compile()
	return e.state.SetInput(name, value)
}

func (e *Engine) Evaluate() {
	_ = e.Compile()
	e.state.Evaluate()
}

func (e *Engine) GetOutput(name string) (float64, error) {
	_ = e.Compile()
	return e.state.Output(name)
}

// Fired reports whether any rule activated a membership function of the
// named output in the last evaluation.
func (e *Engine) Fired(name string) (bool, error) {
	_ = e.Compile()
	return e.state.Fired(name)
}

// Skipped returns the number of rules skipped in the last evaluation because
// they reference unknown names.
func (e *Engine) Skipped() int {
	_ = e.Compile()
	return e.state.Skipped()
}

func (e *Engine) State() *State {
	_ = e.Compile()
	return e.state
}
