package fuzzy

import (
	"go.uber.org/zap"
)

// State holds the working data of one evaluation context: current inputs,
// per-set activations and per-rule firing strengths.
type State struct {
	p          *program
	inputs     []float64
	activation []float64
	strengths  []float64
	skipped    int
}

func (p *program) newState() *State {
	return &State{
		p:          p,
		inputs:     make([]float64, len(p.inputs.vars)),
		activation: make([]float64, p.nsets),
		strengths:  make([]float64, len(p.rules)),
	}
}

func (s *State) SetInput(name string, value float64) error {
	vi, err := s.p.inputs.lookup(name)
	if err != nil {
		return &ConfigurationError{Op: "set input", Name: name, Err: err}
	}
	s.inputs[vi] = value
	return nil
}

func (s *State) Input(name string) (float64, error) {
	vi, err := s.p.inputs.lookup(name)
	if err != nil {
		return 0, &ConfigurationError{Op: "get input", Name: name, Err: err}
	}
	return s.inputs[vi], nil
}

// Evaluate runs one inference cycle: all activations are reset, every rule
// is evaluated against the current inputs and each consequent set keeps the
// maximum firing strength of the rules targeting it.
func (s *State) Evaluate() {
	clear(s.activation)
	s.skipped = 0
	log := s.p.log
	for i, r := range s.p.rules {
		if r.err != nil {
			s.strengths[i] = 0
			s.skipped++
			continue
		}
		w := r.rule.expr.eval(s.p.inputs, s.inputs)
		s.strengths[i] = w
		for _, h := range r.targets {
			if w > s.activation[h] {
				s.activation[h] = w
			}
		}
		if ce := log.Check(zap.DebugLevel, "rule fired"); ce != nil {
			ce.Write(
				zap.String("rule", r.rule.Antecedent),
				zap.Float64("strength", w),
			)
		}
	}
	for vi, v := range s.p.outputs.vars {
		if ce := log.Check(zap.DebugLevel, "output"); ce != nil {
			ce.Write(zap.String("variable", v.Name), zap.Float64("value", s.output(vi)))
		}
	}
}

// Output defuzzifies the named output variable with the centroid method. It
// returns exactly 0 when no set of the variable has a positive area.
func (s *State) Output(name string) (float64, error) {
	vi, err := s.p.outputs.lookup(name)
	if err != nil {
		return 0, &ConfigurationError{Op: "get output", Name: name, Err: err}
	}
	return s.output(vi), nil
}

func (s *State) output(vi int) float64 {
	o := s.p.outs[vi]
	var num, den float64
	for j, mf := range s.p.outputs.vars[vi].Sets {
		c := o.centroids[j]
		a := mf.area(c, s.activation[o.base+j])
		num += c * a
		den += a
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// Activation returns the aggregated activation of one output set.
func (s *State) Activation(output, set string) (float64, error) {
	vi, err := s.p.outputs.lookup(output)
	if err != nil {
		return 0, &ConfigurationError{Op: "get activation", Name: output, Err: err}
	}
	si, err := s.p.outputs.lookupSet(vi, set)
	if err != nil {
		return 0, &ConfigurationError{Op: "get activation", Name: set, Err: err}
	}
	return s.activation[s.p.outs[vi].base+si], nil
}

func (s *State) Fired(output string) (bool, error) {
	vi, err := s.p.outputs.lookup(output)
	if err != nil {
		return false, &ConfigurationError{Op: "get output", Name: output, Err: err}
	}
	base := s.p.outs[vi].base
	for j := range s.p.outputs.vars[vi].Sets {
		if s.activation[base+j] > 0 {
			return true, nil
		}
	}
	return false, nil
}

// Strength returns the firing strength of rule i in the last evaluation.
func (s *State) Strength(i int) float64 {
	return s.strengths[i]
}

func (s *State) Skipped() int {
	return s.skipped
}
