package fuzzy

import (
	"math"
	"strconv"
	"strings"
)

// node is an antecedent expression. Atoms carry names until resolve binds
// them to registry handles.
type node interface {
	resolve(in *registry) error
	eval(in *registry, inputs []float64) float64
}

type atom struct {
	variable, set string
	vi, si        int
}

func (a *atom) resolve(in *registry) error {
	vi, err := in.lookup(a.variable)
	if err != nil {
		return err
	}
	si, err := in.lookupSet(vi, a.set)
	if err != nil {
		return err
	}
	a.vi, a.si = vi, si
	return nil
}

func (a *atom) eval(in *registry, inputs []float64) float64 {
	return in.vars[a.vi].Sets[a.si].Fuzzify(inputs[a.vi])
}

type constant float64

func (c constant) resolve(*registry) error { return nil }

func (c constant) eval(*registry, []float64) float64 { return float64(c) }

type connective int

const (
	connAnd connective = iota
	connOr
)

// fold combines its operands strictly left to right: AND takes the minimum,
// OR the maximum. There is no precedence between AND and OR.
type fold struct {
	operands []node
	ops      []connective
}

func (f *fold) resolve(in *registry) error {
	for _, o := range f.operands {
		if err := o.resolve(in); err != nil {
			return err
		}
	}
	return nil
}

func (f *fold) eval(in *registry, inputs []float64) float64 {
	acc := f.operands[0].eval(in, inputs)
	for i, op := range f.ops {
		v := f.operands[i+1].eval(in, inputs)
		switch op {
		case connAnd:
			acc = math.Min(acc, v)
		case connOr:
			acc = math.Max(acc, v)
		}
	}
	return acc
}

type parser struct {
	toks []token
	pos  int
}

func parseAntecedent(toks []token) (node, *FormatError) {
	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, p.errorf("unexpected token")
	}
	return n, nil
}

func (p *parser) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}
	return p.toks[p.pos].text, true
}

func (p *parser) errorf(msg string) *FormatError {
	e := &FormatError{Msg: msg}
	if t, ok := p.peek(); ok {
		e.Clause = t
	}
	return e
}

func (p *parser) expr() (node, *FormatError) {
	first, err := p.operand()
	if err != nil {
		return nil, err
	}
	f := &fold{operands: []node{first}}
	for {
		t, ok := p.peek()
		if !ok || t == ")" {
			break
		}
		var op connective
		switch {
		case strings.EqualFold(t, keywordAnd):
			op = connAnd
		case strings.EqualFold(t, keywordOr):
			op = connOr
		default:
			return nil, p.errorf("expected AND or OR")
		}
		p.pos++
		next, err := p.operand()
		if err != nil {
			return nil, err
		}
		f.ops = append(f.ops, op)
		f.operands = append(f.operands, next)
	}
	if len(f.ops) == 0 {
		return first, nil
	}
	return f, nil
}

func (p *parser) operand() (node, *FormatError) {
	t, ok := p.peek()
	if !ok {
		return nil, &FormatError{Msg: "unexpected end of antecedent"}
	}
	if t == "(" {
		p.pos++
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if t, ok := p.peek(); !ok || t != ")" {
			return nil, p.errorf("unbalanced parenthesis")
		}
		p.pos++
		return n, nil
	}
	if t == ")" {
		return nil, p.errorf("unbalanced parenthesis")
	}
	if v, err := strconv.ParseFloat(t, 64); err == nil && !p.followedByIs() {
		p.pos++
		return constant(v), nil
	}
	if p.pos+2 >= len(p.toks) {
		return nil, p.errorf("expected <variable> IS <set>")
	}
	is, set := p.toks[p.pos+1].text, p.toks[p.pos+2].text
	if !strings.EqualFold(is, keywordIs) || isParen(set) {
		return nil, p.errorf("expected <variable> IS <set>")
	}
	p.pos += 3
	return &atom{variable: t, set: set}, nil
}

func (p *parser) followedByIs() bool {
	return p.pos+1 < len(p.toks) && strings.EqualFold(p.toks[p.pos+1].text, keywordIs)
}
