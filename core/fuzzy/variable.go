package fuzzy

import (
	"strings"
)

// Variable is a linguistic variable: a named quantity described by a family
// of membership functions.
type Variable struct {
	Name string
	Sets []MembershipFunction
}

func NewVariable(name string, sets ...MembershipFunction) Variable {
	return Variable{Name: name, Sets: sets}
}

// Min returns the smallest left breakpoint over all sets of v.
func (v Variable) Min() float64 {
	if len(v.Sets) == 0 {
		panic("unexpected number of membership functions")
	}
	m := v.Sets[0].X0
	for _, mf := range v.Sets[1:] {
		if mf.X0 < m {
			m = mf.X0
		}
	}
	return m
}

// Max returns the largest right breakpoint over all sets of v.
func (v Variable) Max() float64 {
	if len(v.Sets) == 0 {
		panic("unexpected number of membership functions")
	}
	m := v.Sets[0].X3
	for _, mf := range v.Sets[1:] {
		if mf.X3 > m {
			m = mf.X3
		}
	}
	return m
}

func (v Variable) Range() float64 {
	return v.Max() - v.Min()
}

func canonical(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// registry is a symbol table of variables keyed by canonical name. Handles are
// indices into vars and stay stable because registration is append-only.
type registry struct {
	kind  string
	vars  []Variable
	index map[string]int
	sets  []map[string]int
}

func newRegistry(kind string) registry {
	return registry{kind: kind, index: make(map[string]int)}
}

func (r *registry) add(v Variable) error {
	key := canonical(v.Name)
	if key == "" {
		return ErrEmptyName
	}
	if _, ok := r.index[key]; ok {
		return ErrDuplicate
	}
	sets := make(map[string]int, len(v.Sets))
	for i, mf := range v.Sets {
		k := canonical(mf.Name)
		if k == "" {
			return ErrEmptyName
		}
		if _, ok := sets[k]; ok {
			return &ConfigurationError{Op: "add membership function", Name: mf.Name, Err: ErrDuplicate}
		}
		sets[k] = i
	}
	v.Sets = append([]MembershipFunction(nil), v.Sets...)
	r.index[key] = len(r.vars)
	r.vars = append(r.vars, v)
	r.sets = append(r.sets, sets)
	return nil
}

func (r *registry) lookup(name string) (int, error) {
	i, ok := r.index[canonical(name)]
	if !ok {
		return -1, &NotFoundError{Kind: r.kind + " variable", Name: name}
	}
	return i, nil
}

func (r *registry) lookupSet(vi int, name string) (int, error) {
	j, ok := r.sets[vi][canonical(name)]
	if !ok {
		return -1, &NotFoundError{Kind: "membership function", Name: name, Variable: r.vars[vi].Name}
	}
	return j, nil
}
