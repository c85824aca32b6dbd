package fuzzy

import (
	"strings"
	"unicode"
)

const (
	keywordIf   = "IF"
	keywordThen = "THEN"
	keywordAnd  = "AND"
	keywordOr   = "OR"
	keywordIs   = "IS"
)

// Consequent assigns a membership function of an output variable.
type Consequent struct {
	Variable string
	Set      string
}

// Rule is a parsed IF/THEN rule.
type Rule struct {
	Text        string
	Antecedent  string
	Consequents []Consequent

	expr node
}

type token struct {
	text string
	pos  int
}

// tokenize splits s at whitespace and emits parentheses as tokens of their
// own.
func tokenize(s string) []token {
	var toks []token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			toks = append(toks, token{text: s[start:end], pos: start})
			start = -1
		}
	}
	for i, r := range s {
		switch {
		case unicode.IsSpace(r):
			flush(i)
		case r == '(' || r == ')':
			flush(i)
			toks = append(toks, token{text: string(r), pos: i})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(s))
	return toks
}

// ParseRule parses rule text of the form
//
//	IF <antecedent> THEN <var> IS <set> [AND <var> IS <set>]...
//
// A consequent naming the same output variable twice keeps the last
// assignment.
func ParseRule(text string) (*Rule, error) {
	toks := tokenize(text)
	then := -1
	for i, t := range toks {
		if t.text == keywordThen {
			if then >= 0 {
				return nil, &FormatError{Rule: text, Msg: "expected exactly one THEN"}
			}
			then = i
		}
	}
	if then < 0 {
		return nil, &FormatError{Rule: text, Msg: "expected exactly one THEN"}
	}
	if then == 0 || !strings.EqualFold(toks[0].text, keywordIf) {
		return nil, &FormatError{Rule: text, Msg: "rule must start with IF"}
	}
	if then == 1 {
		return nil, &FormatError{Rule: text, Msg: "empty antecedent"}
	}

	r := &Rule{
		Text:       text,
		Antecedent: strings.TrimSpace(text[toks[1].pos:toks[then].pos]),
	}
	expr, err := parseAntecedent(toks[1:then])
	if err != nil {
		err.Rule = text
		return nil, err
	}
	r.expr = expr

	cs, ferr := parseConsequents(toks[then+1:])
	if ferr != nil {
		ferr.Rule = text
		return nil, ferr
	}
	r.Consequents = cs
	return r, nil
}

func parseConsequents(toks []token) ([]Consequent, *FormatError) {
	var cs []Consequent
	seen := make(map[string]int)
	clause := make([]string, 0, 3)
	emit := func() *FormatError {
		if len(clause) != 3 || !strings.EqualFold(clause[1], keywordIs) ||
			isParen(clause[0]) || isParen(clause[2]) {
			return &FormatError{Clause: strings.Join(clause, " "), Msg: "invalid consequent"}
		}
		c := Consequent{Variable: clause[0], Set: clause[2]}
		key := canonical(c.Variable)
		if i, ok := seen[key]; ok {
			cs[i] = c
		} else {
			seen[key] = len(cs)
			cs = append(cs, c)
		}
		clause = clause[:0]
		return nil
	}
	for _, t := range toks {
		if t.text == keywordAnd {
			if err := emit(); err != nil {
				return nil, err
			}
			continue
		}
		clause = append(clause, t.text)
	}
	if err := emit(); err != nil {
		return nil, err
	}
	return cs, nil
}

func isParen(s string) bool {
	return s == "(" || s == ")"
}
