package fuzzy

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate name")
	ErrEmptyName = errors.New("empty name")
	ErrFrozen    = errors.New("configuration is frozen")
)

// FormatError reports malformed rule text.
type FormatError struct {
	Rule   string
	Clause string
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Clause != "" {
		return fmt.Sprintf("invalid rule %q: %s: %q", e.Rule, e.Msg, e.Clause)
	}
	return fmt.Sprintf("invalid rule %q: %s", e.Rule, e.Msg)
}

// NotFoundError reports a variable or membership function name that does not
// resolve in the registry it was looked up in.
type NotFoundError struct {
	Kind     string
	Name     string
	Variable string
}

func (e *NotFoundError) Error() string {
	if e.Variable != "" {
		return fmt.Sprintf("%s not found: %q (variable %q)", e.Kind, e.Name, e.Variable)
	}
	return fmt.Sprintf("%s not found: %q", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConfigurationError reports misuse of the engine API: unknown names passed to
// SetInput or GetOutput, duplicate registrations, or configuration changes
// after the engine is frozen. The engine stays valid after such an error.
type ConfigurationError struct {
	Op   string
	Name string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// RuleError ties a resolution failure to the rule that caused it.
type RuleError struct {
	Index int
	Rule  string
	Err   error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %d (%q): %v", e.Index, e.Rule, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }
