// Package config loads controller definitions: linguistic variables, rules and
// control loop settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"example.com/fuzzy-park/core/fuzzy"
	"example.com/fuzzy-park/core/parking"
)

type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

const (
	DefaultTickInterval   = 20 * time.Millisecond
	DefaultMetricsAddress = "127.0.0.1:8080"
)

type Set struct {
	Name   string    `toml:"name" yaml:"name"`
	Points []float64 `toml:"points" yaml:"points"`
}

type Variable struct {
	Name string `toml:"name" yaml:"name"`
	Sets []Set  `toml:"sets" yaml:"sets"`
}

type Loop struct {
	TickInterval          string  `toml:"tick_interval,omitempty" yaml:"tick_interval,omitempty"`
	MetricsAddress        string  `toml:"metrics_address,omitempty" yaml:"metrics_address,omitempty"`
	MaxSteeringAngle      float64 `toml:"max_steering_angle,omitempty" yaml:"max_steering_angle,omitempty"`
	MotorTorque           float64 `toml:"motor_torque,omitempty" yaml:"motor_torque,omitempty"`
	ParkingTolerance      float64 `toml:"parking_tolerance,omitempty" yaml:"parking_tolerance,omitempty"`
	ParkingAngleTolerance float64 `toml:"parking_angle_tolerance,omitempty" yaml:"parking_angle_tolerance,omitempty"`
}

type Config struct {
	Rules   []string   `toml:"rules" yaml:"rules"`
	Inputs  []Variable `toml:"inputs" yaml:"inputs"`
	Outputs []Variable `toml:"outputs" yaml:"outputs"`
	Loop    Loop       `toml:"loop,omitempty" yaml:"loop,omitempty"`
}

// ValidationError reports an invalid field of a controller definition.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// FormatOf returns the format implied by the extension of path. Anything
// other than .yaml or .yml is read as TOML.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return TOML
	}
}

func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(FormatOf(path), raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(format Format, raw []byte) (Config, error) {
	var cfg Config
	switch format {
	case TOML:
		err := toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
		if err != nil {
			return Config{}, err
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err := dec.Decode(&cfg)
		if err != nil && !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("unsupported configuration format: %q", format)
	}
	cfg.Loop.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the built-in parking controller definition.
func Default() Config {
	cfg := Config{
		Rules:   append([]string(nil), parking.Rules...),
		Inputs:  fromVariables(parking.Inputs()),
		Outputs: fromVariables(parking.Outputs()),
	}
	cfg.Loop.setDefaults()
	return cfg
}

func fromVariables(vs []fuzzy.Variable) []Variable {
	r := make([]Variable, len(vs))
	for i, v := range vs {
		r[i].Name = v.Name
		for _, mf := range v.Sets {
			r[i].Sets = append(r[i].Sets, Set{
				Name:   mf.Name,
				Points: []float64{mf.X0, mf.X1, mf.X2, mf.X3},
			})
		}
	}
	return r
}

func (l *Loop) setDefaults() {
	if l.TickInterval == "" {
		l.TickInterval = DefaultTickInterval.String()
	}
	if l.MetricsAddress == "" {
		l.MetricsAddress = DefaultMetricsAddress
	}
	if l.MaxSteeringAngle == 0 {
		l.MaxSteeringAngle = parking.DefaultMaxSteeringAngle
	}
	if l.MotorTorque == 0 {
		l.MotorTorque = parking.DefaultMotorTorque
	}
	if l.ParkingTolerance == 0 {
		l.ParkingTolerance = parking.DefaultTolerance
	}
	if l.ParkingAngleTolerance == 0 {
		l.ParkingAngleTolerance = parking.DefaultAngleTolerance
	}
}

func (l Loop) Interval() (time.Duration, error) {
	d, err := time.ParseDuration(l.TickInterval)
	if err != nil {
		return 0, &ValidationError{Field: "loop.tick_interval", Msg: err.Error()}
	}
	if d <= 0 {
		return 0, &ValidationError{Field: "loop.tick_interval", Msg: "must be positive"}
	}
	return d, nil
}

func (l Loop) Spot() parking.Spot {
	return parking.Spot{Tolerance: l.ParkingTolerance, AngleTolerance: l.ParkingAngleTolerance}
}

// Validate checks the shape of the definition. Name resolution of rules is
// left to the engine.
func (c Config) Validate() error {
	if len(c.Inputs) == 0 {
		return &ValidationError{Field: "inputs", Msg: "no input variables"}
	}
	if len(c.Outputs) == 0 {
		return &ValidationError{Field: "outputs", Msg: "no output variables"}
	}
	var errs []error
	check := func(kind string, vs []Variable) {
		for i, v := range vs {
			if strings.TrimSpace(v.Name) == "" {
				errs = append(errs, &ValidationError{
					Field: fmt.Sprintf("%s[%d].name", kind, i), Msg: "empty name"})
			}
			for j, s := range v.Sets {
				if strings.TrimSpace(s.Name) == "" {
					errs = append(errs, &ValidationError{
						Field: fmt.Sprintf("%s[%d].sets[%d].name", kind, i, j), Msg: "empty name"})
				}
				if len(s.Points) != 4 {
					errs = append(errs, &ValidationError{
						Field: fmt.Sprintf("%s[%d].sets[%d].points", kind, i, j),
						Msg:   fmt.Sprintf("expected 4 points, got %d", len(s.Points))})
				}
			}
		}
	}
	check("inputs", c.Inputs)
	check("outputs", c.Outputs)
	if _, err := c.Loop.Interval(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (v Variable) variable() fuzzy.Variable {
	r := fuzzy.Variable{Name: v.Name}
	for _, s := range v.Sets {
		r.Sets = append(r.Sets, fuzzy.NewMembershipFunction(s.Name,
			s.Points[0], s.Points[1], s.Points[2], s.Points[3]))
	}
	return r
}

// Build registers every variable and rule of c with a new engine and compiles
// it. Malformed rules, duplicate names and rules naming unknown variables or
// sets are errors; the returned error joins one error per offending rule.
func (c Config) Build(log *zap.Logger) (*fuzzy.Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	e := fuzzy.NewEngine(log)
	var errs []error
	for _, v := range c.Inputs {
		if err := e.AddInput(v.variable()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, v := range c.Outputs {
		if err := e.AddOutput(v.variable()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, r := range c.Rules {
		if err := e.AddRule(r); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := e.Compile(); err != nil {
		return nil, err
	}
	return e, nil
}
