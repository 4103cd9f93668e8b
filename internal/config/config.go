package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt         = 0.01
	DefaultSteps      = 50
	DefaultTheta      = 0.5
	DefaultChainDofs  = 3
	DefaultEffort     = 0.01
	DefaultTolerance  = 1e-5
	DefaultIntegrator = "semi_implicit_euler"
)

// Loss kinds.
const (
	LossNone          = "none"
	LossFinalPosition = "final_position"
	LossFinalState    = "final_state"
	LossControlEffort = "control_effort"
)

// Constraint kinds.
const (
	ConstraintFinalState     = "final_state"
	ConstraintPositionWindow = "position_window"
)

// Config describes one trajectory problem: a world, a shot over it, and
// the loss and constraints attached to the shot.
type Config struct {
	Model       string             `yaml:"model"`
	Integrator  string             `yaml:"integrator"`
	Dt          float64            `yaml:"dt"`
	Steps       int                `yaml:"steps"`
	ShotLength  int                `yaml:"shot_length"`
	TuneStart   bool               `yaml:"tune_start"`
	Dofs        int                `yaml:"dofs"`
	ForceLimit  float64            `yaml:"force_limit"`
	Params      map[string]float64 `yaml:"params,omitempty"`
	InitState   InitStateConfig    `yaml:"init_state"`
	Loss        LossConfig         `yaml:"loss"`
	Constraints []ConstraintConfig `yaml:"constraints,omitempty"`
	FD          FDConfig           `yaml:"finite_difference"`
}

// InitStateConfig holds the starting world state. Empty slices mean zero.
type InitStateConfig struct {
	Positions  []float64 `yaml:"positions,omitempty"`
	Velocities []float64 `yaml:"velocities,omitempty"`
	Forces     []float64 `yaml:"forces,omitempty"`
}

type LossConfig struct {
	Kind      string    `yaml:"kind"`
	Target    []float64 `yaml:"target,omitempty"`
	TargetVel []float64 `yaml:"target_vel,omitempty"`
	// Effort adds a control-effort term with this weight.
	Effort float64 `yaml:"effort"`
}

type ConstraintConfig struct {
	Kind      string    `yaml:"kind"`
	Target    []float64 `yaml:"target,omitempty"`
	TargetVel []float64 `yaml:"target_vel,omitempty"`
	Step      int       `yaml:"step"`
	Dof       int       `yaml:"dof"`
	Lower     float64   `yaml:"lower"`
	Upper     float64   `yaml:"upper"`
}

type FDConfig struct {
	Eps    float64 `yaml:"eps"`
	Method string  `yaml:"method"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "pendulum",
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Steps:      DefaultSteps,
		TuneStart:  true,
		InitState: InitStateConfig{
			Positions: []float64{DefaultTheta},
		},
		Loss: LossConfig{
			Kind:   LossFinalPosition,
			Target: []float64{0},
			Effort: DefaultEffort,
		},
		FD: FDConfig{Method: "central"},
	}
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Params != nil {
		out.Params = make(map[string]float64, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = v
		}
	}
	out.InitState = InitStateConfig{
		Positions:  cloneFloats(c.InitState.Positions),
		Velocities: cloneFloats(c.InitState.Velocities),
		Forces:     cloneFloats(c.InitState.Forces),
	}
	out.Loss.Target = cloneFloats(c.Loss.Target)
	out.Loss.TargetVel = cloneFloats(c.Loss.TargetVel)
	if c.Constraints != nil {
		out.Constraints = make([]ConstraintConfig, len(c.Constraints))
		for i, cc := range c.Constraints {
			cc.Target = cloneFloats(cc.Target)
			cc.TargetVel = cloneFloats(cc.TargetVel)
			out.Constraints[i] = cc
		}
	}
	return &out
}

func cloneFloats(xs []float64) []float64 {
	if xs == nil {
		return nil
	}
	return append([]float64(nil), xs...)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every structural problem with the config at once.
// Model and integrator names are resolved later, by the registry.
func (c *Config) Validate() error {
	var errs error
	if c.Model == "" {
		errs = multierr.Append(errs, fmt.Errorf("model is required"))
	}
	if c.Dt <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("dt must be positive, got %g", c.Dt))
	}
	if c.Steps <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("steps must be positive, got %d", c.Steps))
	}
	if c.ShotLength < 0 || c.ShotLength > c.Steps {
		errs = multierr.Append(errs, fmt.Errorf("shot_length must be in [0, steps], got %d", c.ShotLength))
	}
	if c.ForceLimit < 0 {
		errs = multierr.Append(errs, fmt.Errorf("force_limit must not be negative, got %g", c.ForceLimit))
	}
	if c.FD.Eps < 0 {
		errs = multierr.Append(errs, fmt.Errorf("finite_difference.eps must not be negative, got %g", c.FD.Eps))
	}
	switch c.FD.Method {
	case "", "central", "forward":
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown finite_difference.method %q", c.FD.Method))
	}

	switch c.Loss.Kind {
	case "", LossNone, LossFinalPosition, LossFinalState, LossControlEffort:
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown loss kind %q", c.Loss.Kind))
	}
	if c.Loss.Effort < 0 {
		errs = multierr.Append(errs, fmt.Errorf("loss.effort must not be negative, got %g", c.Loss.Effort))
	}

	for i, cc := range c.Constraints {
		switch cc.Kind {
		case ConstraintFinalState:
		case ConstraintPositionWindow:
			if cc.Step < 0 || (c.Steps > 0 && cc.Step >= c.Steps) {
				errs = multierr.Append(errs, fmt.Errorf("constraint %d: step %d out of range", i, cc.Step))
			}
			if cc.Dof < 0 {
				errs = multierr.Append(errs, fmt.Errorf("constraint %d: negative dof", i))
			}
			if cc.Lower > cc.Upper {
				errs = multierr.Append(errs, fmt.Errorf("constraint %d: lower %g above upper %g", i, cc.Lower, cc.Upper))
			}
		default:
			errs = multierr.Append(errs, fmt.Errorf("constraint %d: unknown kind %q", i, cc.Kind))
		}
	}
	return errs
}
