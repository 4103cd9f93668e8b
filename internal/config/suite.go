package config

import (
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Suite is a named batch of problems, verified together.
type Suite struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Tolerance   float64   `yaml:"tolerance"`
	Problems    []Problem `yaml:"problems"`
	Sweeps      []Sweep   `yaml:"sweeps"`
}

type Problem struct {
	Name   string `yaml:"name"`
	Preset string `yaml:"preset"`
	Config `yaml:",inline"`
}

// Sweep expands into Count problems with one model parameter spaced
// evenly over [Min, Max].
type Sweep struct {
	Name  string  `yaml:"name"`
	Base  Problem `yaml:"base"`
	Param string  `yaml:"param"`
	Min   float64 `yaml:"min"`
	Max   float64 `yaml:"max"`
	Count int     `yaml:"count"`
}

func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if s.Tolerance == 0 {
		s.Tolerance = DefaultTolerance
	}
	return &s, nil
}

// Expand resolves presets and sweeps into one config per named problem.
// Problem fields override the preset they name, or the defaults.
func (s *Suite) Expand() ([]Problem, error) {
	var errs error
	var out []Problem
	resolve := func(p Problem) (Problem, bool) {
		base := DefaultConfig()
		if p.Preset != "" {
			if base = GetPreset(p.Model, p.Preset); base == nil {
				errs = multierr.Append(errs, fmt.Errorf("problem %q: unknown preset %s/%s", p.Name, p.Model, p.Preset))
				return p, false
			}
		}
		overlay(base, &p.Config)
		p.Config = *base
		return p, true
	}

	for i, p := range s.Problems {
		if p.Name == "" {
			p.Name = fmt.Sprintf("%s#%d", p.Model, i)
		}
		if r, ok := resolve(p); ok {
			out = append(out, r)
		}
	}
	for _, sw := range s.Sweeps {
		if sw.Count < 1 || sw.Param == "" {
			errs = multierr.Append(errs, fmt.Errorf("sweep %q: needs a param and a positive count", sw.Name))
			continue
		}
		base, ok := resolve(sw.Base)
		if !ok {
			continue
		}
		for i := 0; i < sw.Count; i++ {
			value := sw.Min
			if sw.Count > 1 {
				value += (sw.Max - sw.Min) * float64(i) / float64(sw.Count-1)
			}
			p := Problem{Name: fmt.Sprintf("%s/%s=%g", sw.Name, sw.Param, value), Config: *base.Config.Clone()}
			if p.Params == nil {
				p.Params = map[string]float64{}
			}
			p.Params[sw.Param] = value
			out = append(out, p)
		}
	}

	for i := range out {
		if err := out[i].Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("problem %q: %w", out[i].Name, err))
		}
	}
	return out, errs
}

// overlay copies the set fields of src onto dst.
func overlay(dst, src *Config) {
	if src.Model != "" {
		dst.Model = src.Model
	}
	if src.Integrator != "" {
		dst.Integrator = src.Integrator
	}
	if src.Dt != 0 {
		dst.Dt = src.Dt
	}
	if src.Steps != 0 {
		dst.Steps = src.Steps
	}
	if src.ShotLength != 0 {
		dst.ShotLength = src.ShotLength
	}
	if src.TuneStart {
		dst.TuneStart = true
	}
	if src.Dofs != 0 {
		dst.Dofs = src.Dofs
	}
	if src.ForceLimit != 0 {
		dst.ForceLimit = src.ForceLimit
	}
	for k, v := range src.Params {
		if dst.Params == nil {
			dst.Params = map[string]float64{}
		}
		dst.Params[k] = v
	}
	if src.InitState.Positions != nil {
		dst.InitState.Positions = src.InitState.Positions
	}
	if src.InitState.Velocities != nil {
		dst.InitState.Velocities = src.InitState.Velocities
	}
	if src.InitState.Forces != nil {
		dst.InitState.Forces = src.InitState.Forces
	}
	if src.Loss.Kind != "" {
		dst.Loss = src.Loss
	}
	if src.Constraints != nil {
		dst.Constraints = src.Constraints
	}
	if src.FD.Eps != 0 {
		dst.FD.Eps = src.FD.Eps
	}
	if src.FD.Method != "" {
		dst.FD.Method = src.FD.Method
	}
}
