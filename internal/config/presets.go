package config

import "sort"

var Presets = map[string]map[string]*Config{
	"pendulum": {
		"swing_up": {
			Model: "pendulum", Integrator: "semi_implicit_euler", Dt: 0.02, Steps: 100,
			TuneStart: false, ForceLimit: 5,
			InitState: InitStateConfig{Positions: []float64{0.0}},
			Loss:      LossConfig{Kind: LossFinalState, Target: []float64{3.14159}, TargetVel: []float64{0}, Effort: 0.01},
		},
		"small": {
			Model: "pendulum", Integrator: "rk4", Dt: 0.01, Steps: 50, TuneStart: true,
			InitState: InitStateConfig{Positions: []float64{0.2}},
			Loss:      LossConfig{Kind: LossFinalPosition, Target: []float64{0}},
		},
		"multishot": {
			Model: "pendulum", Integrator: "semi_implicit_euler", Dt: 0.01, Steps: 60, ShotLength: 15,
			InitState:   InitStateConfig{Positions: []float64{0.5}},
			Loss:        LossConfig{Kind: LossControlEffort, Effort: 1},
			Constraints: []ConstraintConfig{{Kind: ConstraintFinalState, Target: []float64{0}, TargetVel: []float64{0}}},
		},
	},
	"double_pendulum": {
		"gentle": {
			Model: "double_pendulum", Integrator: "rk4", Dt: 0.01, Steps: 40, TuneStart: true,
			InitState: InitStateConfig{Positions: []float64{0.3, 0.3}},
			Loss:      LossConfig{Kind: LossFinalPosition, Target: []float64{0, 0}, Effort: 0.01},
		},
		"chaos": {
			Model: "double_pendulum", Integrator: "rk4", Dt: 0.005, Steps: 80, ShotLength: 20,
			InitState:   InitStateConfig{Positions: []float64{3.0, 3.0}},
			Loss:        LossConfig{Kind: LossControlEffort, Effort: 1},
			Constraints: []ConstraintConfig{{Kind: ConstraintPositionWindow, Step: 79, Dof: 0, Lower: -1, Upper: 1}},
		},
	},
	"coupled_pendulums": {
		"beat": {
			Model: "coupled_pendulums", Integrator: "semi_implicit_euler", Dt: 0.01, Steps: 50, TuneStart: true,
			InitState: InitStateConfig{Positions: []float64{0.4, 0}},
			Loss:      LossConfig{Kind: LossFinalPosition, Target: []float64{0, 0.4}},
		},
	},
	"mass_chain": {
		"pluck": {
			Model: "mass_chain", Integrator: "semi_implicit_euler", Dt: 0.005, Steps: 40, Dofs: 4, ShotLength: 10,
			ForceLimit: 50,
			InitState:  InitStateConfig{Positions: []float64{0, 0.1, 0, 0}},
			Loss:       LossConfig{Kind: LossFinalState, Target: []float64{0, 0, 0, 0}, TargetVel: []float64{0, 0, 0, 0}, Effort: 0.001},
		},
	},
	"double_well": {
		"hop": {
			Model: "double_well", Integrator: "rk4", Dt: 0.02, Steps: 80, ShotLength: 20, ForceLimit: 4,
			InitState: InitStateConfig{Positions: []float64{-1}},
			Loss:      LossConfig{Kind: LossFinalState, Target: []float64{1}, TargetVel: []float64{0}, Effort: 0.01},
		},
	},
	"van_der_pol": {
		"limit_cycle": {
			Model: "van_der_pol", Integrator: "rk4", Dt: 0.02, Steps: 100, TuneStart: true,
			Params:    map[string]float64{"mu": 1.5},
			InitState: InitStateConfig{Positions: []float64{0.1}},
			Loss:      LossConfig{Kind: LossControlEffort, Effort: 1},
		},
	},
	"cartpole": {
		"balance": {
			Model: "cartpole", Integrator: "rk4", Dt: 0.01, Steps: 60, TuneStart: false, ForceLimit: 20,
			InitState: InitStateConfig{Positions: []float64{0, 0.1}},
			Loss:      LossConfig{Kind: LossFinalState, Target: []float64{0, 0}, TargetVel: []float64{0, 0}, Effort: 0.01},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	cfg, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
