package main

import (
	"context"
	"fmt"

	"github.com/san-kum/dynshot/internal/config"
	"github.com/san-kum/dynshot/internal/experiment"
	"github.com/san-kum/dynshot/internal/storage"
	"github.com/san-kum/dynshot/internal/trajectory"
	"github.com/spf13/cobra"
)

// resolveConfig layers a problem config: defaults, then a preset or config
// file, then any flags given explicitly, then the environment.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if len(args) > 0 {
		cfg.Model = args[0]
	}

	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(cfg.Model))
		}
		cfg = p
	}

	if configFile != "" {
		fileCfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if len(args) > 0 && fileCfg.Model != args[0] {
			return nil, fmt.Errorf("config %s is for model %s, not %s", configFile, fileCfg.Model, args[0])
		}
		cfg = fileCfg
	}

	flags := cmd.Flags()
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
		if cfg.ShotLength >= steps {
			cfg.ShotLength = 0
		}
	}
	if flags.Changed("shot-length") {
		cfg.ShotLength = shotLength
	}
	if flags.Changed("dofs") {
		cfg.Dofs = dofs
	}
	if flags.Changed("tune-start") {
		cfg.TuneStart = tuneStart
	}
	if flags.Changed("fd-method") {
		cfg.FD.Method = fdMethod
	}
	if flags.Changed("fd-eps") {
		cfg.FD.Eps = fdEps
	}
	settings.Apply(cfg)
	return cfg, nil
}

func buildProblem(cmd *cobra.Command, args []string) (*experiment.Problem, error) {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	return registry.Build(cfg, log)
}

func shotKind(cfg *config.Config) string {
	if cfg.ShotLength > 0 && cfg.ShotLength < cfg.Steps {
		return fmt.Sprintf("multi/%d", cfg.ShotLength)
	}
	return "single"
}

// saveRollout stores r with the times of every state, start included.
func saveRollout(ctx context.Context, p *experiment.Problem, r *trajectory.Rollout, loss float64, metrics map[string]float64) (string, error) {
	st, err := storage.Open(dataDir)
	if err != nil {
		return "", err
	}
	defer st.Close()

	n, steps := r.Dims()
	names := make([]string, n)
	for i := range names {
		names[i] = p.World.DofName(i)
	}
	times := make([]float64, steps+1)
	for k := range times {
		times[k] = float64(k) * p.World.TimeStep()
	}

	meta := &storage.RunMetadata{
		Model:      p.Config.Model,
		Integrator: p.World.Integrator().Name(),
		Shot:       shotKind(p.Config),
		Dofs:       n,
		Steps:      steps,
		Dt:         p.World.TimeStep(),
		Loss:       loss,
		Config:     p.Config,
		Metrics:    metrics,
	}
	return st.Save(ctx, meta, &storage.Trajectory{
		Names:   names,
		Times:   times,
		Start:   p.Shot.StartState(),
		Rollout: r,
	})
}
