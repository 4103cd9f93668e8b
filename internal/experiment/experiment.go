package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynshot/internal/config"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/metrics"
	"github.com/san-kum/dynshot/internal/physics"
	"github.com/san-kum/dynshot/internal/trajectory"
	"go.uber.org/zap"
)

// Problem is a configured world together with the shot that drives it.
type Problem struct {
	Config *config.Config
	World  *physics.World
	Shot   trajectory.Shot
	FD     trajectory.FiniteDifference
}

// Build validates cfg and assembles the world, loss, constraints and shot
// it describes. A shot length shorter than the horizon gives a MultiShot.
func (r *Registry) Build(cfg *config.Config, log *zap.Logger) (*Problem, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	dyn, err := r.GetModel(cfg.Model, cfg.Dofs)
	if err != nil {
		return nil, err
	}
	if err := applyParams(dyn, cfg.Model, cfg.Params); err != nil {
		return nil, err
	}
	integ, err := r.GetIntegrator(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	n := dyn.NumDofs()
	w := physics.NewWorld(dyn, integ, cfg.Dt)
	names, err := r.DofNames(cfg.Model, n)
	if err != nil {
		return nil, err
	}
	w.SetDofNames(names)
	if cfg.ForceLimit > 0 {
		w.SetForceLimits(cfg.ForceLimit)
	}

	st := cfg.InitState
	q, err := pad("init_state.positions", st.Positions, n)
	if err != nil {
		return nil, err
	}
	v, err := pad("init_state.velocities", st.Velocities, n)
	if err != nil {
		return nil, err
	}
	f, err := pad("init_state.forces", st.Forces, n)
	if err != nil {
		return nil, err
	}
	w.SetPositions(q)
	w.SetVelocities(v)
	w.SetForces(f)

	loss, err := buildLoss(cfg.Loss, n)
	if err != nil {
		return nil, err
	}
	constraints := make([]trajectory.LossFn, 0, len(cfg.Constraints))
	for i, cc := range cfg.Constraints {
		c, err := buildConstraint(cc, n)
		if err != nil {
			return nil, fmt.Errorf("constraint %d: %w", i, err)
		}
		constraints = append(constraints, c)
	}

	method, err := trajectory.ParseMethod(cfg.FD.Method)
	if err != nil {
		return nil, err
	}

	opts := []trajectory.Option{trajectory.WithLogger(log.With(zap.String("model", cfg.Model)))}
	var shot trajectory.Shot
	if cfg.ShotLength > 0 && cfg.ShotLength < cfg.Steps {
		ms, err := trajectory.NewMultiShot(w, loss, cfg.Steps, cfg.ShotLength, cfg.TuneStart, opts...)
		if err != nil {
			return nil, err
		}
		shot = ms
	} else {
		shot = trajectory.NewSingleShot(w, loss, cfg.Steps, cfg.TuneStart, opts...)
	}
	for _, c := range constraints {
		shot.AddConstraint(c)
	}

	log.Debug("problem built",
		zap.String("model", cfg.Model),
		zap.String("integrator", integ.Name()),
		zap.Int("dofs", n),
		zap.Int("steps", cfg.Steps),
		zap.Int("flat_dim", shot.FlatProblemDim()),
		zap.Int("constraint_dim", shot.ConstraintDim()))

	return &Problem{
		Config: cfg,
		World:  w,
		Shot:   shot,
		FD:     trajectory.FiniteDifference{Eps: cfg.FD.Eps, Method: method},
	}, nil
}

// Rollout returns the continuous trajectory of the shot. The world is left
// as it was.
func (p *Problem) Rollout() (*trajectory.Rollout, error) {
	r := trajectory.NewRollout(p.Shot.NumDofs(), p.Shot.NumSteps())
	if err := p.Shot.States(p.World, r, false); err != nil {
		return nil, err
	}
	return r, nil
}

// Metrics summarises a rollout of the problem, starting from the shot's
// start state.
func (p *Problem) Metrics(r *trajectory.Rollout, ms []metrics.Metric) []metrics.Result {
	n := p.Shot.NumDofs()
	start := p.Shot.StartState()
	return metrics.Collect(start[:n], start[n:], r, p.World.TimeStep(), ms...)
}

func (p *Problem) Verify(tol float64) (*trajectory.Verification, error) {
	return trajectory.Verify(p.Shot, p.World, p.FD, tol)
}

func applyParams(dyn dynamo.Dynamics, model string, params map[string]float64) error {
	if len(params) == 0 {
		return nil
	}
	c, ok := dyn.(dynamo.Configurable)
	if !ok {
		return fmt.Errorf("%w: model %s takes no parameters", dynamo.ErrInvalidConfig, model)
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.SetParam(k, params[k]); err != nil {
			return fmt.Errorf("model %s: param %s: %w", model, k, err)
		}
	}
	return nil
}

// pad extends xs with zeros up to n entries.
func pad(what string, xs []float64, n int) ([]float64, error) {
	if len(xs) > n {
		return nil, fmt.Errorf("%w: %s has %d entries for %d dofs", dynamo.ErrInvalidConfig, what, len(xs), n)
	}
	out := make([]float64, n)
	copy(out, xs)
	return out, nil
}

func buildLoss(lc config.LossConfig, n int) (trajectory.LossFn, error) {
	var main trajectory.LossFn
	switch lc.Kind {
	case "", config.LossNone:
	case config.LossFinalPosition:
		target, err := pad("loss.target", lc.Target, n)
		if err != nil {
			return nil, err
		}
		main = trajectory.FinalPositionError(target)
	case config.LossFinalState:
		target, err := pad("loss.target", lc.Target, n)
		if err != nil {
			return nil, err
		}
		targetVel, err := pad("loss.target_vel", lc.TargetVel, n)
		if err != nil {
			return nil, err
		}
		main = trajectory.FinalStateError(target, targetVel)
	case config.LossControlEffort:
		effort := lc.Effort
		if effort == 0 {
			effort = config.DefaultEffort
		}
		return trajectory.ControlEffort(effort), nil
	default:
		return nil, fmt.Errorf("%w: unknown loss kind %q", dynamo.ErrInvalidConfig, lc.Kind)
	}

	switch {
	case lc.Effort == 0:
		return main, nil
	case main == nil:
		return trajectory.ControlEffort(lc.Effort), nil
	default:
		return trajectory.Sum(main.Name()+"+effort", main, trajectory.ControlEffort(lc.Effort)), nil
	}
}

func buildConstraint(cc config.ConstraintConfig, n int) (trajectory.LossFn, error) {
	switch cc.Kind {
	case config.ConstraintFinalState:
		target, err := pad("target", cc.Target, n)
		if err != nil {
			return nil, err
		}
		targetVel, err := pad("target_vel", cc.TargetVel, n)
		if err != nil {
			return nil, err
		}
		return trajectory.FinalStateConstraint(target, targetVel), nil
	case config.ConstraintPositionWindow:
		if cc.Dof >= n {
			return nil, fmt.Errorf("%w: dof %d out of range for %d dofs", dynamo.ErrInvalidConfig, cc.Dof, n)
		}
		return trajectory.PositionWindow(cc.Step, cc.Dof, cc.Lower, cc.Upper), nil
	default:
		return nil, fmt.Errorf("%w: unknown constraint kind %q", dynamo.ErrInvalidConfig, cc.Kind)
	}
}
