package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/dynshot/internal/config"
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/integrators"
	"github.com/san-kum/dynshot/internal/metrics"
	"github.com/san-kum/dynshot/internal/physics"
)

type modelEntry struct {
	description string
	// fixed is the dof count of models that do not take one; 0 means the
	// config decides.
	fixed int
	build func(dofs int) dynamo.Dynamics
	names func(dofs int) []string
}

type Registry struct {
	models      map[string]modelEntry
	integrators map[string]func() dynamo.Integrator
}

func NewRegistry() *Registry {
	r := &Registry{
		models:      make(map[string]modelEntry),
		integrators: make(map[string]func() dynamo.Integrator),
	}

	r.models["pendulum"] = modelEntry{
		description: "damped pendulum driven by a hinge torque",
		fixed:       1,
		build:       func(int) dynamo.Dynamics { return physics.NewPendulum() },
		names:       fixedNames("theta"),
	}
	r.models["double_pendulum"] = modelEntry{
		description: "double pendulum with torques at both hinges",
		fixed:       2,
		build:       func(int) dynamo.Dynamics { return physics.NewDoublePendulum() },
		names:       fixedNames("theta1", "theta2"),
	}
	r.models["coupled_pendulums"] = modelEntry{
		description: "two pendulums joined by a spring",
		fixed:       2,
		build:       func(int) dynamo.Dynamics { return physics.NewCoupledPendulums() },
		names:       fixedNames("theta1", "theta2"),
	}
	r.models["cartpole"] = modelEntry{
		description: "pole on a cart, angle measured from upright",
		fixed:       2,
		build:       func(int) dynamo.Dynamics { return physics.NewCartPole() },
		names:       fixedNames("x", "theta"),
	}
	r.models["mass_chain"] = modelEntry{
		description: "chain of masses and springs anchored to a wall",
		build:       func(n int) dynamo.Dynamics { return physics.NewMassChain(n) },
		names: func(n int) []string {
			out := make([]string, n)
			for i := range out {
				out[i] = fmt.Sprintf("x%d", i)
			}
			return out
		},
	}

	r.models["duffing"] = modelEntry{
		description: "hardening/softening spring with cubic stiffness",
		fixed:       1,
		build:       func(int) dynamo.Dynamics { return physics.NewDuffing() },
		names:       fixedNames("x"),
	}
	r.models["double_well"] = modelEntry{
		description: "particle in a bistable quartic potential",
		fixed:       1,
		build:       func(int) dynamo.Dynamics { return physics.NewDoubleWell() },
		names:       fixedNames("x"),
	}
	r.models["van_der_pol"] = modelEntry{
		description: "self-excited oscillator with a limit cycle",
		fixed:       1,
		build:       func(int) dynamo.Dynamics { return physics.NewVanDerPol() },
		names:       fixedNames("x"),
	}

	r.integrators["semi_implicit_euler"] = func() dynamo.Integrator { return integrators.NewSemiImplicitEuler() }
	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }

	return r
}

func fixedNames(names ...string) func(int) []string {
	return func(int) []string { return append([]string(nil), names...) }
}

// resolveDofs picks the dof count for a model given the requested one.
func (e modelEntry) resolveDofs(name string, requested int) (int, error) {
	if e.fixed == 0 {
		if requested == 0 {
			return config.DefaultChainDofs, nil
		}
		return requested, nil
	}
	if requested != 0 && requested != e.fixed {
		return 0, fmt.Errorf("%w: model %s has %d dofs, config asks for %d", dynamo.ErrInvalidConfig, name, e.fixed, requested)
	}
	return e.fixed, nil
}

// GetModel builds a fresh model. dofs only matters for models without a
// fixed size; zero picks the default.
func (r *Registry) GetModel(name string, dofs int) (dynamo.Dynamics, error) {
	e, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	n, err := e.resolveDofs(name, dofs)
	if err != nil {
		return nil, err
	}
	return e.build(n), nil
}

func (r *Registry) DofNames(name string, dofs int) ([]string, error) {
	e, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model: %s", name)
	}
	n, err := e.resolveDofs(name, dofs)
	if err != nil {
		return nil, err
	}
	return e.names(n), nil
}

func (r *Registry) Describe(name string) string {
	return r.models[name].description
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = config.DefaultIntegrator
	}
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics are the diagnostics reported for a rollout of dyn. Energy
// metrics are only included for models that define an energy. The spectrum
// follows the first coordinate.
func (r *Registry) DefaultMetrics(dyn dynamo.Dynamics) []metrics.Metric {
	ms := []metrics.Metric{
		metrics.NewControlEffort(),
		metrics.NewStability(100.0),
	}
	if h, ok := dyn.(dynamo.Hamiltonian); ok {
		ms = append(ms, metrics.NewEnergy(h), metrics.NewEnergyDrift(dyn))
	}
	return append(ms, metrics.NewDominantFrequency(0))
}
