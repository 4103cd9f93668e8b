package physics

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
)

// World drives a Dynamics model with an Integrator at a fixed timestep. It
// implements dynamo.World.
type World struct {
	dyn   dynamo.Dynamics
	integ dynamo.Integrator
	dt    float64

	q, v, f dynamo.State
	limits  dynamo.Limits
	names   []string
}

var _ dynamo.World = (*World)(nil)

// NewWorld starts at rest with zero forces and unbounded limits. It panics
// on a non-positive timestep.
func NewWorld(dyn dynamo.Dynamics, integ dynamo.Integrator, dt float64) *World {
	if dt <= 0 {
		panic(fmt.Errorf("%w: timestep must be positive, got %g", dynamo.ErrInvalidConfig, dt))
	}
	n := dyn.NumDofs()
	return &World{
		dyn:    dyn,
		integ:  integ,
		dt:     dt,
		q:      make(dynamo.State, n),
		v:      make(dynamo.State, n),
		f:      make(dynamo.State, n),
		limits: dynamo.Unbounded(n),
	}
}

func (w *World) NumDofs() int                  { return len(w.q) }
func (w *World) TimeStep() float64             { return w.dt }
func (w *World) Dynamics() dynamo.Dynamics     { return w.dyn }
func (w *World) Integrator() dynamo.Integrator { return w.integ }

func (w *World) Positions() dynamo.State  { return w.q.Clone() }
func (w *World) Velocities() dynamo.State { return w.v.Clone() }
func (w *World) Forces() dynamo.State     { return w.f.Clone() }

func (w *World) SetPositions(q []float64)  { w.set("positions", w.q, q) }
func (w *World) SetVelocities(v []float64) { w.set("velocities", w.v, v) }
func (w *World) SetForces(f []float64)     { w.set("forces", w.f, f) }

func (w *World) set(what string, dst dynamo.State, src []float64) {
	if len(src) != len(dst) {
		panic(dynamo.DimensionError(what, len(src), len(dst)))
	}
	copy(dst, src)
}

func (w *World) Limits() dynamo.Limits { return w.limits.Clone() }

// SetLimits replaces the box bounds. Every bound must have one entry per dof.
func (w *World) SetLimits(l dynamo.Limits) {
	n := len(w.q)
	for _, b := range []struct {
		name string
		s    dynamo.State
	}{
		{"position lower limit", l.PositionLower},
		{"position upper limit", l.PositionUpper},
		{"velocity lower limit", l.VelocityLower},
		{"velocity upper limit", l.VelocityUpper},
		{"force lower limit", l.ForceLower},
		{"force upper limit", l.ForceUpper},
	} {
		if len(b.s) != n {
			panic(dynamo.DimensionError(b.name, len(b.s), n))
		}
	}
	w.limits = l.Clone()
}

// SetForceLimits bounds every force to [-limit, limit].
func (w *World) SetForceLimits(limit float64) {
	for i := range w.limits.ForceLower {
		w.limits.ForceLower[i] = -limit
		w.limits.ForceUpper[i] = limit
	}
}

func (w *World) SetDofNames(names []string) {
	if len(names) != len(w.q) {
		panic(dynamo.DimensionError("dof names", len(names), len(w.q)))
	}
	w.names = append([]string(nil), names...)
}

func (w *World) DofName(i int) string {
	if i < len(w.names) {
		return w.names[i]
	}
	return fmt.Sprintf("dof%d", i)
}

// Energy returns the total energy of the current state, or false when the
// model does not define one.
func (w *World) Energy() (float64, bool) {
	h, ok := w.dyn.(dynamo.Hamiltonian)
	if !ok {
		return 0, false
	}
	return h.Energy(w.q, w.v), true
}

// Step advances one timestep with the current forces. On error the world
// is left unchanged.
func (w *World) Step() (*dynamo.Snapshot, error) {
	n := len(w.q)
	qNext := make(dynamo.State, n)
	vNext := make(dynamo.State, n)
	if err := w.integ.Step(w.dyn, w.q, w.v, w.f, w.dt, qNext, vNext); err != nil {
		return nil, err
	}

	q, v, f := w.q, w.v, w.f.Clone()
	dyn, integ, dt := w.dyn, w.integ, w.dt
	snap := dynamo.NewSnapshot(q, v, f, qNext, vNext, func(jac *dynamo.StepJacobians) error {
		return integ.Linearize(dyn, q, v, f, dt, jac)
	})

	w.q = qNext.Clone()
	w.v = vNext.Clone()
	return snap, nil
}

func (w *World) Clone() dynamo.World {
	c := &World{
		dyn:    w.dyn.Clone(),
		integ:  w.integ.Clone(),
		dt:     w.dt,
		q:      w.q.Clone(),
		v:      w.v.Clone(),
		f:      w.f.Clone(),
		limits: w.limits.Clone(),
	}
	if w.names != nil {
		c.names = append([]string(nil), w.names...)
	}
	return c
}

// Copy makes w identical to from, reusing w's buffers when the dof counts
// agree.
func (w *World) Copy(from dynamo.World) {
	o, ok := from.(*World)
	if !ok {
		w.copyState(from.Positions(), from.Velocities(), from.Forces())
		w.dt = from.TimeStep()
		w.limits = from.Limits()
		return
	}
	w.dyn = o.dyn.Clone()
	if w.integ == nil || w.integ.Name() != o.integ.Name() {
		w.integ = o.integ.Clone()
	}
	w.dt = o.dt
	w.copyState(o.q, o.v, o.f)
	w.limits = o.limits.Clone()
	w.names = append(w.names[:0], o.names...)
	if len(o.names) == 0 {
		w.names = nil
	}
}

func (w *World) copyState(q, v, f dynamo.State) {
	if len(w.q) != len(q) {
		w.q = make(dynamo.State, len(q))
		w.v = make(dynamo.State, len(q))
		w.f = make(dynamo.State, len(q))
	}
	copy(w.q, q)
	copy(w.v, v)
	copy(w.f, f)
}
