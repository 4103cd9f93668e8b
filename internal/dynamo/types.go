package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

// Concat joins position and velocity into one (q, v) state.
func Concat(q, v []float64) State {
	s := make(State, 0, len(q)+len(v))
	s = append(s, q...)
	return append(s, v...)
}

// Dynamics is a second-order model qdd = a(q, v, f) over generalized
// coordinates. Accel writes the acceleration into qdd.
type Dynamics interface {
	NumDofs() int
	Accel(q, v, f, qdd []float64) error
	Clone() Dynamics
}

// AnalyticAccel is implemented by dynamics that know their own partial
// derivatives. dq, dv and df are NumDofs x NumDofs.
type AnalyticAccel interface {
	AccelJacobians(q, v, f []float64, dq, dv, df *mat.Dense) error
}

type Hamiltonian interface {
	Energy(q, v []float64) float64
}

type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

// Integrator advances Dynamics by one step of length dt and linearizes that
// same step around (q, v, f).
type Integrator interface {
	Name() string
	Step(dyn Dynamics, q, v, f []float64, dt float64, qNext, vNext []float64) error
	Linearize(dyn Dynamics, q, v, f []float64, dt float64, jac *StepJacobians) error
	Clone() Integrator
}

// Limits are the per-dof box bounds of a World. Unbounded entries hold ±Inf.
type Limits struct {
	PositionLower State
	PositionUpper State
	VelocityLower State
	VelocityUpper State
	ForceLower    State
	ForceUpper    State
}

// Unbounded returns limits of ±Inf for n dofs.
func Unbounded(n int) Limits {
	fill := func(v float64) State {
		s := make(State, n)
		for i := range s {
			s[i] = v
		}
		return s
	}
	return Limits{
		PositionLower: fill(math.Inf(-1)),
		PositionUpper: fill(math.Inf(1)),
		VelocityLower: fill(math.Inf(-1)),
		VelocityUpper: fill(math.Inf(1)),
		ForceLower:    fill(math.Inf(-1)),
		ForceUpper:    fill(math.Inf(1)),
	}
}

func (l Limits) Clone() Limits {
	return Limits{
		PositionLower: l.PositionLower.Clone(),
		PositionUpper: l.PositionUpper.Clone(),
		VelocityLower: l.VelocityLower.Clone(),
		VelocityUpper: l.VelocityUpper.Clone(),
		ForceLower:    l.ForceLower.Clone(),
		ForceUpper:    l.ForceUpper.Clone(),
	}
}

// World is the simulation a trajectory drives. Step advances one timestep
// using the current forces; getters return copies.
//
// Shots cache their last rollout per World, keyed on the interface value,
// so implementations should be pointer types.
type World interface {
	NumDofs() int
	TimeStep() float64

	Positions() State
	Velocities() State
	Forces() State
	SetPositions(q []float64)
	SetVelocities(v []float64)
	SetForces(f []float64)

	Step() (*Snapshot, error)

	Limits() Limits
	DofName(i int) string

	Clone() World
	Copy(from World)
}

// StepFrom sets the full dynamic state of w and advances it one step.
func StepFrom(w World, q, v, f []float64) (*Snapshot, error) {
	w.SetPositions(q)
	w.SetVelocities(v)
	w.SetForces(f)
	return w.Step()
}
