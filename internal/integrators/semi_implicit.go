package integrators

import (
	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// SemiImplicitEuler updates velocity first and integrates position with the
// new velocity: v' = v + h a(q, v, f), q' = q + h v'. It is the default
// integrator for trajectory problems.
type SemiImplicitEuler struct {
	qdd        []float64
	aq, av, af *mat.Dense
}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (e *SemiImplicitEuler) Name() string             { return "semi_implicit_euler" }
func (e *SemiImplicitEuler) Clone() dynamo.Integrator { return NewSemiImplicitEuler() }

func (e *SemiImplicitEuler) ensureScratch(n int) {
	if len(e.qdd) != n {
		e.qdd = make([]float64, n)
		e.aq = mat.NewDense(n, n, nil)
		e.av = mat.NewDense(n, n, nil)
		e.af = mat.NewDense(n, n, nil)
	}
}

func (e *SemiImplicitEuler) Step(dyn dynamo.Dynamics, q, v, f []float64, dt float64, qNext, vNext []float64) error {
	e.ensureScratch(len(q))
	if err := dyn.Accel(q, v, f, e.qdd); err != nil {
		return err
	}
	for i := range q {
		vNext[i] = v[i] + dt*e.qdd[i]
		qNext[i] = q[i] + dt*vNext[i]
	}
	return dynamo.CheckFinite(qNext, vNext)
}

func (e *SemiImplicitEuler) Linearize(dyn dynamo.Dynamics, q, v, f []float64, dt float64, jac *dynamo.StepJacobians) error {
	n := len(q)
	e.ensureScratch(n)
	if err := dynamo.AccelJacobians(dyn, q, v, f, e.aq, e.av, e.af); err != nil {
		return err
	}

	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			dvdq := dt * e.aq.At(r, c)
			dvdv := kronecker(r, c) + dt*e.av.At(r, c)
			dvdf := dt * e.af.At(r, c)

			jac.State.Set(n+r, c, dvdq)
			jac.State.Set(n+r, n+c, dvdv)
			jac.Force.Set(n+r, c, dvdf)

			jac.State.Set(r, c, kronecker(r, c)+dt*dvdq)
			jac.State.Set(r, n+c, dt*dvdv)
			jac.Force.Set(r, c, dt*dvdf)
		}
	}
	return nil
}
