package integrators

import (
	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Euler is the explicit first-order scheme: q' = q + h v, v' = v + h a.
type Euler struct {
	qdd        []float64
	aq, av, af *mat.Dense
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string             { return "euler" }
func (e *Euler) Clone() dynamo.Integrator { return NewEuler() }

func (e *Euler) ensureScratch(n int) {
	if len(e.qdd) != n {
		e.qdd = make([]float64, n)
		e.aq = mat.NewDense(n, n, nil)
		e.av = mat.NewDense(n, n, nil)
		e.af = mat.NewDense(n, n, nil)
	}
}

func (e *Euler) Step(dyn dynamo.Dynamics, q, v, f []float64, dt float64, qNext, vNext []float64) error {
	e.ensureScratch(len(q))
	if err := dyn.Accel(q, v, f, e.qdd); err != nil {
		return err
	}
	for i := range q {
		qNext[i] = q[i] + dt*v[i]
		vNext[i] = v[i] + dt*e.qdd[i]
	}
	return dynamo.CheckFinite(qNext, vNext)
}

func (e *Euler) Linearize(dyn dynamo.Dynamics, q, v, f []float64, dt float64, jac *dynamo.StepJacobians) error {
	n := len(q)
	e.ensureScratch(n)
	if err := dynamo.AccelJacobians(dyn, q, v, f, e.aq, e.av, e.af); err != nil {
		return err
	}

	jac.State.Zero()
	jac.Force.Zero()
	for r := 0; r < n; r++ {
		jac.State.Set(r, r, 1)
		jac.State.Set(r, n+r, dt)
		for c := 0; c < n; c++ {
			jac.State.Set(n+r, c, dt*e.aq.At(r, c))
			jac.State.Set(n+r, n+c, kronecker(r, c)+dt*e.av.At(r, c))
			jac.Force.Set(n+r, c, dt*e.af.At(r, c))
		}
	}
	return nil
}

func kronecker(i, j int) float64 {
	if i == j {
		return 1
	}
	return 0
}
