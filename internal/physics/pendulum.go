package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Pendulum is a single revolute link driven by a joint torque.
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    1.0,
		Length:  1.0,
		Damping: 0.1,
		Gravity: 9.81,
	}
}

func (p *Pendulum) NumDofs() int { return 1 }

func (p *Pendulum) Clone() dynamo.Dynamics {
	c := *p
	return &c
}

func (p *Pendulum) inertia() float64 {
	return p.Mass * p.Length * p.Length
}

func (p *Pendulum) Accel(q, v, f, qdd []float64) error {
	inertia := p.inertia()
	if inertia == 0 {
		return dynamo.ErrSingular
	}
	qdd[0] = (f[0] - p.Damping*v[0] - p.Mass*p.Gravity*p.Length*math.Sin(q[0])) / inertia
	return nil
}

func (p *Pendulum) AccelJacobians(q, v, f []float64, dq, dv, df *mat.Dense) error {
	inertia := p.inertia()
	if inertia == 0 {
		return dynamo.ErrSingular
	}
	dq.Set(0, 0, -p.Mass*p.Gravity*p.Length*math.Cos(q[0])/inertia)
	dv.Set(0, 0, -p.Damping/inertia)
	df.Set(0, 0, 1/inertia)
	return nil
}

func (p *Pendulum) Energy(q, v []float64) float64 {
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * g * L * (1 - cos(theta))
	vel := p.Length * v[0]
	ke := 0.5 * p.Mass * vel * vel
	pe := p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(q[0]))
	return ke + pe
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"gravity": p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "gravity":
		p.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
