package physics

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// VanDerPol implements the forced Van der Pol oscillator.
//
//	x'' = mu(1 - x^2)x' - x + f
//
// It has no conserved energy.
type VanDerPol struct {
	Mu float64
}

func NewVanDerPol() *VanDerPol {
	return &VanDerPol{Mu: 1.0}
}

func (p *VanDerPol) NumDofs() int { return 1 }

func (p *VanDerPol) Clone() dynamo.Dynamics {
	c := *p
	return &c
}

func (p *VanDerPol) Accel(q, v, f, qdd []float64) error {
	x := q[0]
	qdd[0] = p.Mu*(1-x*x)*v[0] - x + f[0]
	return nil
}

func (p *VanDerPol) AccelJacobians(q, v, _ []float64, dq, dv, df *mat.Dense) error {
	x := q[0]
	dq.Set(0, 0, -2*p.Mu*x*v[0]-1)
	dv.Set(0, 0, p.Mu*(1-x*x))
	df.Set(0, 0, 1)
	return nil
}

func (p *VanDerPol) GetParams() map[string]float64 {
	return map[string]float64{"mu": p.Mu}
}

func (p *VanDerPol) SetParam(name string, value float64) error {
	if name != "mu" {
		return fmt.Errorf("unknown param: %s", name)
	}
	p.Mu = value
	return nil
}
