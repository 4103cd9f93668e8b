package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// DoubleWell models a particle in the bistable potential A*(x^2-B)^2.
type DoubleWell struct {
	A, B, Mass, Damping float64
}

func NewDoubleWell() *DoubleWell {
	return &DoubleWell{A: 1.0, B: 1.0, Mass: 1.0, Damping: 0.1}
}

func (d *DoubleWell) NumDofs() int { return 1 }

func (d *DoubleWell) Clone() dynamo.Dynamics {
	c := *d
	return &c
}

func (d *DoubleWell) Accel(q, v, f, qdd []float64) error {
	if d.Mass == 0 {
		return dynamo.ErrSingular
	}
	x := q[0]
	qdd[0] = (-4*d.A*x*(x*x-d.B) - d.Damping*v[0] + f[0]) / d.Mass
	return nil
}

func (d *DoubleWell) AccelJacobians(q, _, _ []float64, dq, dv, df *mat.Dense) error {
	if d.Mass == 0 {
		return dynamo.ErrSingular
	}
	x := q[0]
	dq.Set(0, 0, -4*d.A*(3*x*x-d.B)/d.Mass)
	dv.Set(0, 0, -d.Damping/d.Mass)
	df.Set(0, 0, 1/d.Mass)
	return nil
}

func (d *DoubleWell) Energy(q, v []float64) float64 {
	x := q[0]
	return 0.5*d.Mass*v[0]*v[0] + d.A*math.Pow(x*x-d.B, 2)
}

// Wells are the two minima of the potential.
func (d *DoubleWell) Wells() (left, right float64) {
	r := math.Sqrt(d.B)
	return -r, r
}

func (d *DoubleWell) GetParams() map[string]float64 {
	return map[string]float64{"a": d.A, "b": d.B, "mass": d.Mass, "damping": d.Damping}
}

func (d *DoubleWell) SetParam(name string, value float64) error {
	switch name {
	case "a":
		d.A = value
	case "b":
		d.B = value
	case "mass":
		d.Mass = value
	case "damping":
		d.Damping = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
