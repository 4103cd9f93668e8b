package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// CoupledPendulums implements two pendulums connected by a spring, each
// with its own joint torque.
// Coordinates: [theta1, theta2]
type CoupledPendulums struct {
	l float64 // Pendulum length
	g float64 // Gravity
	k float64 // Spring constant (coupling strength)
	m float64 // Mass of each bob
}

func NewCoupledPendulums() *CoupledPendulums {
	return &CoupledPendulums{
		l: 1.0,
		g: 9.81,
		k: 20.0,
		m: 1.0,
	}
}

func (c *CoupledPendulums) NumDofs() int { return 2 }

func (c *CoupledPendulums) Clone() dynamo.Dynamics {
	cp := *c
	return &cp
}

func (c *CoupledPendulums) Accel(q, _, f, qdd []float64) error {
	if c.m == 0 || c.l == 0 {
		return dynamo.ErrSingular
	}
	// Coupling force proportional to (theta2 - theta1)
	coupling := c.k * (q[1] - q[0]) / c.m
	inertia := c.m * c.l * c.l

	qdd[0] = -c.g/c.l*math.Sin(q[0]) + coupling/c.l + f[0]/inertia
	qdd[1] = -c.g/c.l*math.Sin(q[1]) - coupling/c.l + f[1]/inertia
	return nil
}

func (c *CoupledPendulums) AccelJacobians(q, _, _ []float64, dq, dv, df *mat.Dense) error {
	if c.m == 0 || c.l == 0 {
		return dynamo.ErrSingular
	}
	spring := c.k / (c.m * c.l)
	inertia := c.m * c.l * c.l

	dq.Set(0, 0, -c.g/c.l*math.Cos(q[0])-spring)
	dq.Set(0, 1, spring)
	dq.Set(1, 0, spring)
	dq.Set(1, 1, -c.g/c.l*math.Cos(q[1])-spring)
	dv.Zero()
	df.Zero()
	df.Set(0, 0, 1/inertia)
	df.Set(1, 1, 1/inertia)
	return nil
}

func (c *CoupledPendulums) Energy(q, v []float64) float64 {
	e := 0.0
	for i := 0; i < 2; i++ {
		vel := c.l * v[i]
		e += 0.5*c.m*vel*vel + c.m*c.g*c.l*(1-math.Cos(q[i]))
	}
	d := c.l * (q[1] - q[0])
	return e + 0.5*c.k*d*d/c.l
}

// GetParams implements dynamo.Configurable
func (c *CoupledPendulums) GetParams() map[string]float64 {
	return map[string]float64{
		"l": c.l,
		"g": c.g,
		"k": c.k,
		"m": c.m,
	}
}

// SetParam implements dynamo.Configurable
func (c *CoupledPendulums) SetParam(name string, value float64) error {
	switch name {
	case "l":
		c.l = value
	case "g":
		c.g = value
	case "k":
		c.k = value
	case "m":
		c.m = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
