package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
)

// CartPole is a pole hinged on a cart that slides along a rail. The cart is
// pushed by a horizontal force and the hinge carries a torque.
// Coordinates: [x, theta], theta measured from upright.
type CartPole struct {
	CartMass   float64
	PoleMass   float64
	PoleLength float64
	Gravity    float64
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 1.0,
		Gravity:    9.81,
	}
}

func (c *CartPole) NumDofs() int { return 2 }

func (c *CartPole) Clone() dynamo.Dynamics {
	cp := *c
	return &cp
}

func (c *CartPole) Accel(q, v, f, qdd []float64) error {
	theta, omega := q[1], v[1]
	mc, mp, l, g := c.CartMass, c.PoleMass, c.PoleLength, c.Gravity

	sint := math.Sin(theta)
	cost := math.Cos(theta)

	r1 := f[0] + mp*l*omega*omega*sint
	r2 := f[1] + mp*g*l*sint
	return solve2(mc+mp, mp*l*cost, mp*l*cost, mp*l*l, r1, r2, qdd)
}

func (c *CartPole) Energy(q, v []float64) float64 {
	theta, xdot, omega := q[1], v[0], v[1]
	mc, mp, l, g := c.CartMass, c.PoleMass, c.PoleLength, c.Gravity

	ke := 0.5*(mc+mp)*xdot*xdot + mp*l*xdot*omega*math.Cos(theta) + 0.5*mp*l*l*omega*omega
	pe := mp * g * l * math.Cos(theta)
	return ke + pe
}

func (c *CartPole) GetParams() map[string]float64 {
	return map[string]float64{
		"cart_mass":   c.CartMass,
		"pole_mass":   c.PoleMass,
		"pole_length": c.PoleLength,
		"gravity":     c.Gravity,
	}
}

func (c *CartPole) SetParam(name string, value float64) error {
	switch name {
	case "cart_mass":
		c.CartMass = value
	case "pole_mass":
		c.PoleMass = value
	case "pole_length":
		c.PoleLength = value
	case "gravity":
		c.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
