package physics

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// MassChain implements a chain of masses connected by springs and anchored
// to walls at both ends. Each mass is actuated along the chain.
// Coordinates: [x1, ..., xN] displacements from rest.
type MassChain struct {
	n       int     // Number of masses
	k       float64 // Spring constant
	m       float64 // Mass of each particle
	damping float64 // Damping coefficient
}

func NewMassChain(n int) *MassChain {
	if n < 1 {
		panic(fmt.Errorf("%w: mass chain needs at least one mass, got %d", dynamo.ErrInvalidConfig, n))
	}
	return &MassChain{
		n:       n,
		k:       100.0,
		m:       1.0,
		damping: 0.1,
	}
}

func (mc *MassChain) NumDofs() int { return mc.n }

func (mc *MassChain) Clone() dynamo.Dynamics {
	c := *mc
	return &c
}

func (mc *MassChain) Accel(q, v, f, qdd []float64) error {
	if mc.m == 0 {
		return dynamo.ErrSingular
	}
	for i := 0; i < mc.n; i++ {
		x := q[i]

		// Left neighbor (or wall at x=0)
		left := 0.0
		if i > 0 {
			left = q[i-1]
		}
		// Right neighbor (or wall)
		right := 0.0
		if i < mc.n-1 {
			right = q[i+1]
		}

		force := mc.k*(left-x) + mc.k*(right-x) - mc.damping*v[i] + f[i]
		qdd[i] = force / mc.m
	}
	return nil
}

func (mc *MassChain) AccelJacobians(_, _, _ []float64, dq, dv, df *mat.Dense) error {
	if mc.m == 0 {
		return dynamo.ErrSingular
	}
	dq.Zero()
	dv.Zero()
	df.Zero()
	for i := 0; i < mc.n; i++ {
		dq.Set(i, i, -2*mc.k/mc.m)
		if i > 0 {
			dq.Set(i, i-1, mc.k/mc.m)
		}
		if i < mc.n-1 {
			dq.Set(i, i+1, mc.k/mc.m)
		}
		dv.Set(i, i, -mc.damping/mc.m)
		df.Set(i, i, 1/mc.m)
	}
	return nil
}

func (mc *MassChain) Energy(q, v []float64) float64 {
	e := 0.0
	prev := 0.0
	for i := 0; i < mc.n; i++ {
		e += 0.5 * mc.m * v[i] * v[i]
		d := q[i] - prev
		e += 0.5 * mc.k * d * d
		prev = q[i]
	}
	return e + 0.5*mc.k*prev*prev
}

// GetParams implements dynamo.Configurable
func (mc *MassChain) GetParams() map[string]float64 {
	return map[string]float64{
		"k":       mc.k,
		"m":       mc.m,
		"damping": mc.damping,
	}
}

// SetParam implements dynamo.Configurable
func (mc *MassChain) SetParam(name string, value float64) error {
	switch name {
	case "k":
		mc.k = value
	case "m":
		mc.m = value
	case "damping":
		mc.damping = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
