package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
)

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.81
)

// singularDet is the smallest mass-matrix determinant accepted before the
// dynamics report dynamo.ErrSingular.
const singularDet = 1e-12

// DoublePendulum is two links in series, with a torque at each joint.
// Coordinates: [theta1, theta2], both measured from the downward vertical.
type DoublePendulum struct {
	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

func NewDoublePendulum() *DoublePendulum {
	return &DoublePendulum{
		M1: DefaultMass, M2: DefaultMass,
		L1: DefaultLength, L2: DefaultLength,
		Gravity: DefaultGravity,
	}
}

func (d *DoublePendulum) NumDofs() int { return 2 }

func (d *DoublePendulum) Clone() dynamo.Dynamics {
	c := *d
	return &c
}

func (d *DoublePendulum) Accel(q, v, f, qdd []float64) error {
	theta1, theta2, omega1, omega2 := q[0], q[1], v[0], v[1]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	delta := theta1 - theta2
	sinD, cosD := math.Sin(delta), math.Cos(delta)

	// M(q) qdd = tau - C(q, v) - G(q)
	a := (m1 + m2) * l1 * l1
	b := m2 * l1 * l2 * cosD
	c := m2 * l2 * l2

	r1 := f[0] - m2*l1*l2*sinD*omega2*omega2 - (m1+m2)*g*l1*math.Sin(theta1)
	r2 := f[1] + m2*l1*l2*sinD*omega1*omega1 - m2*g*l2*math.Sin(theta2)

	return solve2(a, b, b, c, r1, r2, qdd)
}

func (d *DoublePendulum) Energy(q, v []float64) float64 {
	theta1, theta2, omega1, omega2 := q[0], q[1], v[0], v[1]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	v1sq := l1 * l1 * omega1 * omega1
	v2sq := l1*l1*omega1*omega1 + l2*l2*omega2*omega2 +
		2*l1*l2*omega1*omega2*math.Cos(theta1-theta2)

	ke := 0.5*m1*v1sq + 0.5*m2*v2sq
	y1 := -l1 * math.Cos(theta1)
	y2 := y1 - l2*math.Cos(theta2)
	pe := m1*g*y1 + m2*g*y2

	return ke + pe
}

func (d *DoublePendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"m1":      d.M1,
		"m2":      d.M2,
		"l1":      d.L1,
		"l2":      d.L2,
		"gravity": d.Gravity,
	}
}

func (d *DoublePendulum) SetParam(name string, value float64) error {
	switch name {
	case "m1":
		d.M1 = value
	case "m2":
		d.M2 = value
	case "l1":
		d.L1 = value
	case "l2":
		d.L2 = value
	case "gravity":
		d.Gravity = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}

// solve2 solves [[a b] [c d]] x = [r1 r2] by Cramer's rule.
func solve2(a, b, c, d, r1, r2 float64, x []float64) error {
	det := a*d - b*c
	if math.Abs(det) < singularDet {
		return dynamo.ErrSingular
	}
	x[0] = (d*r1 - b*r2) / det
	x[1] = (a*r2 - c*r1) / det
	return nil
}
