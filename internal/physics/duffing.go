package physics

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Duffing is a nonlinear spring accelerating as f - delta*v - alpha*x - beta*x^3.
// The periodic drive of the classic oscillator comes in through f.
type Duffing struct {
	Alpha, Beta, Delta float64
}

func NewDuffing() *Duffing {
	return &Duffing{Alpha: -1.0, Beta: 1.0, Delta: 0.3}
}

func (d *Duffing) NumDofs() int { return 1 }

func (d *Duffing) Clone() dynamo.Dynamics {
	c := *d
	return &c
}

func (d *Duffing) Accel(q, v, f, qdd []float64) error {
	x := q[0]
	qdd[0] = f[0] - d.Delta*v[0] - d.Alpha*x - d.Beta*x*x*x
	return nil
}

func (d *Duffing) AccelJacobians(q, _, _ []float64, dq, dv, df *mat.Dense) error {
	x := q[0]
	dq.Set(0, 0, -d.Alpha-3*d.Beta*x*x)
	dv.Set(0, 0, -d.Delta)
	df.Set(0, 0, 1)
	return nil
}

func (d *Duffing) Energy(q, v []float64) float64 {
	x := q[0]
	return 0.5*v[0]*v[0] + 0.5*d.Alpha*x*x + 0.25*d.Beta*x*x*x*x
}

func (d *Duffing) GetParams() map[string]float64 {
	return map[string]float64{"alpha": d.Alpha, "beta": d.Beta, "delta": d.Delta}
}

func (d *Duffing) SetParam(name string, value float64) error {
	switch name {
	case "alpha":
		d.Alpha = value
	case "beta":
		d.Beta = value
	case "delta":
		d.Delta = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
