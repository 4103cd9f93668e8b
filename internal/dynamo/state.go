package dynamo

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// WorldState is the restorable part of a World.
type WorldState struct {
	Positions  State
	Velocities State
	Forces     State
}

func CaptureState(w World) WorldState {
	return WorldState{
		Positions:  w.Positions(),
		Velocities: w.Velocities(),
		Forces:     w.Forces(),
	}
}

func (s WorldState) Restore(w World) {
	w.SetPositions(s.Positions)
	w.SetVelocities(s.Velocities)
	w.SetForces(s.Forces)
}

// accelEps is the central-difference step for dynamics without analytic
// derivatives.
const accelEps = 1e-6

// AccelJacobians fills da/dq, da/dv and da/df. Dynamics implementing
// AnalyticAccel are asked directly; anything else is differentiated
// numerically.
func AccelJacobians(dyn Dynamics, q, v, f []float64, dq, dv, df *mat.Dense) error {
	if a, ok := dyn.(AnalyticAccel); ok {
		return a.AccelJacobians(q, v, f, dq, dv, df)
	}

	n := dyn.NumDofs()
	plus := make([]float64, n)
	minus := make([]float64, n)
	args := [3]State{State(q).Clone(), State(v).Clone(), State(f).Clone()}
	outs := [3]*mat.Dense{dq, dv, df}
	for k, out := range outs {
		x := args[k]
		for i := range x {
			orig := x[i]
			x[i] = orig + accelEps
			if err := dyn.Accel(args[0], args[1], args[2], plus); err != nil {
				return err
			}
			x[i] = orig - accelEps
			if err := dyn.Accel(args[0], args[1], args[2], minus); err != nil {
				return err
			}
			x[i] = orig
			for r := 0; r < n; r++ {
				out.Set(r, i, (plus[r]-minus[r])/(2*accelEps))
			}
		}
	}
	return nil
}

// CheckFinite returns ErrUnstable when any entry is NaN or Inf.
func CheckFinite(xs ...[]float64) error {
	for _, x := range xs {
		for _, v := range x {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return ErrUnstable
			}
		}
	}
	return nil
}
