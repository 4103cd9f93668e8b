package trajectory

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// TimestepJacobians holds, for every step t, d(q_t, v_t) / d(q_0, v_0)
// where (q_t, v_t) is the state after step t and (q_0, v_0) the start
// state. Blocks are 2n x 2n. The returned views must not be modified.
type TimestepJacobians struct {
	dofs   int
	blocks []*mat.Dense
}

func newTimestepJacobians(dofs, steps int) *TimestepJacobians {
	j := &TimestepJacobians{dofs: dofs, blocks: make([]*mat.Dense, steps)}
	for t := range j.blocks {
		j.blocks[t] = mat.NewDense(2*dofs, 2*dofs, nil)
	}
	return j
}

func (j *TimestepJacobians) Len() int     { return len(j.blocks) }
func (j *TimestepJacobians) NumDofs() int { return j.dofs }

func (j *TimestepJacobians) At(t int) mat.Matrix {
	return j.blocks[t]
}

// PosPos is dq_t/dq_0.
func (j *TimestepJacobians) PosPos(t int) mat.Matrix {
	return j.blocks[t].Slice(0, j.dofs, 0, j.dofs)
}

// PosVel is dv_t/dq_0.
func (j *TimestepJacobians) PosVel(t int) mat.Matrix {
	return j.blocks[t].Slice(j.dofs, 2*j.dofs, 0, j.dofs)
}

// VelPos is dq_t/dv_0.
func (j *TimestepJacobians) VelPos(t int) mat.Matrix {
	return j.blocks[t].Slice(0, j.dofs, j.dofs, 2*j.dofs)
}

// VelVel is dv_t/dv_0.
func (j *TimestepJacobians) VelVel(t int) mat.Matrix {
	return j.blocks[t].Slice(j.dofs, 2*j.dofs, j.dofs, 2*j.dofs)
}

// continuousForces integrates s without knots and returns its forces.
func continuousForces(s Shot, w dynamo.World) (*mat.Dense, error) {
	r := NewRollout(s.NumDofs(), s.NumSteps())
	if err := s.States(w, r, false); err != nil {
		return nil, err
	}
	return r.Forces, nil
}

// BackpropStartStateJacobians chains the step Jacobians forward along the
// knot-free rollout of s. The world state is restored afterwards.
func BackpropStartStateJacobians(s Shot, w dynamo.World) (*TimestepJacobians, error) {
	forces, err := continuousForces(s, w)
	if err != nil {
		return nil, err
	}
	n, steps := s.NumDofs(), s.NumSteps()
	start := s.StartState()

	saved := dynamo.CaptureState(w)
	defer saved.Restore(w)
	snaps, err := simulate(w, start[:n], start[n:], forces, nil, make([]*dynamo.Snapshot, 0, steps), make([]float64, n))
	if err != nil {
		return nil, err
	}

	out := newTimestepJacobians(n, steps)
	for t, snap := range snaps {
		sj, err := snap.Jacobians()
		if err != nil {
			return nil, &dynamo.RolloutError{Step: t, State: snap.PreStepState(), Wrapped: err}
		}
		if t == 0 {
			out.blocks[0].Copy(sj.State)
			continue
		}
		out.blocks[t].Mul(sj.State, out.blocks[t-1])
	}
	return out, nil
}

// FiniteDifferenceStartStateJacobians perturbs each start-state entry by
// eps with a central stencil, holding the forces fixed.
func FiniteDifferenceStartStateJacobians(s Shot, w dynamo.World, eps float64) (*TimestepJacobians, error) {
	if eps <= 0 {
		panic(fmt.Errorf("%w: finite difference eps must be positive, got %g", dynamo.ErrInvalidConfig, eps))
	}
	forces, err := continuousForces(s, w)
	if err != nil {
		return nil, err
	}
	n, steps := s.NumDofs(), s.NumSteps()
	start := s.StartState()

	saved := dynamo.CaptureState(w)
	defer saved.Restore(w)

	plus := NewRollout(n, steps)
	minus := NewRollout(n, steps)
	force := make([]float64, n)
	out := newTimestepJacobians(n, steps)
	x := start.Clone()
	for k := range x {
		x[k] = start[k] + eps
		if _, err := simulate(w, x[:n], x[n:], forces, plus, nil, force); err != nil {
			return nil, err
		}
		x[k] = start[k] - eps
		if _, err := simulate(w, x[:n], x[n:], forces, minus, nil, force); err != nil {
			return nil, err
		}
		x[k] = start[k]
		for t := 0; t < steps; t++ {
			for i := 0; i < n; i++ {
				out.blocks[t].Set(i, k, (plus.Poses.At(i, t)-minus.Poses.At(i, t))/(2*eps))
				out.blocks[t].Set(n+i, k, (plus.Vels.At(i, t)-minus.Vels.At(i, t))/(2*eps))
			}
		}
	}
	return out, nil
}
