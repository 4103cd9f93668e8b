package trajectory

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Rollout is a trajectory laid out as dofs x steps matrices. Column t of
// Poses and Vels is the state after step t; column t of Forces is the
// force applied during step t.
type Rollout struct {
	Poses  *mat.Dense
	Vels   *mat.Dense
	Forces *mat.Dense
}

// NewRollout allocates a zeroed rollout. It panics if either dimension is
// not positive.
func NewRollout(dofs, steps int) *Rollout {
	if dofs <= 0 || steps <= 0 {
		panic(fmt.Errorf("%w: rollout needs positive dims, got %dx%d", dynamo.ErrInvalidConfig, dofs, steps))
	}
	return &Rollout{
		Poses:  mat.NewDense(dofs, steps, nil),
		Vels:   mat.NewDense(dofs, steps, nil),
		Forces: mat.NewDense(dofs, steps, nil),
	}
}

func (r *Rollout) Dims() (dofs, steps int) {
	return r.Poses.Dims()
}

func (r *Rollout) Zero() {
	r.Poses.Zero()
	r.Vels.Zero()
	r.Forces.Zero()
}

// Slice returns a view of steps [start, end). The view shares storage.
func (r *Rollout) Slice(start, end int) *Rollout {
	dofs, _ := r.Dims()
	return &Rollout{
		Poses:  r.Poses.Slice(0, dofs, start, end).(*mat.Dense),
		Vels:   r.Vels.Slice(0, dofs, start, end).(*mat.Dense),
		Forces: r.Forces.Slice(0, dofs, start, end).(*mat.Dense),
	}
}

func (r *Rollout) Clone() *Rollout {
	return &Rollout{
		Poses:  mat.DenseCopyOf(r.Poses),
		Vels:   mat.DenseCopyOf(r.Vels),
		Forces: mat.DenseCopyOf(r.Forces),
	}
}

func (r *Rollout) Copy(from *Rollout) {
	r.Poses.Copy(from.Poses)
	r.Vels.Copy(from.Vels)
	r.Forces.Copy(from.Forces)
}

// FinalState returns (q, v) after the last step.
func (r *Rollout) FinalState() dynamo.State {
	_, steps := r.Dims()
	return dynamo.Concat(mat.Col(nil, steps-1, r.Poses), mat.Col(nil, steps-1, r.Vels))
}

// StateAt returns (q, v) after step t.
func (r *Rollout) StateAt(t int) dynamo.State {
	return dynamo.Concat(mat.Col(nil, t, r.Poses), mat.Col(nil, t, r.Vels))
}

func (r *Rollout) mustHaveDims(what string, dofs, steps int) {
	mustHaveShape(what+" poses", r.Poses, dofs, steps)
	mustHaveShape(what+" vels", r.Vels, dofs, steps)
	mustHaveShape(what+" forces", r.Forces, dofs, steps)
}

func mustHaveShape(what string, m mat.Matrix, rows, cols int) {
	if m == nil {
		panic(dynamo.ShapeError(what, 0, 0, rows, cols))
	}
	r, c := m.Dims()
	if r != rows || c != cols {
		panic(dynamo.ShapeError(what, r, c, rows, cols))
	}
}

func mustHaveLen(what string, got, want int) {
	if got != want {
		panic(dynamo.DimensionError(what, got, want))
	}
}
