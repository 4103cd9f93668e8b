package trajectory

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// SingleShot represents a trajectory by its start state and one force per
// step. Its flat vector is [q0, v0] when the start state is tuned, then the
// forces step-major: f_0[0..n), f_1[0..n), ...
type SingleShot struct {
	base

	startPos dynamo.State
	startVel dynamo.State
	forces   *mat.Dense

	// Snapshots of the last rollout. They stay valid until the
	// representation changes or another world is passed.
	snaps     []*dynamo.Snapshot
	snapWorld dynamo.World
	snapValid bool
}

var _ Shot = (*SingleShot)(nil)

// NewSingleShot starts from the current state of w, holding its current
// forces constant over every step. It panics if steps is not positive.
func NewSingleShot(w dynamo.World, loss LossFn, steps int, tuneStart bool, opts ...Option) *SingleShot {
	s := &SingleShot{base: newBase(w, loss, steps, tuneStart, opts)}
	s.startPos = w.Positions()
	s.startVel = w.Velocities()
	s.forces = mat.NewDense(s.dofs, steps, nil)
	f := w.Forces()
	for t := 0; t < steps; t++ {
		s.forces.SetCol(t, f)
	}
	return s
}

func (s *SingleShot) startDim() int {
	if s.tuneStart {
		return 2 * s.dofs
	}
	return 0
}

func (s *SingleShot) FlatProblemDim() int {
	return s.startDim() + s.dofs*s.steps
}

func (s *SingleShot) ConstraintDim() int {
	return s.customConstraintDim()
}

func (s *SingleShot) invalidate() {
	s.snapValid = false
}

// SetStartState replaces the represented start state.
func (s *SingleShot) SetStartState(q, v []float64) {
	mustHaveLen("start position", len(q), s.dofs)
	mustHaveLen("start velocity", len(v), s.dofs)
	copy(s.startPos, q)
	copy(s.startVel, v)
	s.invalidate()
}

// SetForce replaces the force applied during step t.
func (s *SingleShot) SetForce(t int, f []float64) {
	mustHaveLen("force", len(f), s.dofs)
	s.forces.SetCol(t, f)
	s.invalidate()
}

func (s *SingleShot) Flatten(flat []float64) {
	mustHaveLen("flat", len(flat), s.FlatProblemDim())
	off := 0
	if s.tuneStart {
		copy(flat[:s.dofs], s.startPos)
		copy(flat[s.dofs:2*s.dofs], s.startVel)
		off = 2 * s.dofs
	}
	for t := 0; t < s.steps; t++ {
		mat.Col(flat[off+t*s.dofs:off+(t+1)*s.dofs], t, s.forces)
	}
}

func (s *SingleShot) Unflatten(flat []float64) {
	mustHaveLen("flat", len(flat), s.FlatProblemDim())
	off := 0
	if s.tuneStart {
		copy(s.startPos, flat[:s.dofs])
		copy(s.startVel, flat[s.dofs:2*s.dofs])
		off = 2 * s.dofs
	}
	for t := 0; t < s.steps; t++ {
		s.forces.SetCol(t, flat[off+t*s.dofs:off+(t+1)*s.dofs])
	}
	s.invalidate()
}

func (s *SingleShot) Unroll(w dynamo.World, r *Rollout) error {
	s.checkWorld(w)
	r.mustHaveDims("rollout", s.dofs, s.steps)
	return s.unroll(w, r)
}

// unroll refreshes the snapshot cache and, when r is non-nil, records the
// rollout.
func (s *SingleShot) unroll(w dynamo.World, r *Rollout) error {
	s.scratch.ensure(s.dofs, s.steps)
	saved := dynamo.CaptureState(w)
	defer saved.Restore(w)

	s.snapValid = false
	var err error
	s.snaps, err = simulate(w, s.startPos, s.startVel, s.forces, r, s.snaps[:0], s.scratch.force)
	if err != nil {
		s.rolloutFailed(err)
		return err
	}
	s.snapWorld = w
	s.snapValid = true
	s.logRollout(w)
	return nil
}

func (s *SingleShot) ensureSnapshots(w dynamo.World) error {
	if s.snapValid && sameWorld(s.snapWorld, w) {
		return nil
	}
	return s.unroll(w, nil)
}

func (s *SingleShot) States(w dynamo.World, r *Rollout, _ bool) error {
	return s.Unroll(w, r)
}

func (s *SingleShot) StartState() dynamo.State {
	return dynamo.Concat(s.startPos, s.startVel)
}

func (s *SingleShot) FinalState(w dynamo.World) (dynamo.State, error) {
	s.checkWorld(w)
	if err := s.ensureSnapshots(w); err != nil {
		return nil, err
	}
	last := s.snaps[len(s.snaps)-1]
	return last.PostStepState(), nil
}

func (s *SingleShot) UpperBounds(w dynamo.World, flat []float64) {
	l := w.Limits()
	s.bounds(flat, l.PositionUpper, l.VelocityUpper, l.ForceUpper)
}

func (s *SingleShot) LowerBounds(w dynamo.World, flat []float64) {
	l := w.Limits()
	s.bounds(flat, l.PositionLower, l.VelocityLower, l.ForceLower)
}

func (s *SingleShot) bounds(flat []float64, pos, vel, force dynamo.State) {
	mustHaveLen("flat bounds", len(flat), s.FlatProblemDim())
	off := 0
	if s.tuneStart {
		copy(flat[:s.dofs], pos)
		copy(flat[s.dofs:2*s.dofs], vel)
		off = 2 * s.dofs
	}
	for t := 0; t < s.steps; t++ {
		copy(flat[off+t*s.dofs:off+(t+1)*s.dofs], force)
	}
}

func (s *SingleShot) ConstraintUpperBounds(c []float64) {
	mustHaveLen("constraint bounds", len(c), s.ConstraintDim())
	lower := make([]float64, len(c))
	s.constraintBounds(lower, c)
}

func (s *SingleShot) ConstraintLowerBounds(c []float64) {
	mustHaveLen("constraint bounds", len(c), s.ConstraintDim())
	upper := make([]float64, len(c))
	s.constraintBounds(c, upper)
}

// InitialGuess holds the current state of w constant across every step:
// its position and velocity as the start state and its force at each step,
// clamped into the bounds. The represented trajectory is left untouched.
func (s *SingleShot) InitialGuess(w dynamo.World, flat []float64) {
	s.checkWorld(w)
	mustHaveLen("flat", len(flat), s.FlatProblemDim())
	n := s.dofs
	off := 0
	if s.tuneStart {
		copy(flat[:n], w.Positions())
		copy(flat[n:2*n], w.Velocities())
		off = 2 * n
	}
	f := w.Forces()
	for t := 0; t < s.steps; t++ {
		copy(flat[off+t*n:off+(t+1)*n], f)
	}
	clampToBounds(s, w, flat)
}

func (s *SingleShot) ComputeConstraints(w dynamo.World, c []float64) error {
	mustHaveLen("constraints", len(c), s.ConstraintDim())
	s.scratch.ensure(s.dofs, s.steps)
	r := s.scratch.rollout
	if err := s.Unroll(w, r); err != nil {
		return err
	}
	s.evalConstraints(r, c)
	return nil
}

func (s *SingleShot) BackpropJacobian(w dynamo.World, jac *mat.Dense) error {
	m := s.ConstraintDim()
	if m == 0 {
		return nil
	}
	mustHaveShape("jacobian", jac, m, s.FlatProblemDim())
	s.scratch.ensure(s.dofs, s.steps)
	r := s.scratch.rollout
	if err := s.Unroll(w, r); err != nil {
		return err
	}
	jac.Zero()
	return constraintRows(s, &s.base, w, r, jac, 0)
}

func (s *SingleShot) Loss(w dynamo.World) (float64, error) {
	return lossValue(s, &s.base, w)
}

func (s *SingleShot) BackpropGradient(w dynamo.World, grad []float64) error {
	return lossGradient(s, &s.base, w, grad)
}

// BackpropGradientWrt runs the reverse sweep over the cached snapshots.
// Column t of gradPoses and gradVels is the gradient with respect to the
// state after step t; column t of gradForces the direct gradient with
// respect to the force of step t.
func (s *SingleShot) BackpropGradientWrt(w dynamo.World, gradPoses, gradVels, gradForces *mat.Dense, grad []float64) error {
	s.checkWorld(w)
	mustHaveShape("pose gradient", gradPoses, s.dofs, s.steps)
	mustHaveShape("velocity gradient", gradVels, s.dofs, s.steps)
	mustHaveShape("force gradient", gradForces, s.dofs, s.steps)
	mustHaveLen("gradient", len(grad), s.FlatProblemDim())
	return s.backprop(w, gradPoses, gradVels, gradForces, 0, grad)
}

// backprop is the reverse sweep reading the gradient matrices from column
// col0 on, so a caller holding a longer horizon can pass its own matrices
// without slicing them.
func (s *SingleShot) backprop(w dynamo.World, gradPoses, gradVels, gradForces *mat.Dense, col0 int, grad []float64) error {
	if err := s.ensureSnapshots(w); err != nil {
		return err
	}

	n := s.dofs
	sc := &s.scratch
	nextPos, nextVel := sc.nextPos, sc.nextVel
	pos, vel := sc.pos, sc.vel
	for i := 0; i < n; i++ {
		nextPos[i] = 0
		nextVel[i] = 0
	}

	off := s.startDim()
	for t := s.steps - 1; t >= 0; t-- {
		for i := 0; i < n; i++ {
			nextPos[i] += gradPoses.At(i, col0+t)
			nextVel[i] += gradVels.At(i, col0+t)
		}
		if err := s.snaps[t].Backprop(nextPos, nextVel, pos, vel, sc.gradForce); err != nil {
			return &dynamo.RolloutError{Step: t, State: s.snaps[t].PreStepState(), Wrapped: err}
		}
		g := grad[off+t*n : off+(t+1)*n]
		for i := 0; i < n; i++ {
			g[i] = sc.gradForce[i] + gradForces.At(i, col0+t)
		}
		nextPos, pos = pos, nextPos
		nextVel, vel = vel, nextVel
	}

	if s.tuneStart {
		copy(grad[:n], nextPos)
		copy(grad[n:2*n], nextVel)
	}
	return nil
}

// FinalStateJacobian writes d(q_T, v_T) / d flat into jac, which is
// 2*NumDofs x FlatProblemDim.
func (s *SingleShot) FinalStateJacobian(w dynamo.World, jac *mat.Dense) error {
	s.checkWorld(w)
	mustHaveShape("final state jacobian", jac, 2*s.dofs, s.FlatProblemDim())
	if err := s.ensureSnapshots(w); err != nil {
		return err
	}

	n := s.dofs
	chain, tmp := s.scratch.chain, s.scratch.chainTmp
	chain.Zero()
	for i := 0; i < 2*n; i++ {
		chain.Set(i, i, 1)
	}

	off := s.startDim()
	for t := s.steps - 1; t >= 0; t-- {
		j, err := s.snaps[t].Jacobians()
		if err != nil {
			return &dynamo.RolloutError{Step: t, State: s.snaps[t].PreStepState(), Wrapped: err}
		}
		block := jac.Slice(0, 2*n, off+t*n, off+(t+1)*n).(*mat.Dense)
		block.Mul(chain, j.Force)
		tmp.Mul(chain, j.State)
		chain, tmp = tmp, chain
	}

	if s.tuneStart {
		jac.Slice(0, 2*n, 0, 2*n).(*mat.Dense).Copy(chain)
	}
	return nil
}

func (s *SingleShot) NumberNonZeroJacobian() int {
	return denseNonZero(s)
}

func (s *SingleShot) JacobianSparsityStructure(rows, cols []int) {
	denseSparsity(s, rows, cols)
}

func (s *SingleShot) SparseJacobian(w dynamo.World, sparse []float64) error {
	return denseSparseJacobian(s, &s.base, w, sparse)
}

func (s *SingleShot) FlatDimName(i int) string {
	if i < 0 || i >= s.FlatProblemDim() {
		panic(fmt.Errorf("%w: flat dim %d out of range [0, %d)", dynamo.ErrDimensionMismatch, i, s.FlatProblemDim()))
	}
	n := s.dofs
	if s.tuneStart {
		if i < n {
			return fmt.Sprintf("pos[%s]", s.world.DofName(i))
		}
		if i < 2*n {
			return fmt.Sprintf("vel[%s]", s.world.DofName(i-n))
		}
		i -= 2 * n
	}
	return fmt.Sprintf("force[%s]@%d", s.world.DofName(i%n), i/n)
}

func (s *SingleShot) logRollout(w dynamo.World) {
	if ce := s.log.Check(zap.DebugLevel, "rollout"); ce != nil {
		final := s.snaps[len(s.snaps)-1].PostStepState()
		ce.Write(zap.Int("steps", s.steps), zap.Float64s("final", final), zap.Float64("dt", w.TimeStep()))
	}
}
