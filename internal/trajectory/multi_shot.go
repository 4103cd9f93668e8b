package trajectory

import (
	"errors"
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// MultiShot splits a trajectory into consecutive SingleShots of at most
// shotLength steps. Every shot after the first tunes its own start state,
// and a knot residual finalState(i-1) - startState(i) ties each boundary
// back together. Knot residuals come before custom constraints.
type MultiShot struct {
	base

	shotLength int
	shots      []*SingleShot
	starts     []int // first step of each shot
	offsets    []int // first flat entry of each shot
}

var _ Shot = (*MultiShot)(nil)

// NewMultiShot starts every knot on a continuous rollout from the current
// state of w, so the initial guess satisfies every knot residual. It panics
// on non-positive steps or shotLength and returns the rollout error if that
// first rollout fails.
func NewMultiShot(w dynamo.World, loss LossFn, steps, shotLength int, tuneStart bool, opts ...Option) (*MultiShot, error) {
	if shotLength <= 0 {
		panic(fmt.Errorf("%w: shot length must be positive, got %d", dynamo.ErrInvalidConfig, shotLength))
	}
	m := &MultiShot{
		base:       newBase(w, loss, steps, tuneStart, opts),
		shotLength: shotLength,
	}

	offset := 0
	for start := 0; start < steps; start += shotLength {
		sub := NewSingleShot(w, nil, min(shotLength, steps-start), tuneStart || start > 0, opts...)
		m.shots = append(m.shots, sub)
		m.starts = append(m.starts, start)
		m.offsets = append(m.offsets, offset)
		offset += sub.FlatProblemDim()
	}

	n := m.dofs
	for i := 1; i < len(m.shots); i++ {
		final, err := m.shots[i-1].FinalState(w)
		if err != nil {
			return nil, m.stepError(i-1, err)
		}
		m.shots[i].SetStartState(final[:n], final[n:])
	}
	m.log.Debug("multi shot ready",
		zap.Int("steps", steps),
		zap.Int("shots", len(m.shots)),
		zap.Int("flat_dim", m.FlatProblemDim()))
	return m, nil
}

// stepError rebases a RolloutError from shot i onto the whole trajectory.
func (m *MultiShot) stepError(i int, err error) error {
	var re *dynamo.RolloutError
	if errors.As(err, &re) {
		re.Step += m.starts[i]
	}
	return err
}

func (m *MultiShot) NumShots() int { return len(m.shots) }

func (m *MultiShot) knotDim() int {
	return 2 * m.dofs * (len(m.shots) - 1)
}

func (m *MultiShot) FlatProblemDim() int {
	dim := 0
	for _, sub := range m.shots {
		dim += sub.FlatProblemDim()
	}
	return dim
}

func (m *MultiShot) ConstraintDim() int {
	return m.knotDim() + m.customConstraintDim()
}

func (m *MultiShot) subFlat(flat []float64, i int) []float64 {
	return flat[m.offsets[i] : m.offsets[i]+m.shots[i].FlatProblemDim()]
}

func (m *MultiShot) subRollout(r *Rollout, i int) *Rollout {
	return r.Slice(m.starts[i], m.starts[i]+m.shots[i].steps)
}

func (m *MultiShot) subMatrix(a *mat.Dense, i int) *mat.Dense {
	return a.Slice(0, m.dofs, m.starts[i], m.starts[i]+m.shots[i].steps).(*mat.Dense)
}

func (m *MultiShot) Flatten(flat []float64) {
	mustHaveLen("flat", len(flat), m.FlatProblemDim())
	for i, sub := range m.shots {
		sub.Flatten(m.subFlat(flat, i))
	}
}

func (m *MultiShot) Unflatten(flat []float64) {
	mustHaveLen("flat", len(flat), m.FlatProblemDim())
	for i, sub := range m.shots {
		sub.Unflatten(m.subFlat(flat, i))
	}
}

// Unroll runs each shot from its own knot.
func (m *MultiShot) Unroll(w dynamo.World, r *Rollout) error {
	m.checkWorld(w)
	r.mustHaveDims("rollout", m.dofs, m.steps)
	for i, sub := range m.shots {
		if err := sub.Unroll(w, m.subRollout(r, i)); err != nil {
			return m.stepError(i, err)
		}
	}
	return nil
}

func (m *MultiShot) States(w dynamo.World, r *Rollout, useKnots bool) error {
	if useKnots {
		return m.Unroll(w, r)
	}
	m.checkWorld(w)
	r.mustHaveDims("rollout", m.dofs, m.steps)
	m.scratch.ensure(m.dofs, m.steps)
	for i, sub := range m.shots {
		m.subMatrix(r.Forces, i).Copy(sub.forces)
	}

	saved := dynamo.CaptureState(w)
	defer saved.Restore(w)
	first := m.shots[0]
	if _, err := simulate(w, first.startPos, first.startVel, r.Forces, r, nil, m.scratch.force); err != nil {
		m.rolloutFailed(err)
		return err
	}
	return nil
}

func (m *MultiShot) StartState() dynamo.State {
	return m.shots[0].StartState()
}

func (m *MultiShot) FinalState(w dynamo.World) (dynamo.State, error) {
	last := len(m.shots) - 1
	s, err := m.shots[last].FinalState(w)
	if err != nil {
		return nil, m.stepError(last, err)
	}
	return s, nil
}

func (m *MultiShot) UpperBounds(w dynamo.World, flat []float64) {
	mustHaveLen("flat bounds", len(flat), m.FlatProblemDim())
	for i, sub := range m.shots {
		sub.UpperBounds(w, m.subFlat(flat, i))
	}
}

func (m *MultiShot) LowerBounds(w dynamo.World, flat []float64) {
	mustHaveLen("flat bounds", len(flat), m.FlatProblemDim())
	for i, sub := range m.shots {
		sub.LowerBounds(w, m.subFlat(flat, i))
	}
}

func (m *MultiShot) ConstraintUpperBounds(c []float64) {
	mustHaveLen("constraint bounds", len(c), m.ConstraintDim())
	k := m.knotDim()
	for i := 0; i < k; i++ {
		c[i] = 0
	}
	m.constraintBounds(make([]float64, len(c)-k), c[k:])
}

func (m *MultiShot) ConstraintLowerBounds(c []float64) {
	mustHaveLen("constraint bounds", len(c), m.ConstraintDim())
	k := m.knotDim()
	for i := 0; i < k; i++ {
		c[i] = 0
	}
	m.constraintBounds(c[k:], make([]float64, len(c)-k))
}

// InitialGuess is the current representation clamped into the bounds.
// Holding the world state constant would break every knot, so the guess
// stays on the rollout the shot was built from.
func (m *MultiShot) InitialGuess(w dynamo.World, flat []float64) {
	m.checkWorld(w)
	m.Flatten(flat)
	clampToBounds(m, w, flat)
}

func (m *MultiShot) ComputeConstraints(w dynamo.World, c []float64) error {
	mustHaveLen("constraints", len(c), m.ConstraintDim())
	m.scratch.ensure(m.dofs, m.steps)
	r := m.scratch.rollout
	if err := m.Unroll(w, r); err != nil {
		return err
	}

	row := 0
	for i := 1; i < len(m.shots); i++ {
		t := m.starts[i] - 1
		start := m.shots[i].StartState()
		for k := 0; k < m.dofs; k++ {
			c[row+k] = r.Poses.At(k, t) - start[k]
			c[row+m.dofs+k] = r.Vels.At(k, t) - start[m.dofs+k]
		}
		row += 2 * m.dofs
	}
	m.evalConstraints(r, c[row:])
	return nil
}

func (m *MultiShot) BackpropJacobian(w dynamo.World, jac *mat.Dense) error {
	rows := m.ConstraintDim()
	if rows == 0 {
		return nil
	}
	mustHaveShape("jacobian", jac, rows, m.FlatProblemDim())
	m.scratch.ensure(m.dofs, m.steps)
	r := m.scratch.rollout
	if err := m.Unroll(w, r); err != nil {
		return err
	}
	jac.Zero()

	n2 := 2 * m.dofs
	for i := 1; i < len(m.shots); i++ {
		prev := m.shots[i-1]
		row := n2 * (i - 1)
		block := jac.Slice(row, row+n2, m.offsets[i-1], m.offsets[i-1]+prev.FlatProblemDim()).(*mat.Dense)
		if err := prev.FinalStateJacobian(w, block); err != nil {
			return m.stepError(i-1, err)
		}
		for k := 0; k < n2; k++ {
			jac.Set(row+k, m.offsets[i]+k, -1)
		}
	}
	return constraintRows(m, &m.base, w, r, jac, m.knotDim())
}

func (m *MultiShot) Loss(w dynamo.World) (float64, error) {
	return lossValue(m, &m.base, w)
}

func (m *MultiShot) BackpropGradient(w dynamo.World, grad []float64) error {
	return lossGradient(m, &m.base, w, grad)
}

// BackpropGradientWrt splits the rollout gradient by shot. With knots in
// place no shot's states depend on another shot's variables.
func (m *MultiShot) BackpropGradientWrt(w dynamo.World, gradPoses, gradVels, gradForces *mat.Dense, grad []float64) error {
	m.checkWorld(w)
	mustHaveShape("pose gradient", gradPoses, m.dofs, m.steps)
	mustHaveShape("velocity gradient", gradVels, m.dofs, m.steps)
	mustHaveShape("force gradient", gradForces, m.dofs, m.steps)
	mustHaveLen("gradient", len(grad), m.FlatProblemDim())
	for i, sub := range m.shots {
		if err := sub.backprop(w, gradPoses, gradVels, gradForces, m.starts[i], m.subFlat(grad, i)); err != nil {
			return m.stepError(i, err)
		}
	}
	return nil
}

// eachNonZero visits the Jacobian entries that can be non-zero in
// row-major order. A knot row touches the previous shot's variables and
// one start entry of the next shot; custom rows are dense.
func (m *MultiShot) eachNonZero(fn func(row, col int)) {
	n2 := 2 * m.dofs
	row := 0
	for i := 1; i < len(m.shots); i++ {
		prev := m.shots[i-1].FlatProblemDim()
		for k := 0; k < n2; k++ {
			for c := 0; c < prev; c++ {
				fn(row, m.offsets[i-1]+c)
			}
			fn(row, m.offsets[i]+k)
			row++
		}
	}
	flat := m.FlatProblemDim()
	for end := m.ConstraintDim(); row < end; row++ {
		for c := 0; c < flat; c++ {
			fn(row, c)
		}
	}
}

func (m *MultiShot) NumberNonZeroJacobian() int {
	nnz := 0
	for i := 1; i < len(m.shots); i++ {
		nnz += 2 * m.dofs * (m.shots[i-1].FlatProblemDim() + 1)
	}
	return nnz + m.customConstraintDim()*m.FlatProblemDim()
}

func (m *MultiShot) JacobianSparsityStructure(rows, cols []int) {
	nnz := m.NumberNonZeroJacobian()
	mustHaveLen("sparsity rows", len(rows), nnz)
	mustHaveLen("sparsity cols", len(cols), nnz)
	k := 0
	m.eachNonZero(func(r, c int) {
		rows[k] = r
		cols[k] = c
		k++
	})
}

func (m *MultiShot) SparseJacobian(w dynamo.World, sparse []float64) error {
	mustHaveLen("sparse jacobian", len(sparse), m.NumberNonZeroJacobian())
	rows := m.ConstraintDim()
	if rows == 0 {
		return nil
	}
	jac := m.scratch.jacobian(rows, m.FlatProblemDim())
	if err := m.BackpropJacobian(w, jac); err != nil {
		return err
	}
	k := 0
	m.eachNonZero(func(r, c int) {
		sparse[k] = jac.At(r, c)
		k++
	})
	return nil
}

func (m *MultiShot) FlatDimName(i int) string {
	if i < 0 || i >= m.FlatProblemDim() {
		panic(fmt.Errorf("%w: flat dim %d out of range [0, %d)", dynamo.ErrDimensionMismatch, i, m.FlatProblemDim()))
	}
	s := len(m.shots) - 1
	for s > 0 && m.offsets[s] > i {
		s--
	}
	return fmt.Sprintf("shot %d: %s", s, m.shots[s].FlatDimName(i-m.offsets[s]))
}
