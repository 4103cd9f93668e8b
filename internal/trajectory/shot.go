package trajectory

import (
	"fmt"
	"reflect"

	"github.com/san-kum/dynshot/internal/dynamo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// Shot maps a flat optimization vector onto a rollout of a World, and
// differentiates the loss and the constraints with respect to that vector.
//
// Buffers passed in must have exactly the documented size; a mismatch
// panics with an error wrapping dynamo.ErrDimensionMismatch. A step the
// World cannot take is returned as a *dynamo.RolloutError.
//
// A Shot is not safe for concurrent use.
type Shot interface {
	NumDofs() int
	NumSteps() int
	FlatProblemDim() int
	// ConstraintDim is the number of structural residuals plus the output
	// length of every attached constraint.
	ConstraintDim() int

	SetLoss(l LossFn)
	AddConstraint(c LossFn)

	Flatten(flat []float64)
	Unflatten(flat []float64)

	// Unroll drives w from the represented start state and writes every
	// step into r, which must be NumDofs x NumSteps. The state of w is
	// restored afterwards.
	Unroll(w dynamo.World, r *Rollout) error
	// States is Unroll, except that useKnots=false integrates straight
	// through any knot points from the first start state.
	States(w dynamo.World, r *Rollout, useKnots bool) error
	StartState() dynamo.State
	FinalState(w dynamo.World) (dynamo.State, error)

	UpperBounds(w dynamo.World, flat []float64)
	LowerBounds(w dynamo.World, flat []float64)
	ConstraintUpperBounds(c []float64)
	ConstraintLowerBounds(c []float64)
	InitialGuess(w dynamo.World, flat []float64)

	ComputeConstraints(w dynamo.World, c []float64) error
	// BackpropJacobian writes d constraints / d flat into jac, which is
	// ConstraintDim x FlatProblemDim. jac may be nil when ConstraintDim
	// is zero.
	BackpropJacobian(w dynamo.World, jac *mat.Dense) error

	Loss(w dynamo.World) (float64, error)
	BackpropGradient(w dynamo.World, grad []float64) error
	// BackpropGradientWrt maps gradients with respect to every column of a
	// rollout onto the flat vector.
	BackpropGradientWrt(w dynamo.World, gradPoses, gradVels, gradForces *mat.Dense, grad []float64) error

	NumberNonZeroJacobian() int
	// JacobianSparsityStructure lists the (row, col) of every entry
	// SparseJacobian writes, in the same order.
	JacobianSparsityStructure(rows, cols []int)
	SparseJacobian(w dynamo.World, sparse []float64) error

	FlatDimName(i int) string
}

type Option func(*base)

// WithLogger routes rollout diagnostics to l. The default discards them.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) {
		if l != nil {
			b.log = l
		}
	}
}

// base is the state every Shot variant shares.
type base struct {
	loss        LossFn
	constraints []LossFn
	steps       int
	dofs        int
	tuneStart   bool
	world       dynamo.World
	log         *zap.Logger
	scratch     scratch
}

func newBase(w dynamo.World, loss LossFn, steps int, tuneStart bool, opts []Option) base {
	if w == nil {
		panic(fmt.Errorf("%w: shot needs a world", dynamo.ErrInvalidConfig))
	}
	if steps <= 0 {
		panic(fmt.Errorf("%w: shot needs at least one step, got %d", dynamo.ErrInvalidConfig, steps))
	}
	b := base{
		loss:      loss,
		steps:     steps,
		dofs:      w.NumDofs(),
		tuneStart: tuneStart,
		world:     w,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) NumSteps() int { return b.steps }
func (b *base) NumDofs() int  { return b.dofs }

func (b *base) SetLoss(l LossFn) { b.loss = l }

// AddConstraint appends c. Constraints are evaluated in the order they
// were added and cannot be removed.
func (b *base) AddConstraint(c LossFn) {
	if c == nil {
		panic(fmt.Errorf("%w: nil constraint", dynamo.ErrInvalidConfig))
	}
	b.constraints = append(b.constraints, c)
}

func (b *base) customConstraintDim() int {
	n := 0
	for _, c := range b.constraints {
		n += OutputLen(c)
	}
	return n
}

func (b *base) checkWorld(w dynamo.World) {
	if w.NumDofs() != b.dofs {
		panic(dynamo.DimensionError("world dofs", w.NumDofs(), b.dofs))
	}
}

// evalConstraints writes every custom constraint into out, in order.
func (b *base) evalConstraints(r *Rollout, out []float64) {
	off := 0
	for _, c := range b.constraints {
		n := OutputLen(c)
		c.Evaluate(r, out[off:off+n])
		off += n
	}
}

func (b *base) constraintBounds(lower, upper []float64) {
	off := 0
	for _, c := range b.constraints {
		n := OutputLen(c)
		if bc, ok := c.(Bounded); ok {
			bc.Bounds(lower[off:off+n], upper[off:off+n])
		} else {
			for i := off; i < off+n; i++ {
				lower[i] = 0
				upper[i] = 0
			}
		}
		off += n
	}
}

func (b *base) rolloutFailed(err error) {
	b.log.Debug("rollout failed", zap.Int("steps", b.steps), zap.Int("dofs", b.dofs), zap.Error(err))
}

// constraintRows fills one Jacobian row per custom constraint output,
// starting at row0, by reverse-mode through s. r must hold the rollout at
// the current flat vector.
func constraintRows(s Shot, b *base, w dynamo.World, r *Rollout, jac *mat.Dense, row0 int) error {
	g := b.scratch.grad
	row := row0
	for _, c := range b.constraints {
		for k := 0; k < OutputLen(c); k++ {
			g.Zero()
			c.Gradient(r, k, g)
			if err := s.BackpropGradientWrt(w, g.Poses, g.Vels, g.Forces, jac.RawRowView(row)); err != nil {
				return err
			}
			row++
		}
	}
	return nil
}

func lossValue(s Shot, b *base, w dynamo.World) (float64, error) {
	b.scratch.ensure(b.dofs, b.steps)
	r := b.scratch.rollout
	if err := s.Unroll(w, r); err != nil {
		return 0, err
	}
	return Value(b.loss, r), nil
}

func lossGradient(s Shot, b *base, w dynamo.World, grad []float64) error {
	mustHaveLen("gradient", len(grad), s.FlatProblemDim())
	b.scratch.ensure(b.dofs, b.steps)
	r := b.scratch.rollout
	if err := s.Unroll(w, r); err != nil {
		return err
	}
	g := b.scratch.grad
	g.Zero()
	if b.loss != nil {
		b.loss.Gradient(r, 0, g)
	}
	return s.BackpropGradientWrt(w, g.Poses, g.Vels, g.Forces, grad)
}

func denseNonZero(s Shot) int {
	return s.ConstraintDim() * s.FlatProblemDim()
}

// denseSparsity lists every Jacobian entry in row-major order.
func denseSparsity(s Shot, rows, cols []int) {
	nnz := denseNonZero(s)
	mustHaveLen("sparsity rows", len(rows), nnz)
	mustHaveLen("sparsity cols", len(cols), nnz)
	n := s.FlatProblemDim()
	for k := range rows {
		rows[k] = k / n
		cols[k] = k % n
	}
}

func denseSparseJacobian(s Shot, b *base, w dynamo.World, sparse []float64) error {
	mustHaveLen("sparse jacobian", len(sparse), denseNonZero(s))
	m, n := s.ConstraintDim(), s.FlatProblemDim()
	if m == 0 {
		return nil
	}
	jac := b.scratch.jacobian(m, n)
	if err := s.BackpropJacobian(w, jac); err != nil {
		return err
	}
	for i := 0; i < m; i++ {
		copy(sparse[i*n:(i+1)*n], jac.RawRowView(i))
	}
	return nil
}

func clampToBounds(s Shot, w dynamo.World, flat []float64) {
	lower := make([]float64, len(flat))
	upper := make([]float64, len(flat))
	s.LowerBounds(w, lower)
	s.UpperBounds(w, upper)
	clampInto(flat, lower, upper)
}

// sameWorld reports whether a and b are the same World. Worlds of a type
// that cannot be compared are never the same, which only costs a fresh
// rollout.
func sameWorld(a, b dynamo.World) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	t := reflect.TypeOf(a)
	return t == reflect.TypeOf(b) && t.Comparable() && a == b
}

// clampInto projects flat onto [lower, upper].
func clampInto(flat, lower, upper []float64) {
	for i, x := range flat {
		if x < lower[i] {
			flat[i] = lower[i]
		} else if x > upper[i] {
			flat[i] = upper[i]
		}
	}
}

// simulate steps w from (q0, v0) under the columns of forces. States are
// written into r when it is non-nil and snapshots are appended to snaps.
// The caller restores w.
func simulate(w dynamo.World, q0, v0 []float64, forces mat.Matrix, r *Rollout, snaps []*dynamo.Snapshot, force []float64) ([]*dynamo.Snapshot, error) {
	w.SetPositions(q0)
	w.SetVelocities(v0)
	_, steps := forces.Dims()
	for t := 0; t < steps; t++ {
		mat.Col(force, t, forces)
		w.SetForces(force)
		snap, err := w.Step()
		if err != nil {
			return snaps, &dynamo.RolloutError{
				Step:    t,
				State:   dynamo.Concat(w.Positions(), w.Velocities()),
				Wrapped: err,
			}
		}
		snaps = append(snaps, snap)
		if r != nil {
			r.Poses.SetCol(t, snap.PostStepPosition())
			r.Vels.SetCol(t, snap.PostStepVelocity())
			r.Forces.SetCol(t, force)
		}
	}
	return snaps, nil
}
