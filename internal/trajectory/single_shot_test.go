package trajectory

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/integrators"
	"github.com/san-kum/dynshot/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSingleShotLayout(t *testing.T) {
	w := coupledWorld()

	tuned := NewSingleShot(w, nil, 5, true)
	assert.Equal(t, 4+2*5, tuned.FlatProblemDim())
	assert.Equal(t, 0, tuned.ConstraintDim())

	fixed := NewSingleShot(w, nil, 5, false)
	assert.Equal(t, 2*5, fixed.FlatProblemDim())

	flat := make([]float64, tuned.FlatProblemDim())
	tuned.Flatten(flat)
	assert.Equal(t, []float64{0.3, -0.1, 0.05, 0.2}, flat[:4])
	for step := 0; step < 5; step++ {
		assert.Equal(t, []float64{0.1, -0.2}, flat[4+2*step:6+2*step], "step %d", step)
	}
}

func TestSingleShotRoundTrip(t *testing.T) {
	for _, tune := range []bool{true, false} {
		s := NewSingleShot(coupledWorld(), nil, 5, tune)

		f := make([]float64, s.FlatProblemDim())
		for i := range f {
			f[i] = math.Sin(float64(i) + 0.5)
		}
		s.Unflatten(f)
		got := make([]float64, len(f))
		s.Flatten(got)
		assert.InDeltaSlice(t, f, got, 1e-10, "flatten(unflatten(f)), tune=%v", tune)

		s.Unflatten(got)
		again := make([]float64, len(f))
		s.Flatten(again)
		assert.InDeltaSlice(t, got, again, 1e-10, "unflatten(flatten(x)), tune=%v", tune)
	}
}

func TestSingleShotUnrollRestoresWorld(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, nil, 8, true)
	w.SetPositions([]float64{1, 2})

	r := NewRollout(2, 8)
	require.NoError(t, s.Unroll(w, r))
	assert.Equal(t, dynamo.State{1, 2}, w.Positions())

	// The rollout starts from the shot's own start state, not the world's.
	fresh := physics.NewWorld(physics.NewCoupledPendulums(), integrators.NewSemiImplicitEuler(), 0.01)
	snap, err := dynamo.StepFrom(fresh, []float64{0.3, -0.1}, []float64{0.05, 0.2}, []float64{0.1, -0.2})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64(snap.PostStepPosition()), mat.Col(nil, 0, r.Poses), 1e-15)
}

func TestPendulumMatchesReferenceIntegrator(t *testing.T) {
	p := physics.NewPendulum()
	p.Damping = 0
	const dt = 0.01
	w := physics.NewWorld(p, integrators.NewSemiImplicitEuler(), dt)
	w.SetPositions([]float64{0.5})

	finalAngle := NewScalar("final_angle",
		func(r *Rollout) float64 {
			_, steps := r.Dims()
			return r.Poses.At(0, steps-1)
		}, nil)
	s := NewSingleShot(w, finalAngle, 10, false)

	r := NewRollout(1, 10)
	require.NoError(t, s.Unroll(w, r))

	q, v := 0.5, 0.0
	for step := 0; step < 10; step++ {
		a := -p.Mass * p.Gravity * p.Length * math.Sin(q) / (p.Mass * p.Length * p.Length)
		v += dt * a
		q += dt * v
		assert.InDelta(t, q, r.Poses.At(0, step), 1e-8, "pose after step %d", step)
		assert.InDelta(t, v, r.Vels.At(0, step), 1e-8, "velocity after step %d", step)
	}

	final, err := s.FinalState(w)
	require.NoError(t, err)
	assert.InDelta(t, q, final[0], 1e-8)
	assert.InDelta(t, v, final[1], 1e-8)

	loss, err := s.Loss(w)
	require.NoError(t, err)
	assert.InDelta(t, q, loss, 1e-8)
}

func TestInitialGuessWithinBounds(t *testing.T) {
	w := coupledWorld()
	w.SetForceLimits(0.15)
	limits := w.Limits()
	limits.PositionLower = dynamo.State{-0.2, -0.2}
	limits.PositionUpper = dynamo.State{0.2, 0.2}
	w.SetLimits(limits)

	multi, err := NewMultiShot(w, nil, 6, 2, true)
	require.NoError(t, err)

	for _, s := range []Shot{NewSingleShot(w, nil, 6, true), multi} {
		dim := s.FlatProblemDim()
		guess, lower, upper := make([]float64, dim), make([]float64, dim), make([]float64, dim)
		s.InitialGuess(w, guess)
		s.LowerBounds(w, lower)
		s.UpperBounds(w, upper)
		for i := range guess {
			assert.GreaterOrEqual(t, guess[i], lower[i], s.FlatDimName(i))
			assert.LessOrEqual(t, guess[i], upper[i], s.FlatDimName(i))
		}
	}
}

func TestSingleShotBoundsFromLimits(t *testing.T) {
	w := coupledWorld()
	w.SetForceLimits(2)
	s := NewSingleShot(w, nil, 3, true)

	upper := make([]float64, s.FlatProblemDim())
	s.UpperBounds(w, upper)
	assert.True(t, math.IsInf(upper[0], 1))
	assert.True(t, math.IsInf(upper[3], 1))
	for i := 4; i < len(upper); i++ {
		assert.Equal(t, 2.0, upper[i])
	}
}

func TestConstraintBounds(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, nil, 4, false)
	s.AddConstraint(FinalStateConstraint([]float64{0, 0}, []float64{0, 0}))
	s.AddConstraint(PositionWindow(2, 1, -0.5, 0.7))

	lower := make([]float64, s.ConstraintDim())
	upper := make([]float64, s.ConstraintDim())
	s.ConstraintLowerBounds(lower)
	s.ConstraintUpperBounds(upper)
	assert.Equal(t, []float64{0, 0, 0, 0, -0.5}, lower)
	assert.Equal(t, []float64{0, 0, 0, 0, 0.7}, upper)
}

func TestFlatDimName(t *testing.T) {
	w := coupledWorld()
	w.SetDofNames([]string{"left", "right"})
	s := NewSingleShot(w, nil, 3, true)

	assert.Equal(t, "pos[left]", s.FlatDimName(0))
	assert.Equal(t, "vel[right]", s.FlatDimName(3))
	assert.Equal(t, "force[right]@2", s.FlatDimName(9))

	m, err := NewMultiShot(w, nil, 4, 2, false)
	require.NoError(t, err)
	assert.Equal(t, "shot 0: force[left]@1", m.FlatDimName(2))
	assert.Equal(t, "shot 1: pos[left]", m.FlatDimName(4))
	assert.Equal(t, "shot 1: force[right]@0", m.FlatDimName(9))
}

func TestBackpropGradientWithoutLoss(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, nil, 3, true)
	grad := make([]float64, s.FlatProblemDim())
	for i := range grad {
		grad[i] = 7
	}
	require.NoError(t, s.BackpropGradient(w, grad))
	for _, g := range grad {
		assert.Zero(t, g)
	}
}

func TestRolloutFailurePropagates(t *testing.T) {
	w := wallWorld()
	s := NewSingleShot(w, FinalPositionError([]float64{0}), 15, false)
	s.AddConstraint(PositionWindow(14, 0, -10, 10))

	checks := map[string]func() error{
		"unroll":      func() error { return s.Unroll(w, NewRollout(1, 15)) },
		"constraints": func() error { return s.ComputeConstraints(w, make([]float64, 1)) },
		"jacobian":    func() error { return s.BackpropJacobian(w, mat.NewDense(1, 15, nil)) },
		"gradient":    func() error { return s.BackpropGradient(w, make([]float64, 15)) },
		"fd gradient": func() error { return FiniteDifferenceGradient(s, w, make([]float64, 15)) },
		"verify": func() error {
			_, err := Verify(s, w, DefaultFiniteDifference, 1e-6)
			return err
		},
	}
	for name, check := range checks {
		err := check()
		require.Error(t, err, name)

		var re *dynamo.RolloutError
		require.True(t, errors.As(err, &re), "%s: %v", name, err)
		assert.Equal(t, 11, re.Step, name)
		assert.ErrorIs(t, err, dynamo.ErrSingular, name)
	}
}

func TestContractViolationsPanic(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, nil, 4, true)
	s.AddConstraint(FinalStateConstraint([]float64{0, 0}, []float64{0, 0}))

	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { s.Flatten(make([]float64, 3)) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { s.Unflatten(make([]float64, 13)) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { _ = s.Unroll(w, NewRollout(2, 3)) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { _ = s.ComputeConstraints(w, make([]float64, 5)) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { _ = s.BackpropJacobian(w, mat.NewDense(4, 11, nil)) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { _ = s.BackpropGradient(w, make([]float64, 1)) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { s.JacobianSparsityStructure(make([]int, 1), make([]int, 1)) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { s.FlatDimName(12) })
	requirePanicsWith(t, dynamo.ErrDimensionMismatch, func() { _ = s.Unroll(chainWorld(3), NewRollout(2, 4)) })

	requirePanicsWith(t, dynamo.ErrInvalidConfig, func() { NewSingleShot(w, nil, 0, true) })
	requirePanicsWith(t, dynamo.ErrInvalidConfig, func() { _, _ = NewMultiShot(w, nil, 4, 0, true) })
	requirePanicsWith(t, dynamo.ErrInvalidConfig, func() { s.AddConstraint(nil) })
}

func TestSingleShotInitialGuessFollowsWorld(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, nil, 3, true)

	w.SetPositions([]float64{0.1, 0.2})
	w.SetVelocities([]float64{-0.3, 0.4})
	w.SetForces([]float64{0.05, -0.07})

	guess := make([]float64, s.FlatProblemDim())
	s.InitialGuess(w, guess)
	assert.Equal(t, []float64{
		0.1, 0.2, -0.3, 0.4,
		0.05, -0.07, 0.05, -0.07, 0.05, -0.07,
	}, guess)
	assert.Equal(t, dynamo.State{0.3, -0.1, 0.05, 0.2}, s.StartState(), "representation untouched")

	fixed := NewSingleShot(w, nil, 2, false)
	guess = make([]float64, fixed.FlatProblemDim())
	w.SetForces([]float64{5, 5})
	w.SetForceLimits(1)
	fixed.InitialGuess(w, guess)
	assert.Equal(t, []float64{1, 1, 1, 1}, guess)
}

func TestMultiShotInitialGuessIsKnotFeasible(t *testing.T) {
	w := coupledWorld()
	m, err := NewMultiShot(w, nil, 6, 2, true)
	require.NoError(t, err)
	w.SetPositions([]float64{0.9, 0.9})

	guess := make([]float64, m.FlatProblemDim())
	m.InitialGuess(w, guess)
	assert.Equal(t, []float64{0.3, -0.1}, guess[:2])

	m.Unflatten(guess)
	c := make([]float64, m.ConstraintDim())
	require.NoError(t, m.ComputeConstraints(w, c))
	for i, x := range c {
		assert.InDelta(t, 0, x, 1e-12, "knot residual %d", i)
	}
}

// taggedWorld is a World held by value; its slice field makes it
// incomparable.
type taggedWorld struct {
	*physics.World
	tags []string
}

func TestSingleShotAcceptsIncomparableWorlds(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, nil, 4, true)
	want, err := s.FinalState(w)
	require.NoError(t, err)

	var tagged dynamo.World = taggedWorld{World: coupledWorld(), tags: []string{"copy"}}
	for i := 0; i < 2; i++ {
		got, err := s.FinalState(tagged)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want, got, 1e-12)
	}

	again, err := s.FinalState(w)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, again, 1e-12)
}
