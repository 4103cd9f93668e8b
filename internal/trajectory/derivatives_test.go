package trajectory

import (
	"testing"

	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/integrators"
	"github.com/san-kum/dynshot/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

type shotCase struct {
	name  string
	build func(t *testing.T, w dynamo.World) Shot
}

func shotCases() []shotCase {
	return []shotCase{
		{"single tuned", func(_ *testing.T, w dynamo.World) Shot { return NewSingleShot(w, nil, 5, true) }},
		{"single fixed start", func(_ *testing.T, w dynamo.World) Shot { return NewSingleShot(w, nil, 5, false) }},
		{"multi", func(t *testing.T, w dynamo.World) Shot {
			m, err := NewMultiShot(w, nil, 5, 2, true)
			require.NoError(t, err)
			return m
		}},
	}
}

func worldCases() map[string]func() dynamo.World {
	return map[string]func() dynamo.World{
		"coupled": func() dynamo.World { return coupledWorld() },
		"double pendulum rk4": func() dynamo.World {
			w := physics.NewWorld(physics.NewDoublePendulum(), integrators.NewRK4(), 0.01)
			w.SetPositions([]float64{0.4, -0.3})
			w.SetVelocities([]float64{0.1, 0.2})
			w.SetForces([]float64{0.5, -0.25})
			return w
		},
	}
}

func TestBackpropJacobianMatchesFiniteDifference(t *testing.T) {
	for wname, mk := range worldCases() {
		for _, tc := range shotCases() {
			t.Run(wname+"/"+tc.name, func(t *testing.T) {
				w := mk()
				s := tc.build(t, w)
				s.AddConstraint(FinalStateConstraint([]float64{1, -1}, []float64{0, 0}))
				s.AddConstraint(PositionWindow(2, 1, -1, 1))

				m, n := s.ConstraintDim(), s.FlatProblemDim()
				analytic := mat.NewDense(m, n, nil)
				numeric := mat.NewDense(m, n, nil)
				require.NoError(t, s.BackpropJacobian(w, analytic))
				require.NoError(t, FiniteDifferenceJacobian(s, w, numeric))
				requireClose(t, denseData(numeric), denseData(analytic), 1e-6)
			})
		}
	}
}

func TestBackpropGradientMatchesFiniteDifference(t *testing.T) {
	loss := Sum("objective",
		FinalPositionError([]float64{1, -0.5}),
		ControlEffort(0.1),
		FinalStateError([]float64{0, 0}, []float64{0.3, 0}),
	)
	for wname, mk := range worldCases() {
		for _, tc := range shotCases() {
			t.Run(wname+"/"+tc.name, func(t *testing.T) {
				w := mk()
				s := tc.build(t, w)
				s.SetLoss(loss)

				analytic := make([]float64, s.FlatProblemDim())
				numeric := make([]float64, s.FlatProblemDim())
				require.NoError(t, s.BackpropGradient(w, analytic))
				require.NoError(t, FiniteDifferenceGradient(s, w, numeric))
				requireClose(t, numeric, analytic, 1e-6)
			})
		}
	}
}

func TestFiniteDifferenceRestoresRepresentation(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, ControlEffort(1), 4, true)
	s.AddConstraint(FinalStateConstraint([]float64{0, 0}, []float64{0, 0}))

	before := make([]float64, s.FlatProblemDim())
	s.Flatten(before)

	fd := FiniteDifference{Eps: 1e-5, Method: Forward}
	require.NoError(t, fd.Jacobian(s, w, mat.NewDense(4, s.FlatProblemDim(), nil)))
	require.NoError(t, fd.Gradient(s, w, make([]float64, s.FlatProblemDim())))

	after := make([]float64, s.FlatProblemDim())
	s.Flatten(after)
	assert.Equal(t, before, after)
}

func TestForwardDifference(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, FinalPositionError([]float64{0.5, 0.5}), 5, true)

	analytic := make([]float64, s.FlatProblemDim())
	forward := make([]float64, s.FlatProblemDim())
	require.NoError(t, s.BackpropGradient(w, analytic))
	require.NoError(t, FiniteDifference{Eps: 1e-7, Method: Forward}.Gradient(s, w, forward))
	requireClose(t, analytic, forward, 1e-4)
}

func TestStartStateJacobians(t *testing.T) {
	for wname, mk := range worldCases() {
		for _, tc := range shotCases() {
			t.Run(wname+"/"+tc.name, func(t *testing.T) {
				w := mk()
				s := tc.build(t, w)

				analytic, err := BackpropStartStateJacobians(s, w)
				require.NoError(t, err)
				numeric, err := FiniteDifferenceStartStateJacobians(s, w, 1e-6)
				require.NoError(t, err)

				require.Equal(t, s.NumSteps(), analytic.Len())
				require.Equal(t, s.NumSteps(), numeric.Len())
				for step := 0; step < analytic.Len(); step++ {
					a := mat.DenseCopyOf(analytic.At(step))
					b := mat.DenseCopyOf(numeric.At(step))
					requireClose(t, denseData(b), denseData(a), 1e-6, "step %d", step)
				}
			})
		}
	}
}

func TestStartStateJacobianBlocks(t *testing.T) {
	w := coupledWorld()
	s := NewSingleShot(w, nil, 3, false)

	j, err := BackpropStartStateJacobians(s, w)
	require.NoError(t, err)

	snap, err := dynamo.StepFrom(w.Clone(), []float64{0.3, -0.1}, []float64{0.05, 0.2}, []float64{0.1, -0.2})
	require.NoError(t, err)
	step, err := snap.Jacobians()
	require.NoError(t, err)

	assert.True(t, mat.Equal(step.State, j.At(0)))
	assert.True(t, mat.Equal(step.PosPos(), j.PosPos(0)))
	assert.True(t, mat.Equal(step.PosVel(), j.PosVel(0)))
	assert.True(t, mat.Equal(step.VelPos(), j.VelPos(0)))
	assert.True(t, mat.Equal(step.VelVel(), j.VelVel(0)))
}

func TestBackpropGradientWrtDoesNotAllocate(t *testing.T) {
	w := coupledWorld()
	multi, err := NewMultiShot(w, nil, 20, 5, true)
	require.NoError(t, err)

	for _, s := range []Shot{NewSingleShot(w, nil, 20, true), multi} {
		g := NewRollout(2, 20)
		g.Poses.Set(0, 19, 1)
		g.Vels.Set(1, 7, -0.5)
		g.Forces.Set(0, 3, 0.25)
		grad := make([]float64, s.FlatProblemDim())
		require.NoError(t, s.BackpropGradientWrt(w, g.Poses, g.Vels, g.Forces, grad))

		allocs := testing.AllocsPerRun(50, func() {
			if err := s.BackpropGradientWrt(w, g.Poses, g.Vels, g.Forces, grad); err != nil {
				panic(err)
			}
		})
		assert.Zero(t, allocs, "%T", s)
	}
}
