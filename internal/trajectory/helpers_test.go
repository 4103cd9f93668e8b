package trajectory

import (
	"math"
	"testing"

	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/integrators"
	"github.com/san-kum/dynshot/internal/physics"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func coupledWorld() *physics.World {
	w := physics.NewWorld(physics.NewCoupledPendulums(), integrators.NewSemiImplicitEuler(), 0.01)
	w.SetPositions([]float64{0.3, -0.1})
	w.SetVelocities([]float64{0.05, 0.2})
	w.SetForces([]float64{0.1, -0.2})
	return w
}

func chainWorld(n int) *physics.World {
	w := physics.NewWorld(physics.NewMassChain(n), integrators.NewSemiImplicitEuler(), 0.01)
	q := make([]float64, n)
	for i := range q {
		q[i] = 0.05 * float64(i+1)
	}
	w.SetPositions(q)
	return w
}

// wall is a free particle whose dynamics fail past x = 1.05.
type wall struct{}

func (wall) NumDofs() int           { return 1 }
func (wall) Clone() dynamo.Dynamics { return wall{} }

func (wall) Accel(q, _, _, qdd []float64) error {
	if q[0] > 1.05 {
		return dynamo.ErrSingular
	}
	qdd[0] = 0
	return nil
}

func wallWorld() *physics.World {
	w := physics.NewWorld(wall{}, integrators.NewSemiImplicitEuler(), 0.1)
	w.SetVelocities([]float64{1})
	return w
}

func requirePanicsWith(t *testing.T, target error, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		err, ok := r.(error)
		require.True(t, ok, "expected an error panic, got %v", r)
		require.ErrorIs(t, err, target)
	}()
	fn()
}

// requireClose checks |a-b| <= tol * max(1, |a|, |b|) entrywise.
func requireClose(t *testing.T, want, got []float64, tol float64, msgAndArgs ...any) {
	t.Helper()
	require.Len(t, got, len(want), msgAndArgs...)
	for i := range want {
		scale := math.Max(1, math.Max(math.Abs(want[i]), math.Abs(got[i])))
		require.LessOrEqual(t, math.Abs(want[i]-got[i]), tol*scale,
			"entry %d: want %g got %g", i, want[i], got[i])
	}
}

func denseData(m *mat.Dense) []float64 {
	return mat.DenseCopyOf(m).RawMatrix().Data
}
