package viz

import (
	"errors"
	"testing"
	"time"

	"github.com/san-kum/dynshot/internal/batch"
	"github.com/san-kum/dynshot/internal/integrators"
	"github.com/san-kum/dynshot/internal/metrics"
	"github.com/san-kum/dynshot/internal/physics"
	"github.com/san-kum/dynshot/internal/trajectory"
	"github.com/stretchr/testify/assert"
)

func TestRenderVerification(t *testing.T) {
	v := &trajectory.Verification{FlatDim: 12, ConstraintDim: 4, Steps: 5, NonZeros: 20, Tolerance: 1e-5, Passed: true, SparseMatchesDense: true}
	out := RenderVerification("pendulum", v)
	assert.Contains(t, out, "pendulum")
	assert.Contains(t, out, "PASS")
	assert.NotContains(t, out, "FAIL")

	v.JacobianMaxRel = 1
	v.Passed = false
	out = RenderVerification("pendulum", v)
	assert.Contains(t, out, "FAIL")
}

func TestRenderMetrics(t *testing.T) {
	out := RenderMetrics([]metrics.Result{
		{Name: "energy", Value: 1.5, Samples: 3},
		{Name: "energy_drift", Samples: 0},
	})
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "n/a")
}

func TestRenderSuite(t *testing.T) {
	out := RenderSuite([]batch.Result{
		{Name: "ok", Verification: &trajectory.Verification{Passed: true}, Duration: time.Millisecond},
		{Name: "broken", Err: errors.New("boom")},
	})
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "1/2 passed")
}

func TestRenderSparsity(t *testing.T) {
	w := physics.NewWorld(physics.NewCoupledPendulums(), integrators.NewSemiImplicitEuler(), 0.01)
	s := trajectory.NewSingleShot(w, nil, 5, false)
	assert.Equal(t, "0 x 10, 0 non-zeros\n", RenderSparsity(s, 40, 10))

	s.AddConstraint(trajectory.FinalStateConstraint([]float64{0, 0}, []float64{0, 0}))
	out := RenderSparsity(s, 40, 10)
	assert.Contains(t, out, "4 x 10")
	assert.Contains(t, out, "dense")
}
