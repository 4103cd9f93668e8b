package trajectory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRollout() *Rollout {
	r := NewRollout(2, 3)
	for i := 0; i < 2; i++ {
		for t := 0; t < 3; t++ {
			r.Poses.Set(i, t, float64(i+t)*0.1)
			r.Vels.Set(i, t, float64(i-t)*0.2)
			r.Forces.Set(i, t, float64(i*t)+0.5)
		}
	}
	return r
}

func TestOutputLen(t *testing.T) {
	assert.Equal(t, 0, OutputLen(nil))
	assert.Equal(t, 1, OutputLen(ControlEffort(1)))
	assert.Equal(t, 4, OutputLen(FinalStateConstraint([]float64{0, 0}, []float64{0, 0})))
}

func TestValueOfNilLoss(t *testing.T) {
	assert.Zero(t, Value(nil, sampleRollout()))
}

func TestNumericGradientMatchesAnalytic(t *testing.T) {
	r := sampleRollout()
	analytic := ControlEffort(0.5)
	numeric := NewScalar("effort", func(r *Rollout) float64 { return Value(analytic, r) }, nil)

	want := NewRollout(2, 3)
	got := NewRollout(2, 3)
	analytic.Gradient(r, 0, want)
	numeric.Gradient(r, 0, got)

	assert.InDeltaSlice(t, denseData(want.Forces), denseData(got.Forces), 1e-6)
	assert.InDeltaSlice(t, denseData(want.Poses), denseData(got.Poses), 1e-6)
}

func TestVectorNumericGradientRow(t *testing.T) {
	r := sampleRollout()
	c := FinalStateConstraint([]float64{1, 2}, []float64{3, 4})
	numeric := NewVector("final", 4, c.Evaluate, nil)

	for row := 0; row < 4; row++ {
		want := NewRollout(2, 3)
		got := NewRollout(2, 3)
		c.Gradient(r, row, want)
		numeric.Gradient(r, row, got)
		assert.InDeltaSlice(t, denseData(want.Poses), denseData(got.Poses), 1e-6, "row %d", row)
		assert.InDeltaSlice(t, denseData(want.Vels), denseData(got.Vels), 1e-6, "row %d", row)
	}
}

func TestGradientAccumulates(t *testing.T) {
	r := sampleRollout()
	g := NewRollout(2, 3)
	l := FinalPositionError([]float64{0, 0})
	l.Gradient(r, 0, g)
	l.Gradient(r, 0, g)
	// 2 * 2 * (q - 0) at the last column
	assert.InDelta(t, 4*r.Poses.At(1, 2), g.Poses.At(1, 2), 1e-15)
}

func TestSumRejectsVectorTerms(t *testing.T) {
	require.Panics(t, func() {
		Sum("bad", ControlEffort(1), FinalStateConstraint([]float64{0}, []float64{0}))
	})
}

func TestRolloutSliceSharesStorage(t *testing.T) {
	r := NewRollout(2, 5)
	view := r.Slice(2, 4)
	view.Poses.Set(1, 0, 42)
	assert.Equal(t, 42.0, r.Poses.At(1, 2))

	dofs, steps := view.Dims()
	assert.Equal(t, 2, dofs)
	assert.Equal(t, 2, steps)
}
