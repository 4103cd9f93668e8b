package dynamo_test

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// linearSnapshot records a step of the linear map x' = A x + B f.
func linearSnapshot(a, b *mat.Dense) *dynamo.Snapshot {
	n := 2
	q, v, f := make(dynamo.State, n), make(dynamo.State, n), make(dynamo.State, n)
	return dynamo.NewSnapshot(q, v, f, make(dynamo.State, n), make(dynamo.State, n), func(j *dynamo.StepJacobians) error {
		j.State.Copy(a)
		j.Force.Copy(b)
		return nil
	})
}

func TestSnapshotBackprop(t *testing.T) {
	a := mat.NewDense(4, 4, []float64{
		1, 2, 0, 0,
		0, 1, 3, 0,
		0, 0, 1, 4,
		5, 0, 0, 1,
	})
	b := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		2, 0,
		0, 3,
	})
	snap := linearSnapshot(a, b)

	gNext := []float64{1, -1, 0.5, 2}
	gPos, gVel, gForce := make([]float64, 2), make([]float64, 2), make([]float64, 2)
	if err := snap.Backprop(gNext[:2], gNext[2:], gPos, gVel, gForce); err != nil {
		t.Fatal(err)
	}

	var wantState, wantForce mat.VecDense
	wantState.MulVec(a.T(), mat.NewVecDense(4, gNext))
	wantForce.MulVec(b.T(), mat.NewVecDense(4, gNext))

	for i := 0; i < 2; i++ {
		if math.Abs(gPos[i]-wantState.AtVec(i)) > 1e-12 {
			t.Errorf("gradPos[%d] = %f, want %f", i, gPos[i], wantState.AtVec(i))
		}
		if math.Abs(gVel[i]-wantState.AtVec(2+i)) > 1e-12 {
			t.Errorf("gradVel[%d] = %f, want %f", i, gVel[i], wantState.AtVec(2+i))
		}
		if math.Abs(gForce[i]-wantForce.AtVec(i)) > 1e-12 {
			t.Errorf("gradForce[%d] = %f, want %f", i, gForce[i], wantForce.AtVec(i))
		}
	}
}

func TestSnapshotJacobiansAreCached(t *testing.T) {
	calls := 0
	n := 1
	snap := dynamo.NewSnapshot(make(dynamo.State, n), make(dynamo.State, n), make(dynamo.State, n),
		make(dynamo.State, n), make(dynamo.State, n), func(*dynamo.StepJacobians) error {
			calls++
			return nil
		})
	for i := 0; i < 3; i++ {
		if _, err := snap.Jacobians(); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("expected one linearization, got %d", calls)
	}
}

func TestSnapshotLinearizeError(t *testing.T) {
	n := 1
	snap := dynamo.NewSnapshot(make(dynamo.State, n), make(dynamo.State, n), make(dynamo.State, n),
		make(dynamo.State, n), make(dynamo.State, n), func(*dynamo.StepJacobians) error {
			return dynamo.ErrSingular
		})
	g := make([]float64, 1)
	err := snap.Backprop(g, g, make([]float64, 1), make([]float64, 1), make([]float64, 1))
	if !errors.Is(err, dynamo.ErrSingular) {
		t.Errorf("expected ErrSingular, got %v", err)
	}
}

func TestSnapshotBackpropPanicsOnLength(t *testing.T) {
	snap := linearSnapshot(mat.NewDense(4, 4, nil), mat.NewDense(4, 2, nil))
	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.Is(err, dynamo.ErrDimensionMismatch) {
			t.Errorf("expected dimension panic, got %v", err)
		}
	}()
	g := make([]float64, 2)
	_ = snap.Backprop(g, g, g[:1], make([]float64, 2), make([]float64, 2))
}

func TestStepJacobianBlocks(t *testing.T) {
	j := dynamo.NewStepJacobians(1)
	j.State.Copy(mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	j.Force.Copy(mat.NewDense(2, 1, []float64{5, 6}))

	tests := []struct {
		name string
		m    mat.Matrix
		want float64
	}{
		{"PosPos", j.PosPos(), 1},
		{"VelPos", j.VelPos(), 2},
		{"PosVel", j.PosVel(), 3},
		{"VelVel", j.VelVel(), 4},
		{"ForcePos", j.ForcePos(), 5},
		{"ForceVel", j.ForceVel(), 6},
	}
	for _, tt := range tests {
		if got := tt.m.At(0, 0); got != tt.want {
			t.Errorf("%s = %f, want %f", tt.name, got, tt.want)
		}
	}
}
