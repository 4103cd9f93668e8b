package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/integrators"
)

func newTestWorld() *World {
	w := NewWorld(NewDoublePendulum(), integrators.NewSemiImplicitEuler(), 0.01)
	w.SetPositions([]float64{0.5, -0.2})
	w.SetVelocities([]float64{0.1, 0.3})
	w.SetForces([]float64{0.2, 0})
	return w
}

func TestWorldStep(t *testing.T) {
	w := newTestWorld()
	q0, v0 := w.Positions(), w.Velocities()

	snap, err := w.Step()
	if err != nil {
		t.Fatal(err)
	}

	for i := range q0 {
		if snap.PreStepPosition()[i] != q0[i] || snap.PreStepVelocity()[i] != v0[i] {
			t.Errorf("pre-step state mismatch at dof %d", i)
		}
		if snap.PostStepPosition()[i] != w.Positions()[i] {
			t.Errorf("post-step position mismatch at dof %d", i)
		}
	}

	// Later mutation of the world must not leak into the snapshot
	w.SetPositions([]float64{9, 9})
	if snap.PostStepPosition()[0] == 9 {
		t.Error("snapshot shares storage with world")
	}
}

func TestWorldStepMatchesStepFrom(t *testing.T) {
	a := newTestWorld()
	b := NewWorld(NewDoublePendulum(), integrators.NewSemiImplicitEuler(), 0.01)

	sa, err := a.Step()
	if err != nil {
		t.Fatal(err)
	}
	sb, err := dynamo.StepFrom(b, sa.PreStepPosition(), sa.PreStepVelocity(), sa.PreStepForce())
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range sa.PostStepState() {
		if x != sb.PostStepState()[i] {
			t.Errorf("state %d: %f vs %f", i, x, sb.PostStepState()[i])
		}
	}
}

func TestWorldStepSingular(t *testing.T) {
	dp := NewDoublePendulum()
	dp.M1 = 0
	w := NewWorld(dp, integrators.NewSemiImplicitEuler(), 0.01)
	before := w.Positions()

	if _, err := w.Step(); !errors.Is(err, dynamo.ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}
	if w.Positions()[0] != before[0] {
		t.Error("failed step modified the world")
	}
}

func TestWorldCloneIsIndependent(t *testing.T) {
	w := newTestWorld()
	c := w.Clone()

	if _, err := c.Step(); err != nil {
		t.Fatal(err)
	}
	if c.Positions()[0] == w.Positions()[0] {
		t.Error("clone step should not move the original")
	}

	w.Dynamics().(*DoublePendulum).M2 = 5
	if c.(*World).Dynamics().(*DoublePendulum).M2 == 5 {
		t.Error("clone shares dynamics with original")
	}
}

func TestWorldCopy(t *testing.T) {
	src := newTestWorld()
	src.SetForceLimits(3)
	src.SetDofNames([]string{"shoulder", "elbow"})

	dst := NewWorld(NewPendulum(), integrators.NewRK4(), 0.05)
	dst.Copy(src)

	if dst.NumDofs() != 2 || dst.TimeStep() != 0.01 {
		t.Fatalf("copy did not take dims: dofs=%d dt=%f", dst.NumDofs(), dst.TimeStep())
	}
	if dst.DofName(1) != "elbow" {
		t.Errorf("expected dof name elbow, got %s", dst.DofName(1))
	}
	if dst.Limits().ForceUpper[0] != 3 {
		t.Errorf("expected force limit 3, got %f", dst.Limits().ForceUpper[0])
	}

	a, err := src.Clone().Step()
	if err != nil {
		t.Fatal(err)
	}
	b, err := dst.Step()
	if err != nil {
		t.Fatal(err)
	}
	for i, x := range a.PostStepState() {
		if math.Abs(x-b.PostStepState()[i]) > 0 {
			t.Errorf("copied world diverges at %d: %f vs %f", i, x, b.PostStepState()[i])
		}
	}
}

func TestWorldSetPanicsOnLength(t *testing.T) {
	w := newTestWorld()
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, dynamo.ErrDimensionMismatch) {
			t.Errorf("expected dimension panic, got %v", r)
		}
	}()
	w.SetPositions([]float64{1})
}

func TestWorldDefaultDofName(t *testing.T) {
	w := NewWorld(NewMassChain(3), integrators.NewEuler(), 0.01)
	if got := w.DofName(2); got != "dof2" {
		t.Errorf("expected dof2, got %s", got)
	}
}

func TestWorldEnergyConservedUndamped(t *testing.T) {
	p := NewPendulum()
	p.Damping = 0
	w := NewWorld(p, integrators.NewRK4(), 0.001)
	w.SetPositions([]float64{0.5})

	e0, ok := w.Energy()
	if !ok {
		t.Fatal("pendulum should report energy")
	}
	for i := 0; i < 1000; i++ {
		if _, err := w.Step(); err != nil {
			t.Fatal(err)
		}
	}
	e1, _ := w.Energy()
	if math.Abs(e1-e0)/e0 > 1e-6 {
		t.Errorf("energy drift too large: %f -> %f", e0, e1)
	}
}
