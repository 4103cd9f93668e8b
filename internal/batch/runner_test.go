package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/integrators"
	"github.com/san-kum/dynshot/internal/physics"
	"github.com/san-kum/dynshot/internal/trajectory"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func pendulumJob(name string, theta float64) Job {
	w := physics.NewWorld(physics.NewPendulum(), integrators.NewSemiImplicitEuler(), 0.01)
	w.SetPositions([]float64{theta})
	s := trajectory.NewSingleShot(w, trajectory.FinalPositionError([]float64{0}), 8, true)
	s.AddConstraint(trajectory.FinalStateConstraint([]float64{0}, []float64{0}))
	return Job{
		Name:      name,
		World:     w,
		Shot:      s,
		FD:        trajectory.DefaultFiniteDifference,
		Tolerance: 1e-5,
	}
}

func singularJob(name string) Job {
	p := physics.NewPendulum()
	p.Mass = 0
	w := physics.NewWorld(p, integrators.NewEuler(), 0.01)
	s := trajectory.NewSingleShot(w, trajectory.FinalPositionError([]float64{0}), 4, false)
	return Job{Name: name, World: w, Shot: s, Tolerance: 1e-5}
}

func TestRunVerifiesEveryJob(t *testing.T) {
	jobs := make([]Job, 6)
	for i := range jobs {
		jobs[i] = pendulumJob(fmt.Sprintf("p%d", i), 0.1*float64(i+1))
	}

	r := NewRunner(WithWorkers(3))
	results, err := r.Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("got %d results, want %d", len(results), len(jobs))
	}
	for i, res := range results {
		if res.Name != jobs[i].Name {
			t.Errorf("result %d is %q, want %q", i, res.Name, jobs[i].Name)
		}
		if !res.Passed() {
			t.Errorf("%s did not pass: err=%v", res.Name, res.Err)
		}
	}
}

func TestRunLeavesTemplatesUntouched(t *testing.T) {
	job := pendulumJob("p", 0.3)
	r := NewRunner()
	if _, err := r.Run(context.Background(), []Job{job}); err != nil {
		t.Fatal(err)
	}
	if got := job.World.Positions(); got[0] != 0.3 {
		t.Errorf("template position changed to %v", got)
	}
}

func TestRunReusesWorkerWorlds(t *testing.T) {
	r := NewRunner()
	jobs := []Job{pendulumJob("a", 0.1), pendulumJob("b", 0.2)}
	if _, err := r.Run(context.Background(), jobs); err != nil {
		t.Fatal(err)
	}
	first, _ := r.worlds.Get("a")

	jobs[0].World.SetPositions([]float64{0.5})
	if _, err := r.Run(context.Background(), jobs[:1]); err != nil {
		t.Fatal(err)
	}
	again, ok := r.worlds.Get("a")
	if !ok || again != first {
		t.Error("worker world for a was reallocated")
	}
	if got := again.Positions(); got[0] != 0.5 {
		t.Errorf("worker world not synced, position %v", got)
	}
	if r.worlds.Has("b") {
		t.Error("worker world for a removed job was kept")
	}
}

func TestRunRecordsJobErrors(t *testing.T) {
	jobs := []Job{pendulumJob("ok", 0.2), singularJob("bad")}
	results, err := NewRunner().Run(context.Background(), jobs)
	if err != nil {
		t.Fatalf("a failing job must not fail the run: %v", err)
	}
	if !results[0].Passed() {
		t.Errorf("ok job failed: %v", results[0].Err)
	}
	if !errors.Is(results[1].Err, dynamo.ErrSingular) {
		t.Errorf("expected ErrSingular, got %v", results[1].Err)
	}
	var re *dynamo.RolloutError
	if !errors.As(results[1].Err, &re) || re.Step != 0 {
		t.Errorf("expected rollout error at step 0, got %v", results[1].Err)
	}
	if results[1].Passed() {
		t.Error("failed job reported as passed")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{pendulumJob("a", 0.1), pendulumJob("b", 0.2)}
	results, err := NewRunner().Run(ctx, jobs)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, res := range results {
		if res.Verification != nil {
			t.Errorf("%s ran after cancellation", res.Name)
		}
		if !errors.Is(res.Err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", res.Name, res.Err)
		}
	}
}

func TestRunRejectsDuplicateNames(t *testing.T) {
	jobs := []Job{pendulumJob("a", 0.1), pendulumJob("a", 0.2)}
	_, err := NewRunner().Run(context.Background(), jobs)
	if !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
