// Package metrics summarises a rollout with scalar diagnostics.
package metrics

import (
	"github.com/san-kum/dynshot/internal/dynamo"
	"github.com/san-kum/dynshot/internal/trajectory"
)

// Metric accumulates one number over the states of a rollout. f is nil for
// the start state, which no force has acted on yet.
type Metric interface {
	Name() string
	Observe(q, v, f dynamo.State, t float64)
	Value() float64
	Samples() int
	Reset()
}

type Result struct {
	Name    string
	Value   float64
	Samples int
}

// Collect resets ms and feeds them the start state (q0, v0) followed by
// every column of r. Column t is observed at time (t+1)*dt with the force
// applied during step t.
func Collect(q0, v0 dynamo.State, r *trajectory.Rollout, dt float64, ms ...Metric) []Result {
	for _, m := range ms {
		m.Reset()
		m.Observe(q0, v0, nil, 0)
	}

	dofs, steps := r.Dims()
	q := make(dynamo.State, dofs)
	v := make(dynamo.State, dofs)
	f := make(dynamo.State, dofs)
	for t := 0; t < steps; t++ {
		for i := 0; i < dofs; i++ {
			q[i] = r.Poses.At(i, t)
			v[i] = r.Vels.At(i, t)
			f[i] = r.Forces.At(i, t)
		}
		for _, m := range ms {
			m.Observe(q, v, f, float64(t+1)*dt)
		}
	}

	out := make([]Result, len(ms))
	for i, m := range ms {
		out[i] = Result{Name: m.Name(), Value: m.Value(), Samples: m.Samples()}
	}
	return out
}
