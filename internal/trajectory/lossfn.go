package trajectory

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// LossFn is a differentiable function of a whole rollout. Dim 0 means a
// scalar; Evaluate then writes a single value.
type LossFn interface {
	Name() string
	Dim() int
	Evaluate(r *Rollout, out []float64)
	// Gradient accumulates d out[row] / d rollout into grad. grad is zeroed
	// by the caller.
	Gradient(r *Rollout, row int, grad *Rollout)
}

// Bounded is implemented by constraints with non-zero residual bounds.
// Constraints without it are equalities.
type Bounded interface {
	Bounds(lower, upper []float64)
}

// OutputLen is the number of values l writes: Dim, or 1 for scalars.
func OutputLen(l LossFn) int {
	if l == nil {
		return 0
	}
	if d := l.Dim(); d > 0 {
		return d
	}
	return 1
}

// Value evaluates a scalar loss. A nil loss is zero.
func Value(l LossFn, r *Rollout) float64 {
	if l == nil {
		return 0
	}
	out := make([]float64, OutputLen(l))
	l.Evaluate(r, out)
	return out[0]
}

// lossEps is the perturbation for Func gradients built without an
// analytic derivative.
const lossEps = 1e-6

// Func is a LossFn assembled from plain functions.
type Func struct {
	name string
	dim  int
	eval func(r *Rollout, out []float64)
	grad func(r *Rollout, row int, grad *Rollout)

	lower, upper []float64
}

var (
	_ LossFn  = (*Func)(nil)
	_ Bounded = (*Func)(nil)
)

// NewScalar builds a scalar loss. grad may be nil, in which case the
// gradient is taken by central differences over every rollout entry.
func NewScalar(name string, eval func(r *Rollout) float64, grad func(r *Rollout, g *Rollout)) *Func {
	f := &Func{
		name: name,
		eval: func(r *Rollout, out []float64) { out[0] = eval(r) },
	}
	if grad != nil {
		f.grad = func(r *Rollout, _ int, g *Rollout) { grad(r, g) }
	}
	return f
}

// NewVector builds a loss with dim outputs. grad may be nil.
func NewVector(name string, dim int, eval func(r *Rollout, out []float64), grad func(r *Rollout, row int, g *Rollout)) *Func {
	if dim <= 0 {
		panic(fmt.Errorf("%w: vector loss %q needs positive dim, got %d", dynamo.ErrInvalidConfig, name, dim))
	}
	return &Func{name: name, dim: dim, eval: eval, grad: grad}
}

// WithBounds sets the residual bounds used when f is a constraint.
func (f *Func) WithBounds(lower, upper []float64) *Func {
	n := OutputLen(f)
	mustHaveLen(f.name+" lower bounds", len(lower), n)
	mustHaveLen(f.name+" upper bounds", len(upper), n)
	f.lower = append([]float64(nil), lower...)
	f.upper = append([]float64(nil), upper...)
	return f
}

func (f *Func) Name() string { return f.name }
func (f *Func) Dim() int     { return f.dim }

func (f *Func) Evaluate(r *Rollout, out []float64) {
	mustHaveLen(f.name+" output", len(out), OutputLen(f))
	f.eval(r, out)
}

func (f *Func) Bounds(lower, upper []float64) {
	if f.lower == nil {
		for i := range lower {
			lower[i] = 0
			upper[i] = 0
		}
		return
	}
	copy(lower, f.lower)
	copy(upper, f.upper)
}

func (f *Func) Gradient(r *Rollout, row int, grad *Rollout) {
	if f.grad != nil {
		f.grad(r, row, grad)
		return
	}
	f.numericGradient(r, row, grad)
}

func (f *Func) numericGradient(r *Rollout, row int, grad *Rollout) {
	work := r.Clone()
	out := make([]float64, OutputLen(f))
	dofs, steps := r.Dims()
	xs := [3]*mat.Dense{work.Poses, work.Vels, work.Forces}
	gs := [3]*mat.Dense{grad.Poses, grad.Vels, grad.Forces}
	for k, x := range xs {
		for i := 0; i < dofs; i++ {
			for t := 0; t < steps; t++ {
				orig := x.At(i, t)
				x.Set(i, t, orig+lossEps)
				f.eval(work, out)
				plus := out[row]
				x.Set(i, t, orig-lossEps)
				f.eval(work, out)
				minus := out[row]
				x.Set(i, t, orig)
				gs[k].Set(i, t, gs[k].At(i, t)+(plus-minus)/(2*lossEps))
			}
		}
	}
}
