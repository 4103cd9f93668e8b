package trajectory

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FinalPositionError is the squared distance between the final positions
// and target.
func FinalPositionError(target []float64) *Func {
	target = append([]float64(nil), target...)
	return NewScalar("final_position_error",
		func(r *Rollout) float64 {
			_, steps := r.Dims()
			q := mat.Col(nil, steps-1, r.Poses)
			mustHaveLen("final position target", len(target), len(q))
			d := floats.Distance(q, target, 2)
			return d * d
		},
		func(r *Rollout, g *Rollout) {
			dofs, steps := r.Dims()
			for i := 0; i < dofs; i++ {
				g.Poses.Set(i, steps-1, g.Poses.At(i, steps-1)+2*(r.Poses.At(i, steps-1)-target[i]))
			}
		})
}

// FinalStateError is the squared distance between the final (q, v) and
// the targets.
func FinalStateError(targetPos, targetVel []float64) *Func {
	targetPos = append([]float64(nil), targetPos...)
	targetVel = append([]float64(nil), targetVel...)
	return NewScalar("final_state_error",
		func(r *Rollout) float64 {
			_, steps := r.Dims()
			dq := floats.Distance(mat.Col(nil, steps-1, r.Poses), targetPos, 2)
			dv := floats.Distance(mat.Col(nil, steps-1, r.Vels), targetVel, 2)
			return dq*dq + dv*dv
		},
		func(r *Rollout, g *Rollout) {
			dofs, steps := r.Dims()
			t := steps - 1
			for i := 0; i < dofs; i++ {
				g.Poses.Set(i, t, g.Poses.At(i, t)+2*(r.Poses.At(i, t)-targetPos[i]))
				g.Vels.Set(i, t, g.Vels.At(i, t)+2*(r.Vels.At(i, t)-targetVel[i]))
			}
		})
}

// ControlEffort is weight times the sum of squared forces.
func ControlEffort(weight float64) *Func {
	return NewScalar("control_effort",
		func(r *Rollout) float64 {
			raw := r.Forces.RawMatrix()
			dofs, steps := r.Dims()
			sum := 0.0
			for i := 0; i < dofs; i++ {
				row := raw.Data[i*raw.Stride : i*raw.Stride+steps]
				sum += floats.Dot(row, row)
			}
			return weight * sum
		},
		func(r *Rollout, g *Rollout) {
			dofs, steps := r.Dims()
			for i := 0; i < dofs; i++ {
				for t := 0; t < steps; t++ {
					g.Forces.Set(i, t, g.Forces.At(i, t)+2*weight*r.Forces.At(i, t))
				}
			}
		})
}

// Sum adds scalar losses.
func Sum(name string, terms ...LossFn) *Func {
	for _, l := range terms {
		if l.Dim() != 0 {
			panic(fmt.Errorf("%w: sum %q: term %q is not scalar", dynamo.ErrInvalidConfig, name, l.Name()))
		}
	}
	return NewScalar(name,
		func(r *Rollout) float64 {
			total := 0.0
			for _, l := range terms {
				total += Value(l, r)
			}
			return total
		},
		func(r *Rollout, g *Rollout) {
			for _, l := range terms {
				l.Gradient(r, 0, g)
			}
		})
}

// FinalStateConstraint holds the final (q, v) at the targets. Its residual
// is [q_T - targetPos, v_T - targetVel].
func FinalStateConstraint(targetPos, targetVel []float64) *Func {
	n := len(targetPos)
	mustHaveLen("final velocity target", len(targetVel), n)
	targetPos = append([]float64(nil), targetPos...)
	targetVel = append([]float64(nil), targetVel...)
	return NewVector("final_state", 2*n,
		func(r *Rollout, out []float64) {
			_, steps := r.Dims()
			for i := 0; i < n; i++ {
				out[i] = r.Poses.At(i, steps-1) - targetPos[i]
				out[n+i] = r.Vels.At(i, steps-1) - targetVel[i]
			}
		},
		func(r *Rollout, row int, g *Rollout) {
			_, steps := r.Dims()
			if row < n {
				g.Poses.Set(row, steps-1, g.Poses.At(row, steps-1)+1)
				return
			}
			g.Vels.Set(row-n, steps-1, g.Vels.At(row-n, steps-1)+1)
		})
}

// PositionWindow keeps one dof within [lower, upper] after step t.
func PositionWindow(step, dof int, lower, upper float64) *Func {
	return NewVector(fmt.Sprintf("position_window[%d@%d]", dof, step), 1,
		func(r *Rollout, out []float64) {
			out[0] = r.Poses.At(dof, step)
		},
		func(r *Rollout, _ int, g *Rollout) {
			g.Poses.Set(dof, step, g.Poses.At(dof, step)+1)
		}).WithBounds([]float64{lower}, []float64{upper})
}
