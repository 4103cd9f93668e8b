package trajectory

import (
	"fmt"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// Method selects the finite-difference stencil.
type Method int

const (
	Central Method = iota
	Forward
)

func (m Method) String() string {
	switch m {
	case Central:
		return "central"
	case Forward:
		return "forward"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod is the inverse of Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "central", "":
		return Central, nil
	case "forward":
		return Forward, nil
	default:
		return Central, fmt.Errorf("%w: unknown finite difference method %q", dynamo.ErrInvalidConfig, s)
	}
}

const DefaultEps = 1e-6

// FiniteDifference differentiates a Shot numerically by perturbing one flat
// entry at a time. It is a check on the analytic paths, not a substitute.
type FiniteDifference struct {
	Eps    float64
	Method Method
}

var DefaultFiniteDifference = FiniteDifference{Eps: DefaultEps, Method: Central}

func (fd FiniteDifference) eps() float64 {
	if fd.Eps <= 0 {
		return DefaultEps
	}
	return fd.Eps
}

// perturb evaluates eval at flat + eps*e_i (and flat - eps*e_i for the
// central stencil) for every i, handing the difference quotient to
// record. The representation of s is restored before returning.
func (fd FiniteDifference) perturb(s Shot, outLen int, eval func(out []float64) error, record func(i int, d []float64)) error {
	dim := s.FlatProblemDim()
	orig := make([]float64, dim)
	s.Flatten(orig)
	defer s.Unflatten(orig)

	flat := append([]float64(nil), orig...)
	plus := make([]float64, outLen)
	minus := make([]float64, outLen)
	diff := make([]float64, outLen)
	eps := fd.eps()

	if fd.Method == Forward {
		if err := eval(minus); err != nil {
			return err
		}
	}
	for i := 0; i < dim; i++ {
		flat[i] = orig[i] + eps
		s.Unflatten(flat)
		if err := eval(plus); err != nil {
			return err
		}
		denom := eps
		if fd.Method == Central {
			flat[i] = orig[i] - eps
			s.Unflatten(flat)
			if err := eval(minus); err != nil {
				return err
			}
			denom = 2 * eps
		}
		flat[i] = orig[i]
		for k := range diff {
			diff[k] = (plus[k] - minus[k]) / denom
		}
		record(i, diff)
	}
	return nil
}

// Jacobian writes d constraints / d flat into jac by finite differences.
func (fd FiniteDifference) Jacobian(s Shot, w dynamo.World, jac *mat.Dense) error {
	m := s.ConstraintDim()
	if m == 0 {
		return nil
	}
	mustHaveShape("jacobian", jac, m, s.FlatProblemDim())
	return fd.perturb(s, m,
		func(out []float64) error { return s.ComputeConstraints(w, out) },
		func(i int, d []float64) { jac.SetCol(i, d) })
}

// Gradient writes d loss / d flat into grad by finite differences.
func (fd FiniteDifference) Gradient(s Shot, w dynamo.World, grad []float64) error {
	mustHaveLen("gradient", len(grad), s.FlatProblemDim())
	return fd.perturb(s, 1,
		func(out []float64) error {
			v, err := s.Loss(w)
			out[0] = v
			return err
		},
		func(i int, d []float64) { grad[i] = d[0] })
}

func FiniteDifferenceJacobian(s Shot, w dynamo.World, jac *mat.Dense) error {
	return DefaultFiniteDifference.Jacobian(s, w, jac)
}

func FiniteDifferenceGradient(s Shot, w dynamo.World, grad []float64) error {
	return DefaultFiniteDifference.Gradient(s, w, grad)
}
