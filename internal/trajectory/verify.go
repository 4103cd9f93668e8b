package trajectory

import (
	"math"

	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Verification compares every analytic derivative of a Shot against its
// finite-difference counterpart. Relative errors are |a-b| / max(1, |a|, |b|).
type Verification struct {
	FlatDim       int
	ConstraintDim int
	Steps         int
	NonZeros      int

	JacobianMaxAbs float64
	JacobianMaxRel float64
	GradientMaxAbs float64
	GradientMaxRel float64
	StartMaxAbs    float64
	StartMaxRel    float64

	// SparseMatchesDense is false if SparseJacobian disagrees with the
	// dense Jacobian at any structural entry.
	SparseMatchesDense bool

	Tolerance float64
	Passed    bool
}

// MaxRel is the largest relative error over all checks.
func (v *Verification) MaxRel() float64 {
	return floats.Max([]float64{v.JacobianMaxRel, v.GradientMaxRel, v.StartMaxRel})
}

// Verify runs both derivative paths of s at its current flat vector. A
// mismatch is reported through Passed; the error is only set when a rollout
// fails.
func Verify(s Shot, w dynamo.World, fd FiniteDifference, tol float64) (*Verification, error) {
	v := &Verification{
		FlatDim:            s.FlatProblemDim(),
		ConstraintDim:      s.ConstraintDim(),
		Steps:              s.NumSteps(),
		NonZeros:           s.NumberNonZeroJacobian(),
		Tolerance:          tol,
		SparseMatchesDense: true,
	}

	if m := v.ConstraintDim; m > 0 {
		analytic := mat.NewDense(m, v.FlatDim, nil)
		numeric := mat.NewDense(m, v.FlatDim, nil)
		if err := s.BackpropJacobian(w, analytic); err != nil {
			return nil, err
		}
		if err := fd.Jacobian(s, w, numeric); err != nil {
			return nil, err
		}
		v.JacobianMaxAbs, v.JacobianMaxRel = compare(analytic.RawMatrix().Data, numeric.RawMatrix().Data)

		ok, err := sparseMatches(s, w, analytic)
		if err != nil {
			return nil, err
		}
		v.SparseMatchesDense = ok
	}

	analytic := make([]float64, v.FlatDim)
	numeric := make([]float64, v.FlatDim)
	if err := s.BackpropGradient(w, analytic); err != nil {
		return nil, err
	}
	if err := fd.Gradient(s, w, numeric); err != nil {
		return nil, err
	}
	v.GradientMaxAbs, v.GradientMaxRel = compare(analytic, numeric)

	ba, err := BackpropStartStateJacobians(s, w)
	if err != nil {
		return nil, err
	}
	bn, err := FiniteDifferenceStartStateJacobians(s, w, fd.eps())
	if err != nil {
		return nil, err
	}
	for t := 0; t < ba.Len(); t++ {
		abs, rel := compare(ba.blocks[t].RawMatrix().Data, bn.blocks[t].RawMatrix().Data)
		v.StartMaxAbs = math.Max(v.StartMaxAbs, abs)
		v.StartMaxRel = math.Max(v.StartMaxRel, rel)
	}

	v.Passed = v.SparseMatchesDense && v.MaxRel() <= tol
	return v, nil
}

func compare(a, b []float64) (maxAbs, maxRel float64) {
	if len(a) == 0 {
		return 0, 0
	}
	maxAbs = floats.Distance(a, b, math.Inf(1))
	for i := range a {
		scale := math.Max(1, math.Max(math.Abs(a[i]), math.Abs(b[i])))
		maxRel = math.Max(maxRel, math.Abs(a[i]-b[i])/scale)
	}
	return maxAbs, maxRel
}

func sparseMatches(s Shot, w dynamo.World, dense *mat.Dense) (bool, error) {
	nnz := s.NumberNonZeroJacobian()
	rows := make([]int, nnz)
	cols := make([]int, nnz)
	vals := make([]float64, nnz)
	s.JacobianSparsityStructure(rows, cols)
	if err := s.SparseJacobian(w, vals); err != nil {
		return false, err
	}
	seen := mat.NewDense(dense.RawMatrix().Rows, dense.RawMatrix().Cols, nil)
	for k := range vals {
		if vals[k] != dense.At(rows[k], cols[k]) {
			return false, nil
		}
		seen.Set(rows[k], cols[k], 1)
	}
	// Entries left out of the structure must be zero.
	r, c := dense.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if seen.At(i, j) == 0 && dense.At(i, j) != 0 {
				return false, nil
			}
		}
	}
	return true, nil
}
