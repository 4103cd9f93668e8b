package dynamo

import (
	"gonum.org/v1/gonum/mat"
)

// StepJacobians is the linearization of a single step around its pre-step
// state. State is d(q', v')/d(q, v) and Force is d(q', v')/df.
//
// Block accessors follow the <wrt><of> convention: PosVel is dv'/dq and
// VelPos is dq'/dv.
type StepJacobians struct {
	State *mat.Dense
	Force *mat.Dense
}

func NewStepJacobians(n int) *StepJacobians {
	return &StepJacobians{
		State: mat.NewDense(2*n, 2*n, nil),
		Force: mat.NewDense(2*n, n, nil),
	}
}

func (j *StepJacobians) NumDofs() int {
	_, c := j.Force.Dims()
	return c
}

func (j *StepJacobians) PosPos() mat.Matrix {
	n := j.NumDofs()
	return j.State.Slice(0, n, 0, n)
}

func (j *StepJacobians) PosVel() mat.Matrix {
	n := j.NumDofs()
	return j.State.Slice(n, 2*n, 0, n)
}

func (j *StepJacobians) VelPos() mat.Matrix {
	n := j.NumDofs()
	return j.State.Slice(0, n, n, 2*n)
}

func (j *StepJacobians) VelVel() mat.Matrix {
	n := j.NumDofs()
	return j.State.Slice(n, 2*n, n, 2*n)
}

func (j *StepJacobians) ForcePos() mat.Matrix {
	n := j.NumDofs()
	return j.Force.Slice(0, n, 0, n)
}

func (j *StepJacobians) ForceVel() mat.Matrix {
	n := j.NumDofs()
	return j.Force.Slice(n, 2*n, 0, n)
}

// Snapshot records one step of a World. The Jacobians of the step are
// computed on first use, so rollouts that are never differentiated pay
// nothing for them.
type Snapshot struct {
	prePos, preVel, preForce State
	postPos, postVel         State

	linearize  func(*StepJacobians) error
	jac        *StepJacobians
	jacErr     error
	linearized bool
}

// NewSnapshot takes ownership of the passed states. linearize fills the
// Jacobians of the step when they are first requested.
func NewSnapshot(q, v, f, qNext, vNext State, linearize func(*StepJacobians) error) *Snapshot {
	return &Snapshot{
		prePos:    q,
		preVel:    v,
		preForce:  f,
		postPos:   qNext,
		postVel:   vNext,
		linearize: linearize,
	}
}

func (s *Snapshot) NumDofs() int            { return len(s.prePos) }
func (s *Snapshot) PreStepPosition() State  { return s.prePos }
func (s *Snapshot) PreStepVelocity() State  { return s.preVel }
func (s *Snapshot) PreStepForce() State     { return s.preForce }
func (s *Snapshot) PostStepPosition() State { return s.postPos }
func (s *Snapshot) PostStepVelocity() State { return s.postVel }
func (s *Snapshot) PostStepState() State    { return Concat(s.postPos, s.postVel) }
func (s *Snapshot) PreStepState() State     { return Concat(s.prePos, s.preVel) }

func (s *Snapshot) Jacobians() (*StepJacobians, error) {
	if !s.linearized {
		s.jac = NewStepJacobians(len(s.prePos))
		s.jacErr = s.linearize(s.jac)
		s.linearized = true
	}
	if s.jacErr != nil {
		return nil, s.jacErr
	}
	return s.jac, nil
}

// Backprop maps a gradient with respect to the post-step state onto the
// pre-step position, velocity and force. Outputs are overwritten and must
// not alias the inputs.
func (s *Snapshot) Backprop(gradNextPos, gradNextVel, gradPos, gradVel, gradForce []float64) error {
	n := len(s.prePos)
	for _, b := range []struct {
		name string
		buf  []float64
	}{
		{"gradNextPos", gradNextPos},
		{"gradNextVel", gradNextVel},
		{"gradPos", gradPos},
		{"gradVel", gradVel},
		{"gradForce", gradForce},
	} {
		if len(b.buf) != n {
			panic(DimensionError(b.name, len(b.buf), n))
		}
	}

	j, err := s.Jacobians()
	if err != nil {
		return err
	}

	st := j.State.RawMatrix()
	for c := 0; c < 2*n; c++ {
		sum := 0.0
		for r := 0; r < n; r++ {
			sum += st.Data[r*st.Stride+c] * gradNextPos[r]
			sum += st.Data[(n+r)*st.Stride+c] * gradNextVel[r]
		}
		if c < n {
			gradPos[c] = sum
		} else {
			gradVel[c-n] = sum
		}
	}

	fj := j.Force.RawMatrix()
	for c := 0; c < n; c++ {
		sum := 0.0
		for r := 0; r < n; r++ {
			sum += fj.Data[r*fj.Stride+c] * gradNextPos[r]
			sum += fj.Data[(n+r)*fj.Stride+c] * gradNextVel[r]
		}
		gradForce[c] = sum
	}
	return nil
}
