package trajectory

import "gonum.org/v1/gonum/mat"

// scratch holds the buffers a shot reuses between calls. Contents are only
// meaningful inside the call that wrote them and are never handed out.
type scratch struct {
	dofs, steps int

	rollout *Rollout
	grad    *Rollout

	force     []float64
	nextPos   []float64
	nextVel   []float64
	pos       []float64
	vel       []float64
	gradForce []float64

	chain, chainTmp *mat.Dense
	jac             *mat.Dense
}

func (s *scratch) ensure(dofs, steps int) {
	if s.rollout != nil && s.dofs == dofs && s.steps == steps {
		return
	}
	s.dofs, s.steps = dofs, steps
	s.rollout = NewRollout(dofs, steps)
	s.grad = NewRollout(dofs, steps)
	s.force = make([]float64, dofs)
	s.nextPos = make([]float64, dofs)
	s.nextVel = make([]float64, dofs)
	s.pos = make([]float64, dofs)
	s.vel = make([]float64, dofs)
	s.gradForce = make([]float64, dofs)
	s.chain = mat.NewDense(2*dofs, 2*dofs, nil)
	s.chainTmp = mat.NewDense(2*dofs, 2*dofs, nil)
}

// jacobian returns a zeroed rows x cols matrix, reallocating only when the
// shape changes.
func (s *scratch) jacobian(rows, cols int) *mat.Dense {
	if s.jac != nil {
		if r, c := s.jac.Dims(); r == rows && c == cols {
			s.jac.Zero()
			return s.jac
		}
	}
	s.jac = mat.NewDense(rows, cols, nil)
	return s.jac
}
