package integrators

import (
	"github.com/san-kum/dynshot/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1, 2, 2, 1}
)

// RK4 integrates the first-order system x = (q, v), x' = (v, a(q, v, f))
// with the classical fourth-order scheme. Linearize carries the stage
// Jacobians through the same four evaluations.
type RK4 struct {
	n  int
	x  []float64
	xs []float64
	k  [4][]float64

	aq, av, af *mat.Dense
	jx, ju     *mat.Dense
	kx, ku     [4]*mat.Dense
	dxs, dus   *mat.Dense
	tmpx, tmpu *mat.Dense
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string             { return "rk4" }
func (r *RK4) Clone() dynamo.Integrator { return NewRK4() }

func (r *RK4) ensureScratch(n int) {
	if r.n == n && r.x != nil {
		return
	}
	r.n = n
	r.x = make([]float64, 2*n)
	r.xs = make([]float64, 2*n)
	for s := range r.k {
		r.k[s] = make([]float64, 2*n)
	}
}

func (r *RK4) ensureJacobianScratch(n int) {
	r.ensureScratch(n)
	if r.jx != nil {
		if rows, _ := r.jx.Dims(); rows == 2*n {
			return
		}
	}
	r.aq = mat.NewDense(n, n, nil)
	r.av = mat.NewDense(n, n, nil)
	r.af = mat.NewDense(n, n, nil)
	r.jx = mat.NewDense(2*n, 2*n, nil)
	r.ju = mat.NewDense(2*n, n, nil)
	for s := range r.kx {
		r.kx[s] = mat.NewDense(2*n, 2*n, nil)
		r.ku[s] = mat.NewDense(2*n, n, nil)
	}
	r.dxs = mat.NewDense(2*n, 2*n, nil)
	r.dus = mat.NewDense(2*n, n, nil)
	r.tmpx = mat.NewDense(2*n, 2*n, nil)
	r.tmpu = mat.NewDense(2*n, n, nil)
}

// deriv writes (v, a(q, v, f)) for the packed state x into out.
func (r *RK4) deriv(dyn dynamo.Dynamics, x, f, out []float64) error {
	n := r.n
	copy(out[:n], x[n:])
	return dyn.Accel(x[:n], x[n:], f, out[n:])
}

// stagePoint sets xs = x + c*dt*k[s-1] for stage s.
func (r *RK4) stagePoint(s int, dt float64) {
	if s == 0 {
		copy(r.xs, r.x)
		return
	}
	c := rk4Nodes[s] * dt
	for i := range r.xs {
		r.xs[i] = r.x[i] + c*r.k[s-1][i]
	}
}

func (r *RK4) Step(dyn dynamo.Dynamics, q, v, f []float64, dt float64, qNext, vNext []float64) error {
	n := len(q)
	r.ensureScratch(n)
	copy(r.x[:n], q)
	copy(r.x[n:], v)

	for s := 0; s < 4; s++ {
		r.stagePoint(s, dt)
		if err := r.deriv(dyn, r.xs, f, r.k[s]); err != nil {
			return err
		}
	}

	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		qNext[i] = q[i] + dt6*(r.k[0][i]+2*r.k[1][i]+2*r.k[2][i]+r.k[3][i])
		vNext[i] = v[i] + dt6*(r.k[0][n+i]+2*r.k[1][n+i]+2*r.k[2][n+i]+r.k[3][n+i])
	}
	return dynamo.CheckFinite(qNext, vNext)
}

// systemJacobians fills jx = d(v, a)/d(q, v) and ju = d(v, a)/df at xs.
func (r *RK4) systemJacobians(dyn dynamo.Dynamics, f []float64) error {
	n := r.n
	if err := dynamo.AccelJacobians(dyn, r.xs[:n], r.xs[n:], f, r.aq, r.av, r.af); err != nil {
		return err
	}
	r.jx.Zero()
	r.ju.Zero()
	for i := 0; i < n; i++ {
		r.jx.Set(i, n+i, 1)
		for j := 0; j < n; j++ {
			r.jx.Set(n+i, j, r.aq.At(i, j))
			r.jx.Set(n+i, n+j, r.av.At(i, j))
			r.ju.Set(n+i, j, r.af.At(i, j))
		}
	}
	return nil
}

func (r *RK4) Linearize(dyn dynamo.Dynamics, q, v, f []float64, dt float64, jac *dynamo.StepJacobians) error {
	n := len(q)
	r.ensureJacobianScratch(n)
	copy(r.x[:n], q)
	copy(r.x[n:], v)

	for s := 0; s < 4; s++ {
		r.stagePoint(s, dt)
		if err := r.deriv(dyn, r.xs, f, r.k[s]); err != nil {
			return err
		}
		if err := r.systemJacobians(dyn, f); err != nil {
			return err
		}
		if s == 0 {
			r.kx[0].Copy(r.jx)
			r.ku[0].Copy(r.ju)
			continue
		}
		c := rk4Nodes[s] * dt
		// d xs / d x = I + c K_{s-1,x},  d xs / d f = c K_{s-1,u}
		r.dxs.Scale(c, r.kx[s-1])
		addIdentity(r.dxs)
		r.kx[s].Mul(r.jx, r.dxs)

		r.dus.Scale(c, r.ku[s-1])
		r.ku[s].Mul(r.jx, r.dus)
		r.ku[s].Add(r.ku[s], r.ju)
	}

	jac.State.Zero()
	jac.Force.Zero()
	for s := 0; s < 4; s++ {
		w := dt * rk4Weights[s] / 6.0
		r.tmpx.Scale(w, r.kx[s])
		jac.State.Add(jac.State, r.tmpx)
		r.tmpu.Scale(w, r.ku[s])
		jac.Force.Add(jac.Force, r.tmpu)
	}
	addIdentity(jac.State)
	return nil
}

func addIdentity(m *mat.Dense) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}
}
