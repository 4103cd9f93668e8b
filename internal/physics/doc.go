// Package physics provides reference multibody models and the World that
// steps them.
//
// Each model implements [dynamo.Dynamics] over generalized coordinates,
// with one generalized force per degree of freedom:
//
//   - [Pendulum]: single actuated link
//   - [DoublePendulum]: two links in series, torque at each joint
//   - [CoupledPendulums]: two pendulums joined by a spring
//   - [MassChain]: N masses between two walls
//   - [CartPole]: pole balanced on a sliding cart
//   - [Duffing], [DoubleWell], [VanDerPol]: forced one-dof oscillators
//
// DoublePendulum and CartPole are differentiated numerically; the rest
// implement [dynamo.AnalyticAccel]. All models implement
// [dynamo.Configurable], and all but VanDerPol implement
// [dynamo.Hamiltonian].
//
// [World] pairs a model with a [dynamo.Integrator]:
//
//	w := physics.NewWorld(physics.NewPendulum(), integrators.NewSemiImplicitEuler(), 0.01)
//	w.SetPositions([]float64{0.5})
//	snap, err := w.Step()
package physics
