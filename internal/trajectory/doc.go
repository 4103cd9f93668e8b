// Package trajectory turns a flat optimization vector into a rollout of a
// [dynamo.World] and back-propagates losses and constraints through it.
//
// A [Shot] is the object an NLP solver drives: it reports its variable and
// constraint dimensions, box bounds, an initial guess, constraint values
// and their Jacobian (dense or sparse), and the gradient of the loss.
// Two representations are provided:
//
//   - [SingleShot]: optional start state plus one force per step.
//   - [MultiShot]: consecutive SingleShots joined by knot residuals.
//
// Analytic derivatives chain the per-step Jacobians recorded in each
// [dynamo.Snapshot]. [FiniteDifference], [BackpropStartStateJacobians] and
// [Verify] give independent numerical counterparts for checking them.
//
//	w := physics.NewWorld(physics.NewPendulum(), integrators.NewSemiImplicitEuler(), 0.01)
//	shot := trajectory.NewSingleShot(w, trajectory.FinalPositionError([]float64{math.Pi}), 50, false)
//	grad := make([]float64, shot.FlatProblemDim())
//	err := shot.BackpropGradient(w, grad)
package trajectory
