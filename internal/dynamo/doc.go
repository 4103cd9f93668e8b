// Package dynamo defines the collaborator contracts between trajectory
// optimisation and the physics that drives it.
//
// The package defines:
//
//   - [State]: a vector of generalized coordinates, velocities or forces
//   - [Dynamics]: a continuous model qdd = a(q, v, f)
//   - [Integrator]: advances Dynamics one step and linearizes that step
//   - [World]: a steppable system with position, velocity and force state
//   - [Snapshot]: the record of one step, able to backpropagate through it
//
// # Example
//
//	w := physics.NewWorld(physics.NewPendulum(), integrators.NewSemiImplicitEuler(), 0.01)
//	snap, err := dynamo.StepFrom(w, q, v, f)
//	if err != nil {
//	    return err
//	}
//	err = snap.Backprop(gradNextPos, gradNextVel, gradPos, gradVel, gradForce)
//
// # Thread Safety
//
// Worlds and integrators keep scratch state and are NOT thread-safe. Use
// [World.Clone] to obtain an independent instance per goroutine.
package dynamo
