// Package dynamo provides the core primitives of the orbital simulation.
//
// The package defines the entities and the contracts every other package
// builds on:
//
//   - [Body]: a simulated mass with a kind-specific [Details] payload
//   - [Registry]: the ordered, name-indexed set of bodies
//   - [Trajectory]: bounded history of recent positions
//   - [Generation]: frozen positions/velocities at one tick boundary
//   - [System]: acceleration model evaluated against a generation
//   - [Integrator]: advances a generation by a fixed time step
//
// # Example
//
//	reg := dynamo.NewRegistry()
//	_ = reg.Append(sun)
//	g := reg.Generation()
//	next := integrators.NewRK4().Step(physics.NewGravity(), g, 3600)
//	_ = reg.Apply(next)
//
// # Thread Safety
//
// Registry methods are safe for concurrent use. A Generation is a plain
// value copy and is owned by whoever took it.
package dynamo
