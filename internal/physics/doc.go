// Package physics provides the gravitational model driving the simulation.
//
// [Gravity] implements [dynamo.System] with pairwise Newtonian attraction
// and [dynamo.Hamiltonian] for energy monitoring:
//
//	grav := physics.NewGravity()
//	a := grav.Accel(reg.Generation(), 0)
//	e := grav.Energy(reg.Generation())
//
// A pair of coincident particles contributes zero acceleration and zero
// potential energy. No softening is applied.
package physics
