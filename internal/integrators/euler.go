package integrators

import (
	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Euler is the semi-implicit (symplectic) Euler method: velocity is
// updated first and the new velocity moves the position.
type Euler struct {
	acc []r2.Vec
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(sys dynamo.System, g dynamo.Generation, dt float64) dynamo.Generation {
	if len(e.acc) != len(g) {
		e.acc = make([]r2.Vec, len(g))
	}
	accelAll(sys, g, e.acc)

	next := make(dynamo.Generation, len(g))
	for i, p := range g {
		v := r2.Add(p.Velocity, r2.Scale(dt, e.acc[i]))
		next[i] = dynamo.Particle{
			Mass:     p.Mass,
			Position: r2.Add(p.Position, r2.Scale(dt, v)),
			Velocity: v,
		}
	}
	return next
}
