package integrators

import (
	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Verlet is velocity Verlet. It needs two acceleration evaluations per step
// and conserves energy well over long runs.
type Verlet struct {
	acc     []r2.Vec
	accNew  []r2.Vec
	scratch dynamo.Generation
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Name() string { return "verlet" }

func (v *Verlet) ensureScratch(n int) {
	if len(v.scratch) != n {
		v.acc = make([]r2.Vec, n)
		v.accNew = make([]r2.Vec, n)
		v.scratch = make(dynamo.Generation, n)
	}
}

func (v *Verlet) Step(sys dynamo.System, g dynamo.Generation, dt float64) dynamo.Generation {
	n := len(g)
	v.ensureScratch(n)
	accelAll(sys, g, v.acc)

	dt2 := 0.5 * dt * dt
	for i, p := range g {
		v.scratch[i] = dynamo.Particle{
			Mass:     p.Mass,
			Position: r2.Add(p.Position, r2.Add(r2.Scale(dt, p.Velocity), r2.Scale(dt2, v.acc[i]))),
			Velocity: p.Velocity,
		}
	}

	accelAll(sys, v.scratch, v.accNew)

	halfDt := 0.5 * dt
	next := make(dynamo.Generation, n)
	for i, p := range v.scratch {
		next[i] = dynamo.Particle{
			Mass:     p.Mass,
			Position: p.Position,
			Velocity: r2.Add(p.Velocity, r2.Scale(halfDt, r2.Add(v.acc[i], v.accNew[i]))),
		}
	}
	return next
}
