package integrators

import (
	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// CoupledRK4 is classical fourth-order Runge-Kutta over the whole
// generation: each stage re-evaluates accelerations against the
// intermediate state of every body.
type CoupledRK4 struct {
	k1v, k2v, k3v, k4v []r2.Vec
	k1r, k2r, k3r, k4r []r2.Vec
	scratch            dynamo.Generation
}

func NewCoupledRK4() *CoupledRK4 {
	return &CoupledRK4{}
}

func (r *CoupledRK4) Name() string { return "rk4-coupled" }

func (r *CoupledRK4) ensureScratch(n int) {
	if len(r.k1v) != n {
		r.k1v = make([]r2.Vec, n)
		r.k2v = make([]r2.Vec, n)
		r.k3v = make([]r2.Vec, n)
		r.k4v = make([]r2.Vec, n)
		r.k1r = make([]r2.Vec, n)
		r.k2r = make([]r2.Vec, n)
		r.k3r = make([]r2.Vec, n)
		r.k4r = make([]r2.Vec, n)
		r.scratch = make(dynamo.Generation, n)
	}
}

func (r *CoupledRK4) Step(sys dynamo.System, g dynamo.Generation, dt float64) dynamo.Generation {
	n := len(g)
	r.ensureScratch(n)

	stage := func(kr, kv []r2.Vec, state dynamo.Generation) {
		accelAll(sys, state, kv)
		for i := range state {
			kv[i] = r2.Scale(dt, kv[i])
			kr[i] = r2.Scale(dt, state[i].Velocity)
		}
	}
	shift := func(kr, kv []r2.Vec, h float64) {
		for i, p := range g {
			r.scratch[i] = dynamo.Particle{
				Mass:     p.Mass,
				Position: r2.Add(p.Position, r2.Scale(h, kr[i])),
				Velocity: r2.Add(p.Velocity, r2.Scale(h, kv[i])),
			}
		}
	}

	stage(r.k1r, r.k1v, g)
	shift(r.k1r, r.k1v, 0.5)
	stage(r.k2r, r.k2v, r.scratch)
	shift(r.k2r, r.k2v, 0.5)
	stage(r.k3r, r.k3v, r.scratch)
	shift(r.k3r, r.k3v, 1)
	stage(r.k4r, r.k4v, r.scratch)

	next := make(dynamo.Generation, n)
	for i, p := range g {
		next[i] = dynamo.Particle{
			Mass:     p.Mass,
			Position: r2.Add(p.Position, weigh(r.k1r[i], r.k2r[i], r.k3r[i], r.k4r[i])),
			Velocity: r2.Add(p.Velocity, weigh(r.k1v[i], r.k2v[i], r.k3v[i], r.k4v[i])),
		}
	}

	return next
}
