package integrators

import (
	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// RK4 is the frozen-acceleration Runge-Kutta scheme. Every body's
// acceleration is sampled once from the pre-step generation and reused for
// all four velocity stages; only the position stages chain through the
// velocity increments. This is not textbook RK4 and must not be corrected
// here: use CoupledRK4 for that.
type RK4 struct {
	acc []r2.Vec
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) ensureScratch(n int) {
	if len(r.acc) != n {
		r.acc = make([]r2.Vec, n)
	}
}

func (r *RK4) Step(sys dynamo.System, g dynamo.Generation, dt float64) dynamo.Generation {
	n := len(g)
	r.ensureScratch(n)
	accelAll(sys, g, r.acc)

	next := make(dynamo.Generation, n)
	for i, p := range g {
		a := r.acc[i]

		k1v := r2.Scale(dt, a)
		k1r := r2.Scale(dt, p.Velocity)
		k2v := r2.Scale(dt, a)
		k2r := r2.Scale(dt, r2.Add(p.Velocity, r2.Scale(0.5, k1v)))
		k3v := r2.Scale(dt, a)
		k3r := r2.Scale(dt, r2.Add(p.Velocity, r2.Scale(0.5, k2v)))
		k4v := r2.Scale(dt, a)
		k4r := r2.Scale(dt, r2.Add(p.Velocity, k3v))

		next[i] = dynamo.Particle{
			Mass:     p.Mass,
			Position: r2.Add(p.Position, weigh(k1r, k2r, k3r, k4r)),
			Velocity: r2.Add(p.Velocity, weigh(k1v, k2v, k3v, k4v)),
		}
	}

	return next
}

// weigh returns (k1 + 2*k2 + 2*k3 + k4) / 6, summed left to right.
func weigh(k1, k2, k3, k4 r2.Vec) r2.Vec {
	sum := r2.Add(r2.Add(r2.Add(k1, r2.Scale(2, k2)), r2.Scale(2, k3)), k4)
	return r2.Vec{X: sum.X / 6, Y: sum.Y / 6}
}

// accelAll samples every particle's acceleration from the frozen generation g.
func accelAll(sys dynamo.System, g dynamo.Generation, out []r2.Vec) {
	dynamo.ParallelFor(len(g), 64, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = sys.Accel(g, i)
		}
	})
}
