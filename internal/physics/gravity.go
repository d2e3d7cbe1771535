package physics

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// G is the Newtonian gravitational constant in m^3 kg^-1 s^-2.
const G = 6.67430e-11

// Gravity is pairwise Newtonian attraction between every particle of a
// generation. Coincident pairs contribute nothing.
type Gravity struct {
	G float64
}

func NewGravity() *Gravity {
	return &Gravity{G: G}
}

// Accel returns the acceleration of particle i against the frozen generation g.
func (gr *Gravity) Accel(g dynamo.Generation, i int) r2.Vec {
	var a r2.Vec
	pi := g[i].Position

	for j := range g {
		if j == i {
			continue
		}
		r := r2.Sub(g[j].Position, pi)
		d := math.Sqrt(r.X*r.X + r.Y*r.Y)
		if d == 0 {
			continue
		}
		a = r2.Add(a, r2.Scale(gr.G*g[j].Mass/math.Pow(d, 3), r))
	}

	return a
}

// Energy is kinetic plus pairwise potential energy in joules.
func (gr *Gravity) Energy(g dynamo.Generation) float64 {
	ke := 0.0
	pe := 0.0

	for i := range g {
		v := g[i].Velocity
		ke += 0.5 * g[i].Mass * (v.X*v.X + v.Y*v.Y)

		for j := i + 1; j < len(g); j++ {
			r := r2.Sub(g[j].Position, g[i].Position)
			d := math.Sqrt(r.X*r.X + r.Y*r.Y)
			if d == 0 {
				continue
			}
			pe -= gr.G * g[i].Mass * g[j].Mass / d
		}
	}

	return ke + pe
}

func (gr *Gravity) Momentum(g dynamo.Generation) r2.Vec {
	var p r2.Vec
	for _, b := range g {
		p = r2.Add(p, r2.Scale(b.Mass, b.Velocity))
	}
	return p
}

// AngularMomentum is the z component of total angular momentum about the origin.
func (gr *Gravity) AngularMomentum(g dynamo.Generation) float64 {
	L := 0.0
	for _, b := range g {
		L += b.Mass * (b.Position.X*b.Velocity.Y - b.Position.Y*b.Velocity.X)
	}
	return L
}

// CircularVelocity is the speed of a circular orbit of radius r around a
// central mass m.
func CircularVelocity(m, r float64) float64 {
	if r <= 0 {
		return 0
	}
	return math.Sqrt(G * m / r)
}

// Period is the time for one circular orbit of radius r around mass m.
func Period(m, r float64) float64 {
	if m <= 0 {
		return math.Inf(1)
	}
	return 2 * math.Pi * math.Sqrt(r*r*r/(G*m))
}
