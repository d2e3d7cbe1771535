package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

func benchRing(n int) dynamo.Generation {
	g := make(dynamo.Generation, n+1)
	g[0] = dynamo.Particle{Mass: 1.989e30}
	for i := 1; i <= n; i++ {
		angle := float64(i) * 2 * math.Pi / float64(n)
		r := 1.496e11 * (1 + 0.01*float64(i))
		v := physics.CircularVelocity(1.989e30, r)
		g[i] = dynamo.Particle{
			Mass:     1e22,
			Position: r2.Vec{X: r * math.Cos(angle), Y: r * math.Sin(angle)},
			Velocity: r2.Vec{X: -v * math.Sin(angle), Y: v * math.Cos(angle)},
		}
	}
	return g
}

func benchStep(b *testing.B, integ dynamo.Integrator, n int) {
	grav := physics.NewGravity()
	g := benchRing(n)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g = integ.Step(grav, g, 3600)
	}
}

func BenchmarkEuler(b *testing.B)      { benchStep(b, NewEuler(), 9) }
func BenchmarkRK4(b *testing.B)        { benchStep(b, NewRK4(), 9) }
func BenchmarkCoupledRK4(b *testing.B) { benchStep(b, NewCoupledRK4(), 9) }
func BenchmarkVerlet(b *testing.B)     { benchStep(b, NewVerlet(), 9) }

func BenchmarkRK4_Ring256(b *testing.B)        { benchStep(b, NewRK4(), 256) }
func BenchmarkCoupledRK4_Ring256(b *testing.B) { benchStep(b, NewCoupledRK4(), 256) }
