package metrics

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultEscapeRadius is 100 AU.
const DefaultEscapeRadius = 100 * 1.496e11

// Stability is the fraction of samples in which every body stays within
// threshold meters of the first body.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(g dynamo.Generation, t float64) {
	if len(g) == 0 {
		return
	}
	s.samples++
	origin := g[0].Position
	for _, b := range g[1:] {
		d := r2.Sub(b.Position, origin)
		if math.Sqrt(d.X*d.X+d.Y*d.Y) > s.threshold || !g.IsValid() {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// MinSeparation is the closest approach between any two bodies, in meters.
// Coincident pairs count as zero.
type MinSeparation struct {
	name string
	min  float64
}

func NewMinSeparation() *MinSeparation {
	return &MinSeparation{name: "min_separation", min: math.Inf(1)}
}

func (m *MinSeparation) Name() string { return m.name }

func (m *MinSeparation) Observe(g dynamo.Generation, t float64) {
	for i := range g {
		for j := i + 1; j < len(g); j++ {
			d := r2.Sub(g[j].Position, g[i].Position)
			m.min = math.Min(m.min, math.Sqrt(d.X*d.X+d.Y*d.Y))
		}
	}
}

func (m *MinSeparation) Value() float64 {
	if math.IsInf(m.min, 1) {
		return 0
	}
	return m.min
}

func (m *MinSeparation) Reset() { m.min = math.Inf(1) }
