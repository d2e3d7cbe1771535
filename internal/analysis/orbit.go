package analysis

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

type Elements struct {
	Body          string  `json:"body"`
	Primary       string  `json:"primary"`
	Distance      float64 `json:"distance"`
	Speed         float64 `json:"speed"`
	SemiMajorAxis float64 `json:"semi_major_axis"` // negative when unbound
	Eccentricity  float64 `json:"eccentricity"`
	Periapsis     float64 `json:"periapsis"`
	Apoapsis      float64 `json:"apoapsis"` // +Inf when unbound
	Period        float64 `json:"period"`   // +Inf when unbound
	Bound         bool    `json:"bound"`
}

// Primary picks the body b orbits: a moon's parent planet when it resolves,
// otherwise the most massive other body. ok is false when there is no other
// body.
func Primary(bodies []dynamo.Body, b dynamo.Body) (dynamo.Body, bool) {
	if moon, isMoon := b.Details.(dynamo.MoonDetails); isMoon {
		for _, o := range bodies {
			if o.Name == moon.ParentPlanet && o.Name != b.Name {
				return o, true
			}
		}
	}

	var best dynamo.Body
	found := false
	for _, o := range bodies {
		if o.Name == b.Name {
			continue
		}
		if !found || o.Mass > best.Mass {
			best, found = o, true
		}
	}
	return best, found
}

// ElementsOf computes the two-body elements of b around primary.
func ElementsOf(primary, b dynamo.Body) Elements {
	r := r2.Sub(b.Position, primary.Position)
	v := r2.Sub(b.Velocity, primary.Velocity)
	mu := physics.G * (primary.Mass + b.Mass)

	dist := math.Sqrt(r.X*r.X + r.Y*r.Y)
	speed := math.Sqrt(v.X*v.X + v.Y*v.Y)
	el := Elements{Body: b.Name, Primary: primary.Name, Distance: dist, Speed: speed}
	if dist == 0 {
		el.SemiMajorAxis = math.NaN()
		el.Eccentricity = math.NaN()
		return el
	}

	energy := speed*speed/2 - mu/dist
	h := r.X*v.Y - r.Y*v.X

	// e = ((v² - mu/r) r - (r·v) v) / mu
	rv := r.X*v.X + r.Y*v.Y
	ev := r2.Scale(1/mu, r2.Sub(r2.Scale(speed*speed-mu/dist, r), r2.Scale(rv, v)))
	el.Eccentricity = math.Sqrt(ev.X*ev.X + ev.Y*ev.Y)

	el.Periapsis = h * h / mu / (1 + el.Eccentricity)
	el.Bound = energy < 0
	if el.Bound {
		el.SemiMajorAxis = -mu / (2 * energy)
		el.Apoapsis = el.SemiMajorAxis * (1 + el.Eccentricity)
		el.Period = 2 * math.Pi * math.Sqrt(el.SemiMajorAxis*el.SemiMajorAxis*el.SemiMajorAxis/mu)
	} else {
		el.SemiMajorAxis = math.Inf(1)
		if energy > 0 {
			el.SemiMajorAxis = -mu / (2 * energy)
		}
		el.Apoapsis = math.Inf(1)
		el.Period = math.Inf(1)
	}
	return el
}

// Report returns the elements of every body that has a primary, in input
// order.
func Report(bodies []dynamo.Body) []Elements {
	out := make([]Elements, 0, len(bodies))
	for _, b := range bodies {
		p, ok := Primary(bodies, b)
		if !ok {
			continue
		}
		out = append(out, ElementsOf(p, b))
	}
	return out
}
