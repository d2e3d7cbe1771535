package dynamo

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/spatial/r2"
)

// Kind tags the variant of a celestial body.
type Kind string

const (
	KindStar       Kind = "star"
	KindPlanet     Kind = "planet"
	KindMoon       Kind = "moon"
	KindComet      Kind = "comet"
	KindAsteroid   Kind = "asteroid"
	KindSpacecraft Kind = "spacecraft"
)

// Kinds lists every supported kind in declaration order.
var Kinds = []Kind{KindStar, KindPlanet, KindMoon, KindComet, KindAsteroid, KindSpacecraft}

// ParseKind maps a tag to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// White is the color given to launched spacecraft.
var White = Color{255, 255, 255}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// Details is the kind-specific payload of a body. Exactly one
// implementation exists per Kind.
type Details interface {
	Kind() Kind
}

type StarDetails struct {
	Temperature float64
}

type PlanetDetails struct {
	Atmosphere string
	Surface    string
}

// MoonDetails names the parent planet. The reference is by name only and
// does not need to resolve.
type MoonDetails struct {
	ParentPlanet string
}

type CometDetails struct {
	TailLength float64
}

type AsteroidDetails struct {
	Composition string
}

type SpacecraftDetails struct {
	Mission string
}

func (StarDetails) Kind() Kind       { return KindStar }
func (PlanetDetails) Kind() Kind     { return KindPlanet }
func (MoonDetails) Kind() Kind       { return KindMoon }
func (CometDetails) Kind() Kind      { return KindComet }
func (AsteroidDetails) Kind() Kind   { return KindAsteroid }
func (SpacecraftDetails) Kind() Kind { return KindSpacecraft }

// Body is a point/disc mass participating in gravity and rendering.
type Body struct {
	Name     string
	Kind     Kind
	Mass     float64 // kg
	Position r2.Vec  // m
	Velocity r2.Vec  // m/s
	Radius   float64 // m
	Color    Color
	Details  Details

	trajectory *Trajectory
}

// Trajectory returns the recent positions of b, oldest first.
func (b Body) Trajectory() []r2.Vec {
	if b.trajectory == nil {
		return nil
	}
	return b.trajectory.Points()
}

// TailLength reports the comet tail length when b carries one.
func (b Body) TailLength() (float64, bool) {
	if d, ok := b.Details.(CometDetails); ok {
		return d.TailLength, true
	}
	return 0, false
}

// Validate checks the invariants a body must satisfy before entering a registry.
func (b Body) Validate() error {
	if b.Name == "" {
		return Validationf("body name is empty")
	}
	if _, err := ParseKind(string(b.Kind)); err != nil {
		return &BodyError{Op: "validate", Name: b.Name, Err: err}
	}
	if b.Details == nil || b.Details.Kind() != b.Kind {
		return &BodyError{Op: "validate", Name: b.Name, Err: Validationf("details do not match kind %s", b.Kind)}
	}
	if !(b.Mass > 0) || math.IsInf(b.Mass, 0) {
		return &BodyError{Op: "validate", Name: b.Name, Err: Validationf("mass must be positive and finite, got %g", b.Mass)}
	}
	if !finiteVec(b.Position) || !finiteVec(b.Velocity) {
		return &BodyError{Op: "validate", Name: b.Name, Err: Validationf("position and velocity must be finite")}
	}
	if b.Radius < 0 || math.IsNaN(b.Radius) || math.IsInf(b.Radius, 0) {
		return &BodyError{Op: "validate", Name: b.Name, Err: Validationf("radius must be non-negative and finite, got %g", b.Radius)}
	}
	return nil
}

// clone returns a copy of b with an independent trajectory buffer.
func (b Body) clone() Body {
	c := b
	if b.trajectory != nil {
		c.trajectory = b.trajectory.Clone()
	}
	return c
}

// Particle is the physical core of a body as seen by an integrator.
type Particle struct {
	Mass     float64
	Position r2.Vec
	Velocity r2.Vec
}

// Generation is the full set of particle states at one tick boundary, in
// registry order.
type Generation []Particle

func (g Generation) Clone() Generation {
	c := make(Generation, len(g))
	copy(c, g)
	return c
}

// IsValid reports whether every position and velocity is finite.
func (g Generation) IsValid() bool {
	return g.FirstInvalid() < 0
}

// FirstInvalid returns the index of the first non-finite particle, or -1.
func (g Generation) FirstInvalid() int {
	for i, p := range g {
		if !finiteVec(p.Position) || !finiteVec(p.Velocity) {
			return i
		}
	}
	return -1
}

// System computes the acceleration of particle i against a frozen generation.
type System interface {
	Accel(g Generation, i int) r2.Vec
}

// Hamiltonian is implemented by systems that can report total energy.
type Hamiltonian interface {
	Energy(g Generation) float64
}

// Integrator advances a generation by dt seconds. Implementations must not
// mutate g.
type Integrator interface {
	Name() string
	Step(sys System, g Generation, dt float64) Generation
}

func finiteVec(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

// Finite reports whether both components of v are finite.
func Finite(v r2.Vec) bool { return finiteVec(v) }
