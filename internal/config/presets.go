package config

import (
	"math"
	"sort"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// Preset is a built-in body set used when no snapshot is configured.
type Preset struct {
	Name        string
	Description string
	Scale       float64 // suggested pixels per meter
	Track       string
	build       func() []dynamo.Body
}

func (p Preset) Bodies() []dynamo.Body { return p.build() }

const (
	massSun   = 1.989e30
	massEarth = 5.972e24
	massMoon  = 7.342e22
	au        = 1.496e11
)

var Presets = map[string]Preset{
	"solar": {
		Name:        "solar",
		Description: "Sun, eight bodies of the inner and outer system, a comet and an asteroid",
		Scale:       DefaultScale,
		Track:       "Sun",
		build:       solarSystem,
	},
	"earth-moon": {
		Name:        "earth-moon",
		Description: "Earth and Moon around their barycenter",
		Scale:       400 / 3.844e8,
		Track:       "Earth",
		build:       earthMoon,
	},
	"binary": {
		Name:        "binary",
		Description: "two equal stars with a circumbinary planet",
		Scale:       300 / 1e12,
		Track:       "Alpha",
		build:       binaryStars,
	},
}

func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// circular places a body on a circular orbit of radius r around a central
// mass at angle theta, counter-clockwise.
func circular(center dynamo.Body, r, theta float64) (r2.Vec, r2.Vec) {
	v := physics.CircularVelocity(center.Mass, r)
	sin, cos := math.Sincos(theta)
	pos := r2.Add(center.Position, r2.Vec{X: r * cos, Y: r * sin})
	vel := r2.Add(center.Velocity, r2.Vec{X: -v * sin, Y: v * cos})
	return pos, vel
}

func planet(sun dynamo.Body, name string, mass, r, theta, radius float64, color dynamo.Color, atmosphere, surface string) dynamo.Body {
	pos, vel := circular(sun, r, theta)
	return dynamo.Body{
		Name: name, Kind: dynamo.KindPlanet, Mass: mass, Position: pos, Velocity: vel,
		Radius: radius, Color: color,
		Details: dynamo.PlanetDetails{Atmosphere: atmosphere, Surface: surface},
	}
}

func sun() dynamo.Body {
	return dynamo.Body{
		Name: "Sun", Kind: dynamo.KindStar, Mass: massSun, Radius: 6.9634e8,
		Color:   dynamo.Color{R: 255, G: 204, B: 0},
		Details: dynamo.StarDetails{Temperature: 5778},
	}
}

func solarSystem() []dynamo.Body {
	s := sun()
	earth := planet(s, "Earth", massEarth, au, 0, 6.371e6, dynamo.Color{R: 0, G: 102, B: 255}, "nitrogen, oxygen", "oceans, continents")

	moonPos, moonVel := circular(earth, 3.844e8, 0)
	ceresPos, ceresVel := circular(s, 4.14e11, 2.2)

	return []dynamo.Body{
		s,
		planet(s, "Mercury", 3.301e23, 5.79e10, 1.1, 2.4397e6, dynamo.Color{R: 169, G: 169, B: 169}, "", "cratered rock"),
		planet(s, "Venus", 4.867e24, 1.082e11, 2.6, 6.0518e6, dynamo.Color{R: 255, G: 198, B: 73}, "carbon dioxide, sulfuric acid clouds", "volcanic plains"),
		earth,
		{
			Name: "Moon", Kind: dynamo.KindMoon, Mass: massMoon, Position: moonPos, Velocity: moonVel,
			Radius: 1.7374e6, Color: dynamo.Color{R: 200, G: 200, B: 200},
			Details: dynamo.MoonDetails{ParentPlanet: "Earth"},
		},
		planet(s, "Mars", 6.39e23, 2.279e11, 4.0, 3.3895e6, dynamo.Color{R: 193, G: 68, B: 14}, "thin carbon dioxide", "iron oxide dust"),
		planet(s, "Jupiter", 1.898e27, 7.785e11, 5.3, 6.9911e7, dynamo.Color{R: 201, G: 144, B: 57}, "hydrogen, helium", ""),
		planet(s, "Saturn", 5.683e26, 1.434e12, 0.7, 5.8232e7, dynamo.Color{R: 234, G: 214, B: 184}, "hydrogen, helium", ""),
		{
			Name: "Ceres", Kind: dynamo.KindAsteroid, Mass: 9.39e20, Position: ceresPos, Velocity: ceresVel,
			Radius: 4.73e5, Color: dynamo.Color{R: 130, G: 130, B: 130},
			Details: dynamo.AsteroidDetails{Composition: "carbonaceous rock, water ice"},
		},
		{
			Name: "Halley", Kind: dynamo.KindComet, Mass: 2.2e14,
			Position: r2.Vec{X: -5.25e12}, Velocity: r2.Vec{Y: -910},
			Radius: 5.5e3, Color: dynamo.Color{R: 180, G: 220, B: 255},
			Details: dynamo.CometDetails{TailLength: 1e8},
		},
	}
}

func earthMoon() []dynamo.Body {
	const d = 3.844e8
	v := math.Sqrt(physics.G * (massEarth + massMoon) / d)

	// Velocities split about the barycenter so total momentum is zero.
	earthV := -v * massMoon / (massEarth + massMoon)
	moonV := v * massEarth / (massEarth + massMoon)
	earthX := -d * massMoon / (massEarth + massMoon)

	return []dynamo.Body{
		{
			Name: "Earth", Kind: dynamo.KindPlanet, Mass: massEarth,
			Position: r2.Vec{X: earthX}, Velocity: r2.Vec{Y: earthV},
			Radius: 6.371e6, Color: dynamo.Color{R: 0, G: 102, B: 255},
			Details: dynamo.PlanetDetails{Atmosphere: "nitrogen, oxygen", Surface: "oceans, continents"},
		},
		{
			Name: "Moon", Kind: dynamo.KindMoon, Mass: massMoon,
			Position: r2.Vec{X: earthX + d}, Velocity: r2.Vec{Y: moonV},
			Radius: 1.7374e6, Color: dynamo.Color{R: 200, G: 200, B: 200},
			Details: dynamo.MoonDetails{ParentPlanet: "Earth"},
		},
	}
}

func binaryStars() []dynamo.Body {
	const (
		m = 1e30
		d = 2e11
	)
	v := math.Sqrt(physics.G * m / (2 * d))
	center := dynamo.Body{Mass: 2 * m}
	pos, vel := circular(center, 1.2e12, 0)

	return []dynamo.Body{
		{
			Name: "Alpha", Kind: dynamo.KindStar, Mass: m,
			Position: r2.Vec{X: -d / 2}, Velocity: r2.Vec{Y: -v},
			Radius: 6e8, Color: dynamo.Color{R: 255, G: 170, B: 80},
			Details: dynamo.StarDetails{Temperature: 4800},
		},
		{
			Name: "Beta", Kind: dynamo.KindStar, Mass: m,
			Position: r2.Vec{X: d / 2}, Velocity: r2.Vec{Y: v},
			Radius: 6e8, Color: dynamo.Color{R: 170, G: 200, B: 255},
			Details: dynamo.StarDetails{Temperature: 7200},
		},
		{
			Name: "Tatooine", Kind: dynamo.KindPlanet, Mass: 3e24,
			Position: pos, Velocity: vel,
			Radius: 5.2e6, Color: dynamo.Color{R: 222, G: 184, B: 135},
			Details: dynamo.PlanetDetails{Atmosphere: "thin nitrogen", Surface: "desert"},
		},
	}
}
