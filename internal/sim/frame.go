package sim

import (
	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Frame is a consistent view of the registry and scene taken at the end of
// a tick. It is what publish sinks and viewers receive.
type Frame struct {
	Tick    uint64      `json:"tick"`
	SimTime float64     `json:"sim_time"`
	Bodies  []BodyState `json:"bodies"`
	Scene   SceneState  `json:"scene"`
}

// BodyState is the rendered subset of a body.
type BodyState struct {
	Name       string      `json:"name"`
	Kind       dynamo.Kind `json:"kind"`
	Position   [2]float64  `json:"position"`
	Velocity   [2]float64  `json:"velocity"`
	Color      [3]int      `json:"color"`
	Radius     float64     `json:"radius"`
	TailLength *float64    `json:"tail_length,omitempty"`
}

type SceneState struct {
	Scale       float64    `json:"scale"`
	Offset      [2]float64 `json:"offset"`
	Paused      bool       `json:"paused"`
	TimeScale   float64    `json:"time_scale"`
	TrackedBody *string    `json:"tracked_body"`
}

// Detail is the full record of one body. Kind-specific fields are set only
// for the kinds that carry them.
type Detail struct {
	Name         string      `json:"name"`
	Kind         dynamo.Kind `json:"kind"`
	Mass         float64     `json:"mass"`
	Position     [2]float64  `json:"position"`
	Velocity     [2]float64  `json:"velocity"`
	Radius       float64     `json:"radius"`
	Color        string      `json:"color"`
	Temperature  *float64    `json:"temperature,omitempty"`
	Atmosphere   *string     `json:"atmosphere,omitempty"`
	Surface      *string     `json:"surface,omitempty"`
	ParentPlanet *string     `json:"parent_planet,omitempty"`
	TailLength   *float64    `json:"tail_length,omitempty"`
	Composition  *string     `json:"composition,omitempty"`
	Mission      *string     `json:"mission,omitempty"`
}

func vec(v r2.Vec) [2]float64 { return [2]float64{v.X, v.Y} }

func NewBodyState(b dynamo.Body) BodyState {
	bs := BodyState{
		Name:     b.Name,
		Kind:     b.Kind,
		Position: vec(b.Position),
		Velocity: vec(b.Velocity),
		Color:    [3]int{int(b.Color.R), int(b.Color.G), int(b.Color.B)},
		Radius:   b.Radius,
	}
	if l, ok := b.TailLength(); ok {
		bs.TailLength = &l
	}
	return bs
}

func NewSceneState(s Scene) SceneState {
	ss := SceneState{
		Scale:     s.Scale,
		Offset:    vec(s.Offset),
		Paused:    s.Paused,
		TimeScale: s.TimeScale,
	}
	if s.Tracked != "" {
		name := s.Tracked
		ss.TrackedBody = &name
	}
	return ss
}

func NewDetail(b dynamo.Body) Detail {
	d := Detail{
		Name:     b.Name,
		Kind:     b.Kind,
		Mass:     b.Mass,
		Position: vec(b.Position),
		Velocity: vec(b.Velocity),
		Radius:   b.Radius,
		Color:    b.Color.Hex(),
	}

	switch det := b.Details.(type) {
	case dynamo.StarDetails:
		d.Temperature = &det.Temperature
	case dynamo.PlanetDetails:
		d.Atmosphere = &det.Atmosphere
		d.Surface = &det.Surface
	case dynamo.MoonDetails:
		d.ParentPlanet = &det.ParentPlanet
	case dynamo.CometDetails:
		d.TailLength = &det.TailLength
	case dynamo.AsteroidDetails:
		d.Composition = &det.Composition
	case dynamo.SpacecraftDetails:
		d.Mission = &det.Mission
	}
	return d
}
