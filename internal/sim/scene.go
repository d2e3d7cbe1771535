package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Bounds applied whenever the time scale is multiplied.
const (
	MinTimeScale = 0.1
	MaxTimeScale = 50
)

// Scene is the mutable view state shared by the clock and the mutation
// surface.
type Scene struct {
	Scale     float64 // pixels per meter
	Offset    r2.Vec  // pixels
	Center    r2.Vec  // viewport center, pixels
	Tracked   string  // empty when untracked
	Paused    bool
	TimeScale float64
}

func NewScene(cfg Config) Scene {
	return Scene{
		Scale:     cfg.Scale,
		Center:    cfg.Center,
		TimeScale: cfg.TimeScale,
	}
}

// ToScreen maps a world position in meters to pixels.
func (s Scene) ToScreen(p r2.Vec) r2.Vec {
	return r2.Add(r2.Scale(s.Scale, p), s.Offset)
}

// SubSteps is the number of integration steps the next tick performs.
func (s Scene) SubSteps(max int) int {
	if s.Paused {
		return 0
	}
	if max > SubStepCap {
		max = SubStepCap
	}
	n := math.Floor(math.Min(s.TimeScale, float64(max)))
	if !(n > 0) {
		return 0
	}
	return int(n)
}

func (s *Scene) multiplyTimeScale(f float64) {
	s.TimeScale = math.Max(MinTimeScale, math.Min(s.TimeScale*f, MaxTimeScale))
}

// recenter moves the offset so that p lands on the viewport center.
func (s *Scene) recenter(p r2.Vec) {
	s.Offset = r2.Sub(s.Center, r2.Scale(s.Scale, p))
}
