package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// SubStepCap is the hard upper bound on integration sub-steps per tick. It
// applies regardless of the stored time scale.
const SubStepCap = 50

// ErrClockRunning is returned when a second Run is attempted on a clock.
var ErrClockRunning = errors.New("sim: clock already running")

// Config holds the engine's physical and view parameters.
type Config struct {
	Dt          float64 // seconds per sub-step
	MaxSubSteps int
	Center      r2.Vec // viewport center, pixels
	Scale       float64
	TimeScale   float64
	Track       string
	Integrator  string
}

func DefaultConfig() Config {
	return Config{
		Dt:          3600,
		MaxSubSteps: SubStepCap,
		Center:      r2.Vec{X: 960, Y: 480},
		Scale:       250 / 1.496e11,
		TimeScale:   1,
		Track:       "Sun",
		Integrator:  "rk4",
	}
}

func (c Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return dynamo.Validationf("dt must be positive and finite, got %g", c.Dt)
	}
	if c.MaxSubSteps < 1 || c.MaxSubSteps > SubStepCap {
		return dynamo.Validationf("max substeps must be in [1, %d], got %d", SubStepCap, c.MaxSubSteps)
	}
	if !(c.Scale > 0) || math.IsInf(c.Scale, 0) {
		return dynamo.Validationf("scale must be positive and finite, got %g", c.Scale)
	}
	if !(c.TimeScale >= MinTimeScale && c.TimeScale <= MaxTimeScale) {
		return dynamo.Validationf("time scale must be in [%g, %d], got %g", MinTimeScale, MaxTimeScale, c.TimeScale)
	}
	if !dynamo.Finite(c.Center) {
		return dynamo.Validationf("viewport center must be finite")
	}
	return nil
}

// TickResult describes one completed tick.
type TickResult struct {
	Tick     uint64
	SubSteps int
	SimTime  float64 // simulated seconds since start
	Energy   float64
	Duration time.Duration

	// TrackingLost names a tracked body that disappeared during this tick.
	TrackingLost string

	Frame Frame
}

// Observer is notified after every tick, outside the engine lock.
type Observer interface {
	OnTick(res TickResult, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(res TickResult, err error)

func (f ObserverFunc) OnTick(res TickResult, err error) { f(res, err) }

// Sink receives a published frame after each clock tick. Publish must not
// block; slow consumers drop frames.
type Sink interface {
	Publish(f Frame)
}

// LaunchRequest describes a spacecraft to inject. When Origin is set the
// craft is placed just above that body and Position is ignored.
type LaunchRequest struct {
	Name     string
	Mass     float64
	Position r2.Vec
	Velocity r2.Vec
	Radius   float64
	Mission  string
	Origin   string
}

// LaunchClearance is the altitude above the origin body's surface at which
// a launched craft is placed, in meters.
const LaunchClearance = 10000

// Aspect selects what Study reports about a planet.
type Aspect string

const (
	AspectAtmosphere Aspect = "atmosphere"
	AspectSurface    Aspect = "surface"
)

func ParseAspect(s string) (Aspect, error) {
	switch Aspect(s) {
	case AspectAtmosphere, AspectSurface:
		return Aspect(s), nil
	}
	return "", fmt.Errorf("unknown study aspect %q: %w", s, dynamo.ErrValidation)
}

// StudyResult is a planet's recorded atmosphere or surface.
type StudyResult struct {
	Body    string
	Aspect  Aspect
	Value   string
	Present bool
}
