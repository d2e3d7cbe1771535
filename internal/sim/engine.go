package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/logging"
	"github.com/san-kum/orbitsim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

// Engine owns the body registry and the scene. Every tick and every
// mutation runs under one mutex, so a mutation never observes a half
// finished tick and a body injected during a tick joins the next one.
type Engine struct {
	mu      sync.Mutex
	reg     *dynamo.Registry
	scene   Scene
	sys     dynamo.System
	integ   dynamo.Integrator
	cfg     Config
	tick    uint64
	simTime float64

	logger    *log.Logger
	obsMu     sync.RWMutex
	observers []Observer
}

// NewEngine wires a registry to gravity and the configured integrator. If
// cfg.Track names a body that is absent, the engine starts untracked.
func NewEngine(reg *dynamo.Registry, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	integ, err := integrators.ByName(cfg.Integrator)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		reg = dynamo.NewRegistry()
	}

	e := &Engine{
		reg:    reg,
		scene:  NewScene(cfg),
		sys:    physics.NewGravity(),
		integ:  integ,
		cfg:    cfg,
		logger: logging.Discard(),
	}
	if cfg.Track != "" {
		if b, ok := reg.Find(cfg.Track); ok {
			e.scene.Tracked = b.Name
			e.scene.recenter(b.Position)
		}
	}
	return e, nil
}

func (e *Engine) SetLogger(l *log.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logging.OrDiscard(l)
}

// SetSystem replaces the force model. Used by tests and experiments.
func (e *Engine) SetSystem(sys dynamo.System) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sys = sys
}

func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) IntegratorName() string { return e.integ.Name() }

// Tick advances the simulation by floor(min(time scale, max substeps))
// fixed steps, appends one trajectory point per body, and recenters on the
// tracked body. A paused tick performs no integration but still recenters.
//
// All sub-steps integrate a private generation taken at tick start; the
// registry is updated once at the end. A non-finite result is discarded and
// reported as a *dynamo.SimulationError.
func (e *Engine) Tick() (TickResult, error) {
	res, err := e.tickLocked()

	e.obsMu.RLock()
	obs := e.observers
	e.obsMu.RUnlock()
	for _, o := range obs {
		o.OnTick(res, err)
	}
	return res, err
}

func (e *Engine) tickLocked() (TickResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	e.tick++
	res := TickResult{Tick: e.tick}

	steps := e.scene.SubSteps(e.cfg.MaxSubSteps)
	if steps > 0 {
		g := e.reg.Generation()
		for s := 0; s < steps; s++ {
			g = e.integ.Step(e.sys, g, e.cfg.Dt)
			if i := g.FirstInvalid(); i >= 0 {
				body, _ := e.reg.At(i)
				e.logger.Error("integration produced non-finite state", "tick", e.tick, "substep", s, "body", body.Name)
				res.SimTime = e.simTime
				res.Duration = time.Since(start)
				res.Frame = e.frameLocked()
				return res, &dynamo.SimulationError{Tick: e.tick, SubStep: s, Body: body.Name, Wrapped: dynamo.ErrNonFinite}
			}
		}
		if err := e.reg.Apply(g); err != nil {
			return res, err
		}
		e.reg.RecordTrajectories()
		e.simTime += float64(steps) * e.cfg.Dt
	}
	res.SubSteps = steps

	if lost := e.followLocked(); lost != "" {
		res.TrackingLost = lost
	}

	if h, ok := e.sys.(dynamo.Hamiltonian); ok {
		res.Energy = h.Energy(e.reg.Generation())
	}
	res.SimTime = e.simTime
	res.Duration = time.Since(start)
	res.Frame = e.frameLocked()
	return res, nil
}

// followLocked recenters on the tracked body. It clears tracking and
// returns the lost name when the body no longer resolves.
func (e *Engine) followLocked() string {
	name := e.scene.Tracked
	if name == "" {
		return ""
	}
	b, ok := e.reg.Find(name)
	if !ok {
		e.logger.Warn("tracked body not found, tracking cleared", "body", name)
		e.scene.Tracked = ""
		return name
	}
	e.scene.recenter(b.Position)
	return ""
}

func (e *Engine) frameLocked() Frame {
	bodies := e.reg.All()
	f := Frame{
		Tick:    e.tick,
		SimTime: e.simTime,
		Bodies:  make([]BodyState, len(bodies)),
		Scene:   NewSceneState(e.scene),
	}
	for i, b := range bodies {
		f.Bodies[i] = NewBodyState(b)
	}
	return f
}

// Frame returns the current bodies and scene as one consistent view.
func (e *Engine) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frameLocked()
}

// Bodies returns copies of every body, trajectories included.
func (e *Engine) Bodies() []dynamo.Body {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.All()
}

// Generation returns the physical state of every body.
func (e *Engine) Generation() dynamo.Generation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Generation()
}

func (e *Engine) Body(name string) (dynamo.Body, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.reg.Find(name)
	if !ok {
		return dynamo.Body{}, &dynamo.BodyError{Op: "find", Name: name, Err: dynamo.ErrNotFound}
	}
	return b, nil
}

func (e *Engine) Detail(name string) (Detail, error) {
	b, err := e.Body(name)
	if err != nil {
		return Detail{}, err
	}
	return NewDetail(b), nil
}

func (e *Engine) Trajectory(name string) ([]r2.Vec, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Trajectory(name)
}

func (e *Engine) Scene() Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scene
}

// SimTime returns the tick count and simulated seconds elapsed.
func (e *Engine) SimTime() (uint64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick, e.simTime
}

func (e *Engine) TogglePause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scene.Paused = !e.scene.Paused
	e.logger.Info("pause toggled", "paused", e.scene.Paused)
	return e.scene.Paused
}

// SetTimeScaleFactor multiplies the time scale and clamps it to
// [MinTimeScale, MaxTimeScale].
func (e *Engine) SetTimeScaleFactor(factor float64) (float64, error) {
	if err := checkFactor("time scale", factor); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.scene.multiplyTimeScale(factor)
	e.logger.Info("time scale adjusted", "time_scale", e.scene.TimeScale)
	return e.scene.TimeScale, nil
}

// SetZoomFactor multiplies the scale. No bounds apply.
func (e *Engine) SetZoomFactor(factor float64) (float64, error) {
	if err := checkFactor("zoom", factor); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.scene.Scale *= factor
	e.followLocked()
	e.logger.Info("zoom adjusted", "scale", e.scene.Scale)
	return e.scene.Scale, nil
}

func (e *Engine) Pan(dx, dy float64) (r2.Vec, error) {
	d := r2.Vec{X: dx, Y: dy}
	if !dynamo.Finite(d) {
		return r2.Vec{}, dynamo.Validationf("pan delta must be finite, got (%g, %g)", dx, dy)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.scene.Offset = r2.Add(e.scene.Offset, d)
	e.logger.Debug("panned", "offset", e.scene.Offset)
	return e.scene.Offset, nil
}

// Track makes the scene follow name and recenters on it immediately.
func (e *Engine) Track(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	b, ok := e.reg.Find(name)
	if !ok {
		return &dynamo.BodyError{Op: "track", Name: name, Err: dynamo.ErrNotFound}
	}
	e.scene.Tracked = b.Name
	e.scene.recenter(b.Position)
	e.logger.Info("tracking", "body", name)
	return nil
}

func (e *Engine) Untrack() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.scene.Tracked = ""
	e.logger.Info("tracking disabled")
}

// Launch injects a spacecraft. It takes effect from the next tick.
func (e *Engine) Launch(req LaunchRequest) (dynamo.Body, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := req.Position
	if req.Origin != "" {
		origin, ok := e.reg.Find(req.Origin)
		if !ok {
			origin, ok = e.reg.At(0)
			if !ok {
				return dynamo.Body{}, &dynamo.BodyError{Op: "launch", Name: req.Origin, Err: dynamo.ErrNotFound}
			}
			e.logger.Warn("launch origin not found, using first body", "origin", req.Origin, "fallback", origin.Name)
		}
		pos = r2.Add(origin.Position, r2.Vec{Y: origin.Radius + LaunchClearance})
	}

	craft := dynamo.Body{
		Name:     req.Name,
		Kind:     dynamo.KindSpacecraft,
		Mass:     req.Mass,
		Position: pos,
		Velocity: req.Velocity,
		Radius:   req.Radius,
		Color:    dynamo.White,
		Details:  dynamo.SpacecraftDetails{Mission: req.Mission},
	}
	if err := e.reg.Append(craft); err != nil {
		return dynamo.Body{}, err
	}

	e.logger.Info("launched spacecraft", "name", req.Name, "mission", req.Mission)
	b, _ := e.reg.Find(req.Name)
	return b, nil
}

// Study reports a planet's atmosphere or surface. Bodies that are not
// planets are treated as absent.
func (e *Engine) Study(name string, aspect Aspect) (StudyResult, error) {
	if _, err := ParseAspect(string(aspect)); err != nil {
		return StudyResult{}, err
	}

	b, err := e.Body(name)
	if err != nil {
		return StudyResult{}, err
	}
	planet, ok := b.Details.(dynamo.PlanetDetails)
	if !ok {
		return StudyResult{}, &dynamo.BodyError{Op: "study", Name: name, Err: fmt.Errorf("not a planet: %w", dynamo.ErrNotFound)}
	}

	res := StudyResult{Body: b.Name, Aspect: aspect}
	switch aspect {
	case AspectAtmosphere:
		res.Value = planet.Atmosphere
	case AspectSurface:
		res.Value = planet.Surface
	}
	res.Present = res.Value != ""
	return res, nil
}

func checkFactor(what string, f float64) error {
	if !(f > 0) || math.IsInf(f, 0) {
		return dynamo.Validationf("%s factor must be positive and finite, got %g", what, f)
	}
	return nil
}
