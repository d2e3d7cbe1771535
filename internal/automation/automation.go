// Package automation replays scripted scene mutations against an engine.
package automation

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logging"
	"github.com/san-kum/orbitsim/internal/sim"
	"github.com/san-kum/orbitsim/internal/storage"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Preset      string `yaml:"preset"`
	Integrator  string `yaml:"integrator"`
	Ticks       int    `yaml:"ticks"`
	Steps       []Step `yaml:"steps"`
}

// Step is one mutation applied before tick At is performed. At 0 runs
// before the first tick.
type Step struct {
	At     int     `yaml:"at"`
	Action string  `yaml:"action"`
	Factor float64 `yaml:"factor,omitempty"`
	Dx     float64 `yaml:"dx,omitempty"`
	Dy     float64 `yaml:"dy,omitempty"`
	Body   string  `yaml:"body,omitempty"`
	Path   string  `yaml:"path,omitempty"`
	Launch *Launch `yaml:"launch,omitempty"`
}

type Launch struct {
	Name     string     `yaml:"name"`
	Mass     float64    `yaml:"mass"`
	Position [2]float64 `yaml:"position"`
	Velocity [2]float64 `yaml:"velocity"`
	Radius   float64    `yaml:"radius"`
	Mission  string     `yaml:"mission"`
	Origin   string     `yaml:"origin"`
}

const (
	ActionPause     = "pause"
	ActionTimeScale = "time_scale"
	ActionZoom      = "zoom"
	ActionPan       = "pan"
	ActionTrack     = "track"
	ActionUntrack   = "untrack"
	ActionLaunch    = "launch"
	ActionSave      = "save"
)

// StepError records a step that failed. Failed steps never stop a run.
type StepError struct {
	Index  int
	At     int
	Action string
	Err    error
}

func (e StepError) Error() string {
	return fmt.Sprintf("step %d (%s at tick %d): %v", e.Index+1, e.Action, e.At, e.Err)
}

func (e StepError) Unwrap() error { return e.Err }

type Report struct {
	Scenario string
	Ticks    uint64
	Applied  int
	Errors   []StepError
	Energy   []float64
	Final    sim.Frame
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if s.Ticks <= 0 {
		return dynamo.Validationf("scenario %q: ticks must be positive", s.Name)
	}
	for i, st := range s.Steps {
		if st.At < 0 || st.At > s.Ticks {
			return dynamo.Validationf("scenario %q step %d: at %d outside [0, %d]", s.Name, i+1, st.At, s.Ticks)
		}
	}
	return nil
}

// Run plays the scenario against engine. Step failures are collected in
// the report; only a discarded tick or a cancelled context ends the run
// early.
func Run(ctx context.Context, sc *Scenario, engine *sim.Engine, logger *log.Logger) (*Report, error) {
	logger = logging.OrDiscard(logger)
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	order := make([]int, len(sc.Steps))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sc.Steps[order[a]].At < sc.Steps[order[b]].At })

	rep := &Report{Scenario: sc.Name, Energy: make([]float64, 0, sc.Ticks)}
	next := 0
	for tick := 0; tick <= sc.Ticks; tick++ {
		for next < len(order) && sc.Steps[order[next]].At == tick {
			idx := order[next]
			st := sc.Steps[idx]
			if err := apply(engine, st); err != nil {
				logger.Warn("scenario step failed", "step", idx+1, "action", st.Action, "err", err)
				rep.Errors = append(rep.Errors, StepError{Index: idx, At: st.At, Action: st.Action, Err: err})
			} else {
				rep.Applied++
			}
			next++
		}
		if tick == sc.Ticks {
			break
		}

		if err := ctx.Err(); err != nil {
			rep.Final = engine.Frame()
			return rep, err
		}
		res, err := engine.Tick()
		if err != nil {
			rep.Final = engine.Frame()
			return rep, err
		}
		rep.Ticks = res.Tick
		rep.Energy = append(rep.Energy, res.Energy)
	}

	rep.Final = engine.Frame()
	logger.Info("scenario finished", "name", sc.Name, "ticks", rep.Ticks, "applied", rep.Applied, "failed", len(rep.Errors))
	return rep, nil
}

func apply(engine *sim.Engine, st Step) error {
	switch st.Action {
	case ActionPause:
		engine.TogglePause()
		return nil
	case ActionTimeScale:
		_, err := engine.SetTimeScaleFactor(st.Factor)
		return err
	case ActionZoom:
		_, err := engine.SetZoomFactor(st.Factor)
		return err
	case ActionPan:
		_, err := engine.Pan(st.Dx, st.Dy)
		return err
	case ActionTrack:
		return engine.Track(st.Body)
	case ActionUntrack:
		engine.Untrack()
		return nil
	case ActionLaunch:
		if st.Launch == nil {
			return dynamo.Validationf("launch step needs a launch block")
		}
		l := st.Launch
		_, err := engine.Launch(sim.LaunchRequest{
			Name:     l.Name,
			Mass:     l.Mass,
			Position: r2.Vec{X: l.Position[0], Y: l.Position[1]},
			Velocity: r2.Vec{X: l.Velocity[0], Y: l.Velocity[1]},
			Radius:   l.Radius,
			Mission:  l.Mission,
			Origin:   l.Origin,
		})
		return err
	case ActionSave:
		if st.Path == "" {
			return dynamo.Validationf("save step needs a path")
		}
		return storage.WriteSnapshot(st.Path, engine.Bodies())
	default:
		return dynamo.Validationf("unknown action %q", st.Action)
	}
}
