// Package experiment runs an engine headless for a fixed number of ticks
// and compares integrators on the same initial bodies.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logging"
	"github.com/san-kum/orbitsim/internal/metrics"
	"github.com/san-kum/orbitsim/internal/physics"
	"github.com/san-kum/orbitsim/internal/sim"
)

type Config struct {
	Bodies []dynamo.Body
	Sim    sim.Config
	Ticks  int
}

type Result struct {
	Integrator string             `json:"integrator"`
	Ticks      uint64             `json:"ticks"`
	SimTime    float64            `json:"sim_time"`
	Energy     []float64          `json:"energy"`
	Metrics    map[string]float64 `json:"metrics"`
	Bodies     []dynamo.Body      `json:"-"`
	Duration   time.Duration      `json:"duration"`
}

type Experiment struct {
	cfg     Config
	engine  *sim.Engine
	metrics []metrics.Metric
	logger  *log.Logger
}

// New builds a fresh engine over a copy of cfg.Bodies.
func New(cfg Config) (*Experiment, error) {
	if cfg.Ticks <= 0 {
		return nil, dynamo.Validationf("ticks must be positive, got %d", cfg.Ticks)
	}
	reg, err := dynamo.NewRegistryFrom(cfg.Bodies)
	if err != nil {
		return nil, err
	}
	engine, err := sim.NewEngine(reg, cfg.Sim)
	if err != nil {
		return nil, err
	}

	return &Experiment{
		cfg:     cfg,
		engine:  engine,
		metrics: metrics.Standard(physics.NewGravity()),
		logger:  logging.Discard(),
	}, nil
}

func (e *Experiment) SetLogger(l *log.Logger) {
	e.logger = logging.OrDiscard(l)
	e.engine.SetLogger(l)
}

// Engine returns the underlying engine for adding observers.
func (e *Experiment) Engine() *sim.Engine { return e.engine }

// Run ticks the engine cfg.Ticks times. On a discarded tick or a cancelled
// context it returns the result so far together with the error.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{
		Integrator: e.engine.IntegratorName(),
		Energy:     make([]float64, 0, e.cfg.Ticks),
		Metrics:    make(map[string]float64, len(e.metrics)),
	}

	for _, m := range e.metrics {
		m.Reset()
		m.Observe(e.engine.Generation(), 0)
	}

	var runErr error
	for i := 0; i < e.cfg.Ticks; i++ {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		tr, err := e.engine.Tick()
		if err != nil {
			runErr = err
			break
		}

		g := e.engine.Generation()
		for _, m := range e.metrics {
			m.Observe(g, tr.SimTime)
		}
		res.Energy = append(res.Energy, tr.Energy)
		res.Ticks = tr.Tick
		res.SimTime = tr.SimTime
	}

	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Bodies = e.engine.Bodies()
	res.Duration = time.Since(start)

	e.logger.Info("run finished", "integrator", res.Integrator, "ticks", res.Ticks, "took", res.Duration)
	return res, runErr
}

// Compare runs the same configuration once per integrator, concurrently.
// Results keep the order of names; a failed run leaves its partial result
// in place and its error joined into the returned error.
func Compare(ctx context.Context, cfg Config, names []string, logger *log.Logger) ([]*Result, error) {
	results := make([]*Result, len(names))
	errs := make([]error, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			c := cfg
			c.Sim.Integrator = name
			exp, err := New(c)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, err)
				return
			}
			exp.SetLogger(logger)

			res, err := exp.Run(ctx)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, err)
			}
		}(i, name)
	}
	wg.Wait()

	return results, errors.Join(errs...)
}
