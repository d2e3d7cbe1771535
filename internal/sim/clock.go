package sim

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logging"
)

// Clock drives an engine at a fixed wall-clock interval and fans each
// resulting frame out to the registered sinks. Exactly one Run may be
// active at a time.
type Clock struct {
	engine   *Engine
	interval time.Duration
	logger   *log.Logger
	running  atomic.Bool

	mu    sync.RWMutex
	sinks []Sink
}

func NewClock(engine *Engine, interval time.Duration) *Clock {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Clock{
		engine:   engine,
		interval: interval,
		logger:   logging.Discard(),
	}
}

func (c *Clock) SetLogger(l *log.Logger) { c.logger = logging.OrDiscard(l) }

func (c *Clock) AddSink(s Sink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinks = append(c.sinks, s)
}

func (c *Clock) Running() bool { return c.running.Load() }

// Run ticks until ctx is cancelled. Tick errors are logged and the loop
// continues; they never stop the clock.
func (c *Clock) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrClockRunning
	}
	defer c.running.Store(false)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("clock started", "interval", c.interval, "integrator", c.engine.IntegratorName())
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("clock stopped")
			return ctx.Err()
		case <-ticker.C:
			c.Step()
		}
	}
}

// Step performs one tick and publishes its frame.
func (c *Clock) Step() (TickResult, error) {
	res, err := c.engine.Tick()
	if err != nil {
		var simErr *dynamo.SimulationError
		if errors.As(err, &simErr) {
			c.logger.Warn("tick discarded", "tick", simErr.Tick, "err", err)
		} else {
			c.logger.Error("tick failed", "err", err)
		}
	}

	c.mu.RLock()
	sinks := c.sinks
	c.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(res.Frame)
	}

	c.logger.Debug("tick", "n", res.Tick, "substeps", res.SubSteps, "took", res.Duration)
	return res, err
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f Frame)

func (f SinkFunc) Publish(fr Frame) { f(fr) }
