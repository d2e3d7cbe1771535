package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/sim"
)

// Collector exports engine activity to Prometheus. It is a sim.Observer.
type Collector struct {
	tickDuration prometheus.Histogram
	ticks        prometheus.Counter
	substeps     prometheus.Counter
	tickErrors   prometheus.Counter
	trackingLost prometheus.Counter
	bodies       prometheus.Gauge
	energy       prometheus.Gauge
	simTime      prometheus.Gauge
	mutations    *prometheus.CounterVec
	dropped      prometheus.Counter
	subscribers  prometheus.Gauge
}

// NewCollector creates the orbitsim metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orbitsim_tick_duration_seconds",
			Help:    "Wall time spent in one engine tick",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orbitsim_ticks_total",
			Help: "Engine ticks performed",
		}),
		substeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orbitsim_substeps_total",
			Help: "Integration sub-steps performed",
		}),
		tickErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orbitsim_tick_errors_total",
			Help: "Ticks whose result was discarded",
		}),
		trackingLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orbitsim_tracking_lost_total",
			Help: "Times the tracked body stopped resolving",
		}),
		bodies: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orbitsim_bodies",
			Help: "Bodies in the registry",
		}),
		energy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orbitsim_energy_joules",
			Help: "Total energy after the last tick",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orbitsim_sim_time_seconds",
			Help: "Simulated time elapsed",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orbitsim_mutations_total",
			Help: "Mutation requests by operation and outcome",
		}, []string{"op", "result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orbitsim_frames_dropped_total",
			Help: "Published frames dropped for slow subscribers",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orbitsim_subscribers",
			Help: "Connected frame subscribers",
		}),
	}

	reg.MustRegister(
		c.tickDuration, c.ticks, c.substeps, c.tickErrors, c.trackingLost,
		c.bodies, c.energy, c.simTime, c.mutations, c.dropped, c.subscribers,
	)
	return c
}

func (c *Collector) OnTick(res sim.TickResult, err error) {
	c.ticks.Inc()
	c.tickDuration.Observe(res.Duration.Seconds())
	if err != nil {
		c.tickErrors.Inc()
		return
	}
	c.substeps.Add(float64(res.SubSteps))
	if res.TrackingLost != "" {
		c.trackingLost.Inc()
	}
	c.bodies.Set(float64(len(res.Frame.Bodies)))
	c.energy.Set(res.Energy)
	c.simTime.Set(res.SimTime)
}

// Mutation counts one mutation request by its outcome.
func (c *Collector) Mutation(op string, err error) {
	c.mutations.WithLabelValues(op, Outcome(err)).Inc()
}

func (c *Collector) FrameDropped() { c.dropped.Inc() }

func (c *Collector) SetSubscribers(n int) { c.subscribers.Set(float64(n)) }

// Outcome classifies an error into a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dynamo.ErrValidation):
		return "validation"
	case errors.Is(err, dynamo.ErrNotFound):
		return "not_found"
	case errors.Is(err, dynamo.ErrDuplicateName):
		return "duplicate"
	default:
		return "error"
	}
}
