package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/sim"
)

func TestCollectorOnTick(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.OnTick(sim.TickResult{
		Tick:         1,
		SubSteps:     3,
		SimTime:      10800,
		Energy:       -2.6e33,
		Duration:     time.Millisecond,
		TrackingLost: "Ghost",
		Frame:        sim.Frame{Bodies: make([]sim.BodyState, 4)},
	}, nil)
	c.OnTick(sim.TickResult{Tick: 2}, &dynamo.SimulationError{Tick: 2, Wrapped: dynamo.ErrNonFinite})

	if got := testutil.ToFloat64(c.ticks); got != 2 {
		t.Errorf("ticks = %g, want 2", got)
	}
	if got := testutil.ToFloat64(c.substeps); got != 3 {
		t.Errorf("substeps = %g, want 3", got)
	}
	if got := testutil.ToFloat64(c.tickErrors); got != 1 {
		t.Errorf("tick errors = %g, want 1", got)
	}
	if got := testutil.ToFloat64(c.trackingLost); got != 1 {
		t.Errorf("tracking lost = %g, want 1", got)
	}
	if got := testutil.ToFloat64(c.bodies); got != 4 {
		t.Errorf("bodies = %g, want 4", got)
	}
	if got := testutil.ToFloat64(c.simTime); got != 10800 {
		t.Errorf("sim time = %g, want 10800", got)
	}
}

func TestCollectorMutations(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.Mutation("track", nil)
	c.Mutation("track", &dynamo.BodyError{Op: "track", Name: "X", Err: dynamo.ErrNotFound})
	c.Mutation("launch", &dynamo.BodyError{Op: "append", Name: "X", Err: dynamo.ErrDuplicateName})
	c.Mutation("pan", dynamo.Validationf("bad"))
	c.FrameDropped()
	c.SetSubscribers(3)

	if got := testutil.ToFloat64(c.mutations.WithLabelValues("track", "ok")); got != 1 {
		t.Errorf("track ok = %g", got)
	}
	if got := testutil.ToFloat64(c.mutations.WithLabelValues("track", "not_found")); got != 1 {
		t.Errorf("track not_found = %g", got)
	}
	if got := testutil.ToFloat64(c.mutations.WithLabelValues("launch", "duplicate")); got != 1 {
		t.Errorf("launch duplicate = %g", got)
	}
	if got := testutil.ToFloat64(c.dropped); got != 1 {
		t.Errorf("dropped = %g", got)
	}
	if got := testutil.ToFloat64(c.subscribers); got != 3 {
		t.Errorf("subscribers = %g", got)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{dynamo.Validationf("x"), "validation"},
		{dynamo.ErrNotFound, "not_found"},
		{dynamo.ErrDuplicateName, "duplicate"},
		{errors.New("disk full"), "error"},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
