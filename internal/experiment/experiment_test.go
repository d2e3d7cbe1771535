package experiment

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

func earthMoon(t *testing.T, ticks int) Config {
	t.Helper()
	preset, ok := config.GetPreset("earth-moon")
	if !ok {
		t.Fatal("earth-moon preset missing")
	}
	cfg := sim.DefaultConfig()
	cfg.Dt = 60
	cfg.Track = preset.Track
	return Config{Bodies: preset.Bodies(), Sim: cfg, Ticks: ticks}
}

func TestRun(t *testing.T) {
	exp, err := New(earthMoon(t, 100))
	if err != nil {
		t.Fatal(err)
	}

	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if res.Ticks != 100 || len(res.Energy) != 100 {
		t.Fatalf("ticks = %d, energy samples = %d", res.Ticks, len(res.Energy))
	}
	if res.SimTime != 100*60 {
		t.Errorf("sim time = %v, want 6000", res.SimTime)
	}
	if drift := res.Metrics["energy_drift"]; !(drift < 1e-6) {
		t.Errorf("energy drift = %v", drift)
	}
	if len(res.Bodies) != 2 || len(res.Bodies[0].Trajectory()) != 100 {
		t.Errorf("final bodies = %d", len(res.Bodies))
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero ticks", func(c *Config) { c.Ticks = 0 }},
		{"bad integrator", func(c *Config) { c.Sim.Integrator = "leapfrog" }},
		{"duplicate bodies", func(c *Config) { c.Bodies = append(c.Bodies, c.Bodies[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := earthMoon(t, 10)
			tt.mod(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	exp, err := New(earthMoon(t, 1000))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := exp.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if res.Ticks != 0 || len(res.Bodies) != 2 {
		t.Errorf("partial result = %+v", res)
	}
}

func TestRunStopsOnNonFinite(t *testing.T) {
	exp, err := New(earthMoon(t, 10))
	if err != nil {
		t.Fatal(err)
	}
	exp.Engine().SetSystem(blowUp{})

	res, err := exp.Run(context.Background())
	if !errors.Is(err, dynamo.ErrNonFinite) {
		t.Fatalf("err = %v, want ErrNonFinite", err)
	}
	if res.Ticks != 0 {
		t.Errorf("ticks = %d, want 0", res.Ticks)
	}
}

type blowUp struct{}

func (blowUp) Accel(g dynamo.Generation, i int) r2.Vec {
	return r2.Vec{X: math.NaN()}
}

func TestCompare(t *testing.T) {
	names := integrators.Names()
	results, err := Compare(context.Background(), earthMoon(t, 50), names, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != len(names) {
		t.Fatalf("results = %d, want %d", len(results), len(names))
	}
	for i, res := range results {
		if res.Integrator != names[i] {
			t.Errorf("result %d integrator = %s, want %s", i, res.Integrator, names[i])
		}
		if res.Ticks != 50 {
			t.Errorf("%s ticks = %d", res.Integrator, res.Ticks)
		}
	}
}

func TestCompareUnknownIntegrator(t *testing.T) {
	results, err := Compare(context.Background(), earthMoon(t, 5), []string{"rk4", "nope"}, nil)
	if !errors.Is(err, dynamo.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if results[0] == nil || results[0].Ticks != 5 {
		t.Error("valid run missing")
	}
	if results[1] != nil {
		t.Error("invalid run produced a result")
	}
}
