// Package metrics holds orbital diagnostics sampled over a run and the
// Prometheus collector for the live engine.
package metrics

import "github.com/san-kum/orbitsim/internal/dynamo"

// Metric accumulates a scalar diagnostic over successive generations.
type Metric interface {
	Name() string
	Observe(g dynamo.Generation, t float64)
	Value() float64
	Reset()
}

// Standard returns the diagnostics recorded for every headless run.
func Standard(sys dynamo.System) []Metric {
	return []Metric{
		NewEnergy(sys),
		NewEnergyDrift(sys),
		NewMomentumDrift(),
		NewMinSeparation(),
		NewStability(DefaultEscapeRadius),
	}
}
