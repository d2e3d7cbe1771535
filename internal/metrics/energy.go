package metrics

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// Energy is the mean total energy over all samples.
type Energy struct {
	name        string
	sys         dynamo.System
	samples     int
	totalEnergy float64
}

func NewEnergy(sys dynamo.System) *Energy {
	return &Energy{name: "energy", sys: sys}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(g dynamo.Generation, t float64) {
	h, ok := e.sys.(dynamo.Hamiltonian)
	if !ok {
		return
	}
	e.totalEnergy += h.Energy(g)
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// EnergyDrift is the largest relative deviation from the first sampled energy.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
	sys           dynamo.System
}

func NewEnergyDrift(sys dynamo.System) *EnergyDrift {
	return &EnergyDrift{
		name: "energy_drift",
		sys:  sys,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(g dynamo.Generation, t float64) {
	h, ok := e.sys.(dynamo.Hamiltonian)
	if !ok {
		return
	}

	energy := h.Energy(g)

	if e.samples == 0 {
		e.initialEnergy = energy
	}

	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// MomentumDrift is the largest change in total linear momentum, relative to
// the sum of the bodies' momentum magnitudes at the first sample.
type MomentumDrift struct {
	name     string
	initial  r2.Vec
	norm     float64
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{name: "momentum_drift"}
}

func (m *MomentumDrift) Name() string { return m.name }

func (m *MomentumDrift) Observe(g dynamo.Generation, t float64) {
	var p r2.Vec
	norm := 0.0
	for _, b := range g {
		bp := r2.Scale(b.Mass, b.Velocity)
		p = r2.Add(p, bp)
		norm += math.Sqrt(bp.X*bp.X + bp.Y*bp.Y)
	}

	if m.samples == 0 {
		m.initial = p
		m.norm = norm
	}
	m.samples++

	if m.norm > 0 {
		d := r2.Sub(p, m.initial)
		m.maxDrift = math.Max(m.maxDrift, math.Sqrt(d.X*d.X+d.Y*d.Y)/m.norm)
	}
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() {
	m.initial = r2.Vec{}
	m.norm = 0
	m.maxDrift = 0
	m.samples = 0
}
