package dynamo

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// Registry is the ordered set of simulated bodies, addressed by name.
// Insertion order is preserved for deterministic iteration and indexed
// selection. Bodies are never removed or reordered.
type Registry struct {
	mu     sync.RWMutex
	bodies []*Body
	index  map[string]int
}

func NewRegistry() *Registry {
	return &Registry{
		bodies: make([]*Body, 0),
		index:  make(map[string]int),
	}
}

// NewRegistryFrom builds a registry from bodies in order. It stops at the
// first invalid or duplicate body.
func NewRegistryFrom(bodies []Body) (*Registry, error) {
	r := NewRegistry()
	for _, b := range bodies {
		if err := r.Append(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Append validates b and adds it at the end of the registry.
func (r *Registry) Append(b Body) error {
	if err := b.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[b.Name]; exists {
		return &BodyError{Op: "append", Name: b.Name, Err: ErrDuplicateName}
	}

	nb := b.clone()
	if nb.trajectory == nil {
		nb.trajectory = NewTrajectory(TrajectoryCapacity)
	}
	r.index[nb.Name] = len(r.bodies)
	r.bodies = append(r.bodies, &nb)
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bodies)
}

// All returns copies of every body in insertion order.
func (r *Registry) All() []Body {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Body, len(r.bodies))
	for i, b := range r.bodies {
		out[i] = b.clone()
	}
	return out
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.bodies))
	for i, b := range r.bodies {
		out[i] = b.Name
	}
	return out
}

// Find returns a copy of the named body.
func (r *Registry) Find(name string) (Body, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Body{}, false
	}
	return r.bodies[i].clone(), true
}

// At returns a copy of the body at insertion index i.
func (r *Registry) At(i int) (Body, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i < 0 || i >= len(r.bodies) {
		return Body{}, false
	}
	return r.bodies[i].clone(), true
}

// Trajectory returns the named body's history, oldest first.
func (r *Registry) Trajectory(name string) ([]r2.Vec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return nil, &BodyError{Op: "trajectory", Name: name, Err: ErrNotFound}
	}
	return r.bodies[i].trajectory.Points(), nil
}

// Generation returns a frozen copy of every body's physical state.
func (r *Registry) Generation() Generation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g := make(Generation, len(r.bodies))
	for i, b := range r.bodies {
		g[i] = Particle{Mass: b.Mass, Position: b.Position, Velocity: b.Velocity}
	}
	return g
}

// Apply swaps in the positions and velocities of g. Only the first len(g)
// bodies are touched, so bodies appended after g was taken keep their
// state. Nothing is written when g is longer than the registry.
func (r *Registry) Apply(g Generation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(g) > len(r.bodies) {
		return fmt.Errorf("apply generation of %d bodies to registry of %d: %w", len(g), len(r.bodies), ErrValidation)
	}
	for i, p := range g {
		r.bodies[i].Position = p.Position
		r.bodies[i].Velocity = p.Velocity
	}
	return nil
}

// RecordTrajectories appends every body's current position to its history.
func (r *Registry) RecordTrajectories() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.bodies {
		b.trajectory.Append(b.Position)
	}
}

// RestoreTrajectory replaces the named body's history, e.g. after loading a
// stored run. Points beyond capacity keep only the newest entries.
func (r *Registry) RestoreTrajectory(name string, points []r2.Vec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[name]
	if !ok {
		return &BodyError{Op: "restore trajectory", Name: name, Err: ErrNotFound}
	}
	t := NewTrajectory(TrajectoryCapacity)
	for _, p := range points {
		t.Append(p)
	}
	r.bodies[i].trajectory = t
	return nil
}
