package integrators

import (
	"fmt"
	"sort"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// Default is the integrator used when none is configured.
const Default = "rk4"

var registry = map[string]func() dynamo.Integrator{
	"rk4":         func() dynamo.Integrator { return NewRK4() },
	"rk4-coupled": func() dynamo.Integrator { return NewCoupledRK4() },
	"euler":       func() dynamo.Integrator { return NewEuler() },
	"verlet":      func() dynamo.Integrator { return NewVerlet() },
}

// ByName returns a fresh integrator. Integrators hold scratch buffers and
// must not be shared between engines.
func ByName(name string) (dynamo.Integrator, error) {
	if name == "" {
		name = Default
	}
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s: %w", name, dynamo.ErrValidation)
	}
	return factory(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
