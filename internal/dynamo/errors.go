package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for registry, scene and snapshot operations.
var (
	// ErrValidation indicates malformed input such as a non-finite pan delta.
	ErrValidation = errors.New("dynamo: validation failed")

	// ErrNotFound indicates that a named body is absent from the registry.
	ErrNotFound = errors.New("dynamo: body not found")

	// ErrDuplicateName indicates an insert whose name is already registered.
	ErrDuplicateName = errors.New("dynamo: duplicate body name")

	// ErrSnapshotLoad indicates an unreadable or malformed snapshot.
	ErrSnapshotLoad = errors.New("dynamo: snapshot load failed")

	// ErrUnknownKind indicates a kind tag outside the supported set.
	ErrUnknownKind = errors.New("dynamo: unknown body kind")

	// ErrNonFinite indicates an integration step produced NaN or Inf.
	ErrNonFinite = errors.New("dynamo: non-finite state (NaN or Inf detected)")
)

// BodyError wraps an error with the operation and body it concerns.
type BodyError struct {
	Op   string
	Name string
	Err  error
}

func (e *BodyError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *BodyError) Unwrap() error {
	return e.Err
}

// Validationf builds an error that matches ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// SimulationError wraps an integrator fault with tick context.
type SimulationError struct {
	Tick    uint64
	SubStep int
	Body    string
	Wrapped error
}

func (e *SimulationError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("tick %d substep %d (%s): %v", e.Tick, e.SubStep, e.Body, e.Wrapped)
	}
	return fmt.Sprintf("tick %d substep %d: %v", e.Tick, e.SubStep, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
