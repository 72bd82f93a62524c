package simerr

import (
	"errors"
	"fmt"
)

// Domain errors for scene construction and stepping.
var (
	// ErrInvalidScene indicates a scene that cannot be turned into a simulation.
	ErrInvalidScene = errors.New("sphsim: invalid scene")

	// ErrInvalidDomain indicates a domain with zero or negative extent on some axis.
	ErrInvalidDomain = errors.New("sphsim: domain must have positive extent on every axis")

	// ErrInvalidKernelRadius indicates a non-positive smoothing length.
	ErrInvalidKernelRadius = errors.New("sphsim: kernel radius must be positive")

	// ErrNoParticles indicates a scene whose fluid blocks hold no particles.
	ErrNoParticles = errors.New("sphsim: scene has no particles")

	// ErrBlockCountMismatch indicates fluid blocks that do not fill the allocated store exactly.
	ErrBlockCountMismatch = errors.New("sphsim: fluid block counts do not match particle count")

	// ErrParticleOutOfRange indicates a particle id outside [0, N).
	ErrParticleOutOfRange = errors.New("sphsim: particle id out of range")

	// ErrUnstable indicates the simulation produced non-finite positions.
	ErrUnstable = errors.New("sphsim: simulation unstable (NaN or Inf detected)")

	// ErrRunNotFound indicates a stored run that does not exist.
	ErrRunNotFound = errors.New("sphsim: run not found")
)

// SimulationError wraps an error with the step at which it occurred.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.5f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
