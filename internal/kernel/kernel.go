// Package kernel provides the SPH smoothing kernels used by the solver.
//
// Kernels are immutable values: the normalization constants are derived
// from the smoothing length once, in the constructor. A different smoothing
// length means a different kernel value.
//
//	density := kernel.NewPoly6(h)
//	w := density.Value(r)
//
// All kernels have compact support: every function returns zero for r >= h
// and for negative r.
package kernel

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/simerr"
)

// Epsilon is the distance below which a displacement has no direction.
const Epsilon = 1e-6

type Kernel interface {
	Name() string
	Radius() float32
	Value(r float32) float32
	FirstDerivative(r float32) float32
	SecondDerivative(r float32) float32
	// Gradient returns the analytic gradient W'(|d|) * d/|d|.
	Gradient(d mgl32.Vec3) mgl32.Vec3
}

// New builds a kernel by name ("poly6" or "spiky").
func New(name string, h float32) (Kernel, error) {
	if h <= 0 {
		return nil, fmt.Errorf("%w: got %g", simerr.ErrInvalidKernelRadius, h)
	}
	switch name {
	case "poly6":
		return NewPoly6(h), nil
	case "spiky":
		return NewSpiky(h), nil
	default:
		return nil, fmt.Errorf("unknown kernel: %s", name)
	}
}

func List() []string {
	return []string{"poly6", "spiky"}
}

func gradient(k Kernel, d mgl32.Vec3) mgl32.Vec3 {
	r := d.Len()
	if r < Epsilon {
		return mgl32.Vec3{}
	}
	return d.Mul(k.FirstDerivative(r) / r)
}
