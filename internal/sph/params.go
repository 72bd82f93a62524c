package sph

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/simerr"
)

// Tait equation of state defaults.
const (
	DefaultSoundSpeed  = 1433.0
	DefaultEOSExponent = 7.0
	DefaultRestitution = 0.5
)

// Params are the immutable physical parameters of one simulation.
type Params struct {
	DomainStart    mgl32.Vec3
	DomainEnd      mgl32.Vec3
	ParticleRadius float32
	KernelRadius   float32
	ParticleMass   float32
	RestDensity    float32
	Gravity        mgl32.Vec3
	Viscosity      float32
	TimeStep       float32

	SoundSpeed  float32
	EOSExponent float32

	// Restitution is the fraction of speed kept after hitting a wall.
	// Zero makes the walls fully inelastic.
	Restitution float32
	// PerAxisRestitution reflects only the velocity components along the
	// axes that left the domain. By default all three components are
	// reflected whenever any axis leaves it.
	PerAxisRestitution bool
}

// ParticleMass is the mass of one lattice particle: the rest density times
// the volume of its cube of side 2*radius.
func ParticleMass(radius, restDensity float32) float32 {
	d := 2 * radius
	return restDensity * d * d * d
}

// DefaultParams derives kernel radius and mass from the particle radius.
func DefaultParams(start, end mgl32.Vec3, radius, restDensity float32) Params {
	return Params{
		DomainStart:    start,
		DomainEnd:      end,
		ParticleRadius: radius,
		KernelRadius:   4 * radius,
		ParticleMass:   ParticleMass(radius, restDensity),
		RestDensity:    restDensity,
		Gravity:        mgl32.Vec3{0, -9.8, 0},
		TimeStep:       1e-4,
		SoundSpeed:     DefaultSoundSpeed,
		EOSExponent:    DefaultEOSExponent,
		Restitution:    DefaultRestitution,
	}
}

func (p *Params) withDefaults() {
	if p.SoundSpeed == 0 {
		p.SoundSpeed = DefaultSoundSpeed
	}
	if p.EOSExponent == 0 {
		p.EOSExponent = DefaultEOSExponent
	}
}

// EOSScale is rho0 * c^2 / gamma.
func (p Params) EOSScale() float32 {
	return p.RestDensity * p.SoundSpeed * p.SoundSpeed / p.EOSExponent
}

func (p Params) Validate() error {
	for a := 0; a < 3; a++ {
		if !(p.DomainEnd[a] > p.DomainStart[a]) {
			return fmt.Errorf("%w: axis %d spans [%g, %g]", simerr.ErrInvalidDomain, a, p.DomainStart[a], p.DomainEnd[a])
		}
	}
	if !(p.KernelRadius > 0) {
		return fmt.Errorf("%w: got %g", simerr.ErrInvalidKernelRadius, p.KernelRadius)
	}
	if !(p.TimeStep > 0) {
		return fmt.Errorf("%w: time step must be positive, got %g", simerr.ErrInvalidScene, p.TimeStep)
	}
	if !(p.ParticleMass > 0) {
		return fmt.Errorf("%w: particle mass must be positive, got %g", simerr.ErrInvalidScene, p.ParticleMass)
	}
	if !(p.RestDensity > 0) {
		return fmt.Errorf("%w: rest density must be positive, got %g", simerr.ErrInvalidScene, p.RestDensity)
	}
	if p.Viscosity < 0 {
		return fmt.Errorf("%w: viscosity must be non-negative, got %g", simerr.ErrInvalidScene, p.Viscosity)
	}
	if p.Restitution < 0 || p.Restitution > 1 {
		return fmt.Errorf("%w: restitution must be in [0, 1], got %g", simerr.ErrInvalidScene, p.Restitution)
	}
	for _, v := range []float32{p.Gravity[0], p.Gravity[1], p.Gravity[2], p.SoundSpeed, p.EOSExponent} {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite parameter", simerr.ErrInvalidScene)
		}
	}
	return nil
}
