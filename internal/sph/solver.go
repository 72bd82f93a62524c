// Package sph advances a particle store through the SPH step pipeline.
//
// One call to Solver.Step runs eight passes in a fixed order:
//
//  1. rebuild the spatial grid from current locations
//  2. density from poly6 over neighbors, self included
//  3. external force, overwriting last step's forces with m*g
//  4. viscosity (skipped when the coefficient is zero)
//  5. pressure from the Tait equation of state, clamped at zero
//  6. symmetric pressure force from the spiky gradient
//  7. symplectic Euler integration
//  8. collision with the domain box
//
// Each pass finishes for every particle before the next one starts. Within
// a pass particle i writes only its own slots and reads its neighbors'
// values from earlier passes.
//
// Viscosity damps the velocity difference, (v_j - v_i) * mu * m^2 * W''(r) / rho_j,
// not the location difference, so a uniformly moving fluid feels no drag.
// Collision reflects the whole velocity by default whenever any axis leaves
// the box; Params.PerAxisRestitution reflects only the penetrating axes.
package sph

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/compute"
	"github.com/san-kum/sphsim/internal/grid"
	"github.com/san-kum/sphsim/internal/kernel"
	"github.com/san-kum/sphsim/internal/metrics"
	"github.com/san-kum/sphsim/internal/particles"
)

type Solver struct {
	params   Params
	store    *particles.Store
	grid     *grid.Grid
	backend  compute.Backend
	density  kernel.Kernel
	pressure kernel.Kernel
	eosScale float32

	steps int
	time  float64
}

// NewSolver validates params and builds the kernels and grid for them.
// A nil backend runs every pass on the calling goroutine.
func NewSolver(params Params, store *particles.Store, backend compute.Backend) (*Solver, error) {
	params.withDefaults()
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if store == nil || store.Len() == 0 {
		return nil, fmt.Errorf("solver needs a non-empty particle store")
	}
	if backend == nil {
		backend = compute.NewSerialBackend()
	}

	g, err := grid.New(params.DomainStart, params.DomainEnd, params.KernelRadius)
	if err != nil {
		return nil, err
	}
	g.SetParallel(backend.For)

	return &Solver{
		params:   params,
		store:    store,
		grid:     g,
		backend:  backend,
		density:  kernel.NewPoly6(params.KernelRadius),
		pressure: kernel.NewSpiky(params.KernelRadius),
		eosScale: params.EOSScale(),
	}, nil
}

func (s *Solver) Params() Params                { return s.params }
func (s *Solver) Store() *particles.Store       { return s.store }
func (s *Solver) Grid() *grid.Grid              { return s.grid }
func (s *Solver) Backend() compute.Backend      { return s.backend }
func (s *Solver) StepCount() int                { return s.steps }
func (s *Solver) Time() float64                 { return s.time }
func (s *Solver) ExportPositions() []mgl32.Vec3 { return s.store.ExportPositions() }

// Stats summarizes the state left by the last step.
func (s *Solver) Stats() metrics.Stats {
	st := metrics.Compute(s.store, s.params.ParticleMass)
	st.Step = s.steps
	st.Time = s.time
	return st
}

// Step advances the simulation by one time step.
func (s *Solver) Step() {
	s.grid.Rebuild(s.store.Locations, s.store.GridIDs)
	s.computeDensities()
	s.applyExternalForces()
	if s.params.Viscosity != 0 {
		s.applyViscosity()
	}
	s.computePressures()
	s.applyPressureForces()
	s.integrate()
	s.resolveCollisions()

	s.steps++
	s.time += float64(s.params.TimeStep)
}

func (s *Solver) computeDensities() {
	loc := s.store.Locations
	dens := s.store.Densities
	h := s.params.KernelRadius
	m := s.params.ParticleMass

	s.backend.For(len(loc), func(start, end int) {
		for i := start; i < end; i++ {
			xi := loc[i]
			var sum float32
			s.grid.ForEachNeighbor(i, func(_, j int) {
				r := xi.Sub(loc[j]).Len()
				if r < h {
					sum += s.density.Value(r)
				}
			})
			dens[i] = m * sum
		}
	})
}

func (s *Solver) applyExternalForces() {
	forces := s.store.Forces
	f := s.params.Gravity.Mul(s.params.ParticleMass)

	s.backend.For(len(forces), func(start, end int) {
		for i := start; i < end; i++ {
			forces[i] = f
		}
	})
}

func (s *Solver) applyViscosity() {
	loc := s.store.Locations
	vel := s.store.Velocities
	dens := s.store.Densities
	forces := s.store.Forces
	h := s.params.KernelRadius
	m := s.params.ParticleMass
	coef := s.params.Viscosity * m * m

	s.backend.For(len(loc), func(start, end int) {
		for i := start; i < end; i++ {
			xi, vi := loc[i], vel[i]
			var acc mgl32.Vec3
			s.grid.ForEachNeighbor(i, func(_, j int) {
				if j == i {
					return
				}
				r := xi.Sub(loc[j]).Len()
				if r >= h {
					return
				}
				acc = acc.Add(vel[j].Sub(vi).Mul(coef * s.pressure.SecondDerivative(r) / dens[j]))
			})
			forces[i] = forces[i].Add(acc)
		}
	})
}

func (s *Solver) computePressures() {
	dens := s.store.Densities
	press := s.store.Pressures
	rho0 := float64(s.params.RestDensity)
	gamma := float64(s.params.EOSExponent)

	s.backend.For(len(dens), func(start, end int) {
		for i := start; i < end; i++ {
			p := s.eosScale * float32(math.Pow(float64(dens[i])/rho0, gamma)-1)
			if !(p > 0) {
				p = 0
			}
			press[i] = p
		}
	})
}

func (s *Solver) applyPressureForces() {
	loc := s.store.Locations
	dens := s.store.Densities
	press := s.store.Pressures
	forces := s.store.Forces
	pforces := s.store.PressureForces
	h := s.params.KernelRadius
	m2 := s.params.ParticleMass * s.params.ParticleMass

	s.backend.For(len(loc), func(start, end int) {
		for i := start; i < end; i++ {
			xi := loc[i]
			termI := press[i] / (dens[i] * dens[i])
			var pf mgl32.Vec3
			s.grid.ForEachNeighbor(i, func(_, j int) {
				if j == i {
					return
				}
				d := xi.Sub(loc[j])
				r := d.Len()
				if r <= 0 || r >= h {
					return
				}
				coef := m2 * (termI + press[j]/(dens[j]*dens[j]))
				pf = pf.Sub(s.pressure.Gradient(d).Mul(coef))
			})
			pforces[i] = pf
			forces[i] = forces[i].Add(pf)
		}
	})
}

func (s *Solver) integrate() {
	loc := s.store.Locations
	vel := s.store.Velocities
	forces := s.store.Forces
	dt := s.params.TimeStep
	invMass := 1 / s.params.ParticleMass

	s.backend.For(len(loc), func(start, end int) {
		for i := start; i < end; i++ {
			vel[i] = vel[i].Add(forces[i].Mul(dt * invMass))
			loc[i] = loc[i].Add(vel[i].Mul(dt))
		}
	})
}

func (s *Solver) resolveCollisions() {
	loc := s.store.Locations
	vel := s.store.Velocities
	lo, hi := s.params.DomainStart, s.params.DomainEnd
	e := s.params.Restitution
	perAxis := s.params.PerAxisRestitution

	s.backend.For(len(loc), func(start, end int) {
		for i := start; i < end; i++ {
			p := loc[i]
			var hit [3]bool
			out := false
			for a := 0; a < 3; a++ {
				if p[a] < lo[a] {
					p[a] = lo[a]
					hit[a], out = true, true
				} else if p[a] > hi[a] {
					p[a] = hi[a]
					hit[a], out = true, true
				}
			}
			if !out {
				continue
			}
			loc[i] = p
			if !perAxis {
				vel[i] = vel[i].Mul(-e)
				continue
			}
			for a := 0; a < 3; a++ {
				if hit[a] {
					vel[i][a] *= -e
				}
			}
		}
	})
}
