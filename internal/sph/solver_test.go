package sph_test

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/sphsim/internal/compute"
	"github.com/san-kum/sphsim/internal/kernel"
	"github.com/san-kum/sphsim/internal/particles"
	"github.com/san-kum/sphsim/internal/simerr"
	"github.com/san-kum/sphsim/internal/sph"
)

const radius = 0.05

func unitParams() sph.Params {
	p := sph.DefaultParams(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1}, radius, 1000)
	p.Gravity = mgl32.Vec3{}
	return p
}

func storeAt(positions ...mgl32.Vec3) *particles.Store {
	store, err := particles.Allocate(len(positions))
	Expect(err).NotTo(HaveOccurred())
	copy(store.Locations, positions)
	return store
}

// cloud places n^3 jittered particles at the given spacing starting from origin.
func cloud(n int, origin, spacing float32) []mgl32.Vec3 {
	var pos []mgl32.Vec3
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				jitter := float32((i*7+j*3+k*5)%11) * 0.001
				pos = append(pos, mgl32.Vec3{
					origin + float32(i)*spacing + jitter,
					origin + float32(j)*spacing,
					origin + float32(k)*spacing - jitter,
				})
			}
		}
	}
	return pos
}

func finite(v mgl32.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(float64(c)) || math.IsInf(float64(c), 0) {
			return false
		}
	}
	return true
}

var _ = Describe("Solver", func() {
	var params sph.Params

	BeforeEach(func() {
		params = unitParams()
	})

	Describe("construction", func() {
		DescribeTable("rejects degenerate parameters",
			func(mutate func(p *sph.Params), want error) {
				mutate(&params)
				_, err := sph.NewSolver(params, storeAt(mgl32.Vec3{0.5, 0.5, 0.5}), nil)
				Expect(errors.Is(err, want)).To(BeTrue(), "got %v", err)
			},
			Entry("zero-size domain", func(p *sph.Params) { p.DomainEnd[1] = 0 }, simerr.ErrInvalidDomain),
			Entry("inverted domain", func(p *sph.Params) { p.DomainEnd[0] = -1 }, simerr.ErrInvalidDomain),
			Entry("zero kernel radius", func(p *sph.Params) { p.KernelRadius = 0 }, simerr.ErrInvalidKernelRadius),
			Entry("negative time step", func(p *sph.Params) { p.TimeStep = -1 }, simerr.ErrInvalidScene),
			Entry("zero mass", func(p *sph.Params) { p.ParticleMass = 0 }, simerr.ErrInvalidScene),
			Entry("NaN gravity", func(p *sph.Params) { p.Gravity[1] = float32(math.NaN()) }, simerr.ErrInvalidScene),
		)

		It("rejects an empty store", func() {
			_, err := sph.NewSolver(params, nil, nil)
			Expect(err).To(HaveOccurred())
		})

		It("derives mass from the particle lattice", func() {
			Expect(params.KernelRadius).To(BeNumerically("~", 0.2, 1e-7))
			Expect(params.ParticleMass).To(BeNumerically("~", 1.0, 1e-5))
			Expect(params.EOSScale()).To(BeNumerically("~", 1000*1433.0*1433.0/7, 1e3))
		})
	})

	Describe("a single particle at rest", func() {
		var solver *sph.Solver
		var poly6 kernel.Kernel

		BeforeEach(func() {
			poly6 = kernel.NewPoly6(params.KernelRadius)
			params.RestDensity = params.ParticleMass * poly6.Value(0)
			var err error
			solver, err = sph.NewSolver(params, storeAt(mgl32.Vec3{0.5, 0.5, 0.5}), nil)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sees only itself in the density sum and never moves", func() {
			for i := 0; i < 100; i++ {
				solver.Step()
			}
			p := solver.Store().Particle(0)
			Expect(p.Density).To(BeNumerically("~", params.ParticleMass*poly6.Value(0), 1e-3))
			Expect(p.Pressure).To(BeZero())
			Expect(p.Location).To(Equal(mgl32.Vec3{0.5, 0.5, 0.5}))
			Expect(p.Velocity).To(Equal(mgl32.Vec3{}))
			Expect(solver.StepCount()).To(Equal(100))
			Expect(solver.Time()).To(BeNumerically("~", 100*float64(params.TimeStep), 1e-9))
		})
	})

	Describe("two particles half a kernel radius apart", func() {
		var store *particles.Store
		var pairDensity float32

		BeforeEach(func() {
			h := params.KernelRadius
			store = storeAt(mgl32.Vec3{0.5 - h/4, 0.5, 0.5}, mgl32.Vec3{0.5 + h/4, 0.5, 0.5})
			poly6 := kernel.NewPoly6(h)
			pairDensity = params.ParticleMass * (poly6.Value(0) + poly6.Value(h/2))
		})

		It("pushes them apart with equal and opposite forces when compressed", func() {
			params.RestDensity = pairDensity / 2
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			Expect(store.Densities[0]).To(BeNumerically("~", pairDensity, pairDensity*1e-5))
			Expect(store.Pressures[0]).To(BeNumerically(">", 0))

			left, right := store.PressureForces[0], store.PressureForces[1]
			Expect(left.X()).To(BeNumerically("<", 0))
			Expect(right.X()).To(BeNumerically(">", 0))
			Expect(left.Add(right).Len()).To(BeNumerically("<=", 1e-6*left.Len()))
			Expect(left.Y()).To(BeZero())
			Expect(left.Z()).To(BeZero())
		})

		It("accelerates them apart before either reaches a wall", func() {
			params.RestDensity = pairDensity / 2
			params.TimeStep = 1e-7
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			Expect(store.Velocities[0].X()).To(BeNumerically("<", 0))
			Expect(store.Velocities[1].X()).To(BeNumerically(">", 0))
			Expect(store.Locations[0].X()).To(BeNumerically(">", params.DomainStart.X()))
			Expect(store.Locations[1].X()).To(BeNumerically("<", params.DomainEnd.X()))
		})

		It("exerts no pressure force below rest density", func() {
			params.RestDensity = pairDensity * 2
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			Expect(store.Pressures[0]).To(BeZero())
			Expect(store.Pressures[1]).To(BeZero())
			Expect(store.PressureForces[0]).To(Equal(mgl32.Vec3{}))
			Expect(store.PressureForces[1]).To(Equal(mgl32.Vec3{}))
		})

		It("damps relative motion with viscosity", func() {
			params.RestDensity = pairDensity * 2
			params.Viscosity = 0.1
			store.Velocities[0] = mgl32.Vec3{0, 1, 0}
			store.Velocities[1] = mgl32.Vec3{0, -1, 0}
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			top, bottom := store.Forces[0], store.Forces[1]
			Expect(top.Y()).To(BeNumerically("<", 0))
			Expect(bottom.Y()).To(BeNumerically(">", 0))
			Expect(top.Add(bottom).Len()).To(BeNumerically("<=", 1e-6*top.Len()))
			Expect(store.Velocities[0].Y()).To(BeNumerically("<", 1))
		})

		It("leaves a uniformly moving pair undamped", func() {
			params.RestDensity = pairDensity * 2
			params.Viscosity = 0.1
			store.Velocities[0] = mgl32.Vec3{0, 1, 0}
			store.Velocities[1] = mgl32.Vec3{0, 1, 0}
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			Expect(store.Forces[0].Len()).To(BeZero())
			Expect(store.Forces[1].Len()).To(BeZero())
			Expect(store.Velocities[0]).To(Equal(mgl32.Vec3{0, 1, 0}))
		})
	})

	Describe("a compressed cloud", func() {
		var store *particles.Store
		var solver *sph.Solver

		BeforeEach(func() {
			// Spacing below the lattice pitch, so every particle starts compressed.
			store = storeAt(cloud(5, 0.3, 0.06)...)
			var err error
			solver, err = sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()
		})

		It("keeps densities positive and pressures non-negative", func() {
			for i := 0; i < store.Len(); i++ {
				Expect(store.Densities[i]).To(BeNumerically(">", 0))
				Expect(store.Pressures[i]).To(BeNumerically(">=", 0))
			}
		})

		It("conserves momentum across pressure forces", func() {
			var sum mgl32.Vec3
			var total float32
			for _, f := range store.PressureForces {
				sum = sum.Add(f)
				total += f.Len()
			}
			Expect(total).To(BeNumerically(">", 0))
			Expect(sum.Len()).To(BeNumerically("<=", 1e-4*total))
		})

		It("gives the same result on a parallel backend", func() {
			serialStore := storeAt(cloud(8, 0.15, 2*radius)...)
			parallelStore := storeAt(cloud(8, 0.15, 2*radius)...)
			serial, err := sph.NewSolver(params, serialStore, compute.NewSerialBackend())
			Expect(err).NotTo(HaveOccurred())
			parallel, err := sph.NewSolver(params, parallelStore, compute.NewCPUBackend(4))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 5; i++ {
				serial.Step()
				parallel.Step()
			}
			Expect(parallelStore.Locations).To(Equal(serialStore.Locations))
			Expect(parallelStore.Densities).To(Equal(serialStore.Densities))
		})
	})

	Describe("collision with the domain", func() {
		var store *particles.Store

		BeforeEach(func() {
			store = storeAt(mgl32.Vec3{0.5, 0.001, 0.5})
			store.Velocities[0] = mgl32.Vec3{1, -20, 2}
			params.RestDensity = 1e6
			params.TimeStep = 1e-3
		})

		It("reflects every axis by default", func() {
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			Expect(store.Locations[0].Y()).To(Equal(float32(0)))
			Expect(store.Velocities[0].X()).To(BeNumerically("~", -0.5, 1e-6))
			Expect(store.Velocities[0].Y()).To(BeNumerically("~", 10, 1e-5))
			Expect(store.Velocities[0].Z()).To(BeNumerically("~", -1, 1e-6))
		})

		It("reflects only the penetrating axis in per-axis mode", func() {
			params.PerAxisRestitution = true
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			Expect(store.Locations[0].Y()).To(Equal(float32(0)))
			Expect(store.Velocities[0].X()).To(BeNumerically("~", 1, 1e-6))
			Expect(store.Velocities[0].Y()).To(BeNumerically("~", 10, 1e-5))
			Expect(store.Velocities[0].Z()).To(BeNumerically("~", 2, 1e-6))
		})

		It("stops a particle dead on a fully inelastic wall", func() {
			params.Restitution = 0
			solver, err := sph.NewSolver(params, store, nil)
			Expect(err).NotTo(HaveOccurred())
			solver.Step()

			Expect(store.Locations[0].Y()).To(Equal(float32(0)))
			Expect(store.Velocities[0].Len()).To(BeZero())
		})

		It("keeps fast particles inside the box", func() {
			fast := storeAt(
				mgl32.Vec3{0.1, 0.1, 0.1},
				mgl32.Vec3{0.9, 0.9, 0.9},
				mgl32.Vec3{0.5, 0.5, 0.5},
			)
			fast.Velocities[0] = mgl32.Vec3{-300, -300, -300}
			fast.Velocities[1] = mgl32.Vec3{300, 300, 300}
			fast.Velocities[2] = mgl32.Vec3{0, 500, -500}
			solver, err := sph.NewSolver(params, fast, nil)
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 50; i++ {
				solver.Step()
				for _, p := range fast.Locations {
					for a := 0; a < 3; a++ {
						Expect(p[a]).To(BeNumerically(">=", params.DomainStart[a]))
						Expect(p[a]).To(BeNumerically("<=", params.DomainEnd[a]))
					}
				}
			}
		})
	})

	Describe("a cube dropped under gravity", func() {
		var store *particles.Store
		var solver *sph.Solver

		BeforeEach(func() {
			params.Gravity = mgl32.Vec3{0, -9.8, 0}
			block := particles.Block{Start: mgl32.Vec3{0.3, 0.1, 0.3}, CountX: 4, CountY: 4, CountZ: 4}
			var err error
			store, err = particles.Allocate(block.Count())
			Expect(err).NotTo(HaveOccurred())
			Expect(store.InitializeFromFluidBlocks([]particles.Block{block}, radius)).To(Succeed())
			solver, err = sph.NewSolver(params, store, compute.NewCPUBackend(4))
			Expect(err).NotTo(HaveOccurred())
		})

		It("stays finite, above the floor and bounded", func() {
			for step := 0; step < 2000; step++ {
				solver.Step()
			}
			for i := 0; i < store.Len(); i++ {
				Expect(finite(store.Locations[i])).To(BeTrue(), "particle %d location %v", i, store.Locations[i])
				Expect(finite(store.Velocities[i])).To(BeTrue(), "particle %d velocity %v", i, store.Velocities[i])
				Expect(store.Locations[i].Y()).To(BeNumerically(">=", params.DomainStart.Y()))
			}
			stats := solver.Stats()
			Expect(stats.MaxSpeed).To(BeNumerically("<", 100))
			Expect(stats.MinHeight).To(BeNumerically(">=", 0))
			Expect(stats.Step).To(Equal(2000))
		})
	})
})
