// Package particles holds the per-particle simulation state as parallel arrays.
package particles

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/simerr"
)

// Particle is a value copy of one particle's state.
type Particle struct {
	ID             int32
	GridID         int32
	Location       mgl32.Vec3
	Velocity       mgl32.Vec3
	Density        float32
	Pressure       float32
	Forces         mgl32.Vec3
	PressureForces mgl32.Vec3
}

// Store keeps a fixed number of particles in structure-of-arrays form.
// Index i of every slice belongs to particle i.
type Store struct {
	IDs            []int32
	GridIDs        []int32
	Locations      []mgl32.Vec3
	Velocities     []mgl32.Vec3
	Densities      []float32
	Pressures      []float32
	Forces         []mgl32.Vec3
	PressureForces []mgl32.Vec3
}

// Block is a rectangular lattice of particles anchored at Start.
type Block struct {
	Start  mgl32.Vec3
	CountX int
	CountY int
	CountZ int
}

func (b Block) Count() int {
	return b.CountX * b.CountY * b.CountZ
}

// BlockFromExtent fits as many particles of the given radius as possible
// into the box [start, end]. Extents that are a whole number of diameters
// up to float32 rounding count as whole.
func BlockFromExtent(start, end mgl32.Vec3, radius float32) Block {
	count := func(a int) int {
		n := int(math.Floor(float64((end[a]-start[a])/(2*radius)) + 1e-4))
		if n < 0 {
			return 0
		}
		return n
	}
	return Block{Start: start, CountX: count(0), CountY: count(1), CountZ: count(2)}
}

// Allocate creates a store for count particles with sequential ids.
func Allocate(count int) (*Store, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: allocate %d", simerr.ErrNoParticles, count)
	}
	s := &Store{
		IDs:            make([]int32, count),
		GridIDs:        make([]int32, count),
		Locations:      make([]mgl32.Vec3, count),
		Velocities:     make([]mgl32.Vec3, count),
		Densities:      make([]float32, count),
		Pressures:      make([]float32, count),
		Forces:         make([]mgl32.Vec3, count),
		PressureForces: make([]mgl32.Vec3, count),
	}
	for i := range s.IDs {
		s.IDs[i] = int32(i)
	}
	return s, nil
}

func (s *Store) Len() int {
	return len(s.IDs)
}

// InitializeFromFluidBlocks lays the blocks out on a lattice of spacing
// 2*radius, one after another, and zeroes all velocities. The blocks must
// hold exactly Len() particles between them.
func (s *Store) InitializeFromFluidBlocks(blocks []Block, radius float32) error {
	total := 0
	for _, b := range blocks {
		total += b.Count()
	}
	if total != s.Len() {
		return fmt.Errorf("%w: blocks hold %d, store has %d", simerr.ErrBlockCountMismatch, total, s.Len())
	}

	idx := 0
	for _, b := range blocks {
		for i := 0; i < b.CountX; i++ {
			for j := 0; j < b.CountY; j++ {
				for k := 0; k < b.CountZ; k++ {
					offset := mgl32.Vec3{float32(2*i + 1), float32(2*j + 1), float32(2*k + 1)}.Mul(radius)
					s.Locations[idx] = b.Start.Add(offset)
					s.Velocities[idx] = mgl32.Vec3{}
					idx++
				}
			}
		}
	}
	return nil
}

// SetLocation moves a single particle.
func (s *Store) SetLocation(id int, p mgl32.Vec3) error {
	if id < 0 || id >= s.Len() {
		return fmt.Errorf("%w: %d not in [0, %d)", simerr.ErrParticleOutOfRange, id, s.Len())
	}
	s.Locations[id] = p
	return nil
}

// ExportPositions returns a copy of all locations, ordered by id.
func (s *Store) ExportPositions() []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(s.Locations))
	copy(out, s.Locations)
	return out
}

func (s *Store) Particle(i int) Particle {
	return Particle{
		ID:             s.IDs[i],
		GridID:         s.GridIDs[i],
		Location:       s.Locations[i],
		Velocity:       s.Velocities[i],
		Density:        s.Densities[i],
		Pressure:       s.Pressures[i],
		Forces:         s.Forces[i],
		PressureForces: s.PressureForces[i],
	}
}
