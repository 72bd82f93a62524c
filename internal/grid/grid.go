// Package grid implements the uniform spatial hash used for neighbor search.
//
// The grid covers an axis-aligned domain with cubic cells of one kernel
// radius. It is rebuilt from scratch from a position snapshot with a
// counting sort, so a cell holds its particles in a contiguous run of one
// shared entry slice. Positions outside the domain are clamped into the
// boundary cells, so every particle always lands in exactly one cell.
package grid

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/simerr"
)

// ParallelFunc runs fn over [0, n) in chunks and returns once every chunk is done.
type ParallelFunc func(n int, fn func(start, end int))

func serial(n int, fn func(start, end int)) { fn(0, n) }

type Grid struct {
	start     mgl32.Vec3
	end       mgl32.Vec3
	cellWidth float32
	dims      [3]int

	// CSR layout: particles of cell c are entries[offsets[c]:offsets[c+1]].
	offsets []int32
	entries []int32
	cellOf  []int32

	parallel ParallelFunc
}

// New configures a grid over [start, end] with the given cell width.
// Each axis gets ceil(extent/cellWidth) cells, at least one.
func New(start, end mgl32.Vec3, cellWidth float32) (*Grid, error) {
	if cellWidth <= 0 {
		return nil, fmt.Errorf("%w: cell width %g", simerr.ErrInvalidKernelRadius, cellWidth)
	}
	g := &Grid{start: start, end: end, cellWidth: cellWidth, parallel: serial}
	for a := 0; a < 3; a++ {
		extent := end[a] - start[a]
		if extent <= 0 {
			return nil, fmt.Errorf("%w: axis %d spans [%g, %g]", simerr.ErrInvalidDomain, a, start[a], end[a])
		}
		n := int(math.Ceil(float64(extent / cellWidth)))
		if n < 1 {
			n = 1
		}
		g.dims[a] = n
	}
	g.offsets = make([]int32, g.CellCount()+1)
	return g, nil
}

// SetParallel makes Rebuild compute cell ids with fn instead of a plain loop.
func (g *Grid) SetParallel(fn ParallelFunc) {
	if fn == nil {
		fn = serial
	}
	g.parallel = fn
}

func (g *Grid) Dims() [3]int       { return g.dims }
func (g *Grid) CellCount() int     { return g.dims[0] * g.dims[1] * g.dims[2] }
func (g *Grid) CellWidth() float32 { return g.cellWidth }

func (g *Grid) Bounds() (start, end mgl32.Vec3) {
	return g.start, g.end
}

func (g *Grid) axisCell(p float32, a int) int {
	f := math.Floor(float64((p - g.start[a]) / g.cellWidth))
	if math.IsNaN(f) {
		return 0
	}
	if f >= float64(g.dims[a]) {
		return g.dims[a] - 1
	}
	c := int(f)
	if c < 0 {
		return 0
	}
	if c >= g.dims[a] {
		return g.dims[a] - 1
	}
	return c
}

// Flatten maps cell coordinates to a row-major index x*cy*cz + y*cz + z.
func (g *Grid) Flatten(x, y, z int) int {
	return x*g.dims[1]*g.dims[2] + y*g.dims[2] + z
}

// Coords is the inverse of Flatten.
func (g *Grid) Coords(cell int) (x, y, z int) {
	z = cell % g.dims[2]
	y = (cell / g.dims[2]) % g.dims[1]
	x = cell / (g.dims[1] * g.dims[2])
	return x, y, z
}

// CellOf returns the index of the cell containing p, clamped to the domain.
// NaN coordinates land in cell 0 of their axis.
func (g *Grid) CellOf(p mgl32.Vec3) int {
	return g.Flatten(g.axisCell(p[0], 0), g.axisCell(p[1], 1), g.axisCell(p[2], 2))
}

// Rebuild replaces the grid contents with the given positions and writes
// each particle's cell index into cellIDs, which must have len(positions).
// The previous table stays intact until the new one is complete.
func (g *Grid) Rebuild(positions []mgl32.Vec3, cellIDs []int32) {
	n := len(positions)
	cells := g.CellCount()

	g.parallel(n, func(start, end int) {
		for i := start; i < end; i++ {
			cellIDs[i] = int32(g.CellOf(positions[i]))
		}
	})

	offsets := make([]int32, cells+1)
	for _, c := range cellIDs[:n] {
		offsets[c+1]++
	}
	for c := 0; c < cells; c++ {
		offsets[c+1] += offsets[c]
	}

	entries := make([]int32, n)
	cursor := make([]int32, cells)
	copy(cursor, offsets[:cells])
	for i, c := range cellIDs[:n] {
		entries[cursor[c]] = int32(i)
		cursor[c]++
	}

	cellOf := make([]int32, n)
	copy(cellOf, cellIDs[:n])

	g.offsets = offsets
	g.entries = entries
	g.cellOf = cellOf
}

// Len returns the number of particles indexed by the last rebuild.
func (g *Grid) Len() int { return len(g.entries) }

// Cell returns the particle indices stored in a cell. The slice must not be modified.
func (g *Grid) Cell(cell int) []int32 {
	if cell < 0 || cell >= g.CellCount() {
		return nil
	}
	return g.entries[g.offsets[cell]:g.offsets[cell+1]]
}

// ForEachNeighbor calls visit(i, j) for every particle j in the 27 cells
// around particle i's cell, including i itself. Offsets that fall outside
// the grid are skipped. No distance filtering is applied.
func (g *Grid) ForEachNeighbor(i int, visit func(i, j int)) {
	if i < 0 || i >= len(g.cellOf) {
		return
	}
	cx, cy, cz := g.Coords(int(g.cellOf[i]))
	for dx := -1; dx <= 1; dx++ {
		x := cx + dx
		if x < 0 || x >= g.dims[0] {
			continue
		}
		for dy := -1; dy <= 1; dy++ {
			y := cy + dy
			if y < 0 || y >= g.dims[1] {
				continue
			}
			for dz := -1; dz <= 1; dz++ {
				z := cz + dz
				if z < 0 || z >= g.dims[2] {
					continue
				}
				c := g.Flatten(x, y, z)
				for _, j := range g.entries[g.offsets[c]:g.offsets[c+1]] {
					visit(i, int(j))
				}
			}
		}
	}
}

type Occupancy struct {
	NonEmpty int
	Max      int
}

func (g *Grid) Occupancy() Occupancy {
	var o Occupancy
	for c := 0; c < g.CellCount(); c++ {
		n := int(g.offsets[c+1] - g.offsets[c])
		if n > 0 {
			o.NonEmpty++
		}
		if n > o.Max {
			o.Max = n
		}
	}
	return o
}
