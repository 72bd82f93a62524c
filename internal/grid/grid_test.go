package grid

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/sphsim/internal/simerr"
)

func randomPositions(n int, lo, hi float32, seed int64) []mgl32.Vec3 {
	rng := rand.New(rand.NewSource(seed))
	pos := make([]mgl32.Vec3, n)
	for i := range pos {
		for a := 0; a < 3; a++ {
			pos[i][a] = lo + rng.Float32()*(hi-lo)
		}
	}
	return pos
}

func TestNewDims(t *testing.T) {
	tests := []struct {
		name  string
		end   mgl32.Vec3
		width float32
		dims  [3]int
	}{
		{"exact", mgl32.Vec3{1, 1, 1}, 0.25, [3]int{4, 4, 4}},
		{"ceil", mgl32.Vec3{1, 0.5, 0.3}, 0.2, [3]int{5, 3, 2}},
		{"wider than domain", mgl32.Vec3{0.1, 0.1, 0.1}, 1, [3]int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(mgl32.Vec3{}, tt.end, tt.width)
			require.NoError(t, err)
			assert.Equal(t, tt.dims, g.Dims())
			assert.Equal(t, tt.dims[0]*tt.dims[1]*tt.dims[2], g.CellCount())
		})
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0)
	assert.ErrorIs(t, err, simerr.ErrInvalidKernelRadius)
	_, err = New(mgl32.Vec3{}, mgl32.Vec3{1, 0, 1}, 0.1)
	assert.ErrorIs(t, err, simerr.ErrInvalidDomain)
}

func TestFlattenCoords(t *testing.T) {
	g, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 0.6, 0.4}, 0.2)
	require.NoError(t, err)
	for c := 0; c < g.CellCount(); c++ {
		x, y, z := g.Coords(c)
		assert.Equal(t, c, g.Flatten(x, y, z), "cell %d", c)
	}
	// z varies fastest
	assert.Equal(t, 1, g.Flatten(0, 0, 1))
}

func TestCellOfClamps(t *testing.T) {
	g, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0.25)
	require.NoError(t, err)

	tests := []struct {
		p    mgl32.Vec3
		want [3]int
	}{
		{mgl32.Vec3{0.1, 0.1, 0.1}, [3]int{0, 0, 0}},
		{mgl32.Vec3{-5, 0.3, 2}, [3]int{0, 1, 3}},
		{mgl32.Vec3{1, 1, 1}, [3]int{3, 3, 3}},
		{mgl32.Vec3{0.99, 0.5, 0.26}, [3]int{3, 2, 1}},
	}

	for _, tt := range tests {
		x, y, z := g.Coords(g.CellOf(tt.p))
		assert.Equal(t, tt.want, [3]int{x, y, z}, "position %v", tt.p)
	}
}

func TestRebuildCompleteness(t *testing.T) {
	g, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0.2)
	require.NoError(t, err)
	// Some positions fall outside the domain on purpose.
	pos := randomPositions(500, -0.2, 1.2, 7)
	ids := make([]int32, len(pos))
	g.Rebuild(pos, ids)

	seen := make([]int, len(pos))
	for c := 0; c < g.CellCount(); c++ {
		for _, j := range g.Cell(c) {
			seen[j]++
			assert.Equal(t, c, int(ids[j]), "particle %d cell id", j)
			assert.Equal(t, c, g.CellOf(pos[j]), "particle %d at %v", j, pos[j])
		}
	}
	for i, n := range seen {
		assert.Equal(t, 1, n, "particle %d appearances", i)
	}
	assert.Equal(t, len(pos), g.Len())
}

func TestForEachNeighborSoundness(t *testing.T) {
	const h = 0.2

	tests := []struct {
		name   string
		lo, hi float32
	}{
		{"inside domain", 0, 1},
		{"clamped from outside", -0.3, 1.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, h)
			require.NoError(t, err)
			pos := randomPositions(400, tt.lo, tt.hi, 11)
			ids := make([]int32, len(pos))
			g.Rebuild(pos, ids)

			for i := range pos {
				ix, iy, iz := g.Coords(int(ids[i]))
				visited := make(map[int]bool)
				g.ForEachNeighbor(i, func(a, j int) {
					require.Equal(t, i, a)
					assert.False(t, visited[j], "particle %d visited twice from %d", j, i)
					visited[j] = true

					jx, jy, jz := g.Coords(int(ids[j]))
					assert.LessOrEqual(t, absInt(jx-ix), 1, "particle %d too far from %d on x", j, i)
					assert.LessOrEqual(t, absInt(jy-iy), 1, "particle %d too far from %d on y", j, i)
					assert.LessOrEqual(t, absInt(jz-iz), 1, "particle %d too far from %d on z", j, i)
				})

				assert.True(t, visited[i], "particle %d does not see itself", i)
				for j := range pos {
					if pos[i].Sub(pos[j]).Len() < h {
						assert.True(t, visited[j], "particle %d within h of %d but not visited", j, i)
					}
				}
			}
		})
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestRebuildParallelMatchesSerial(t *testing.T) {
	pos := randomPositions(1000, 0, 1, 3)

	serialGrid, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0.1)
	require.NoError(t, err)
	serialIDs := make([]int32, len(pos))
	serialGrid.Rebuild(pos, serialIDs)

	parallelGrid, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0.1)
	require.NoError(t, err)
	parallelGrid.SetParallel(func(n int, fn func(start, end int)) {
		mid := n / 2
		done := make(chan struct{})
		go func() {
			fn(0, mid)
			close(done)
		}()
		fn(mid, n)
		<-done
	})
	parallelIDs := make([]int32, len(pos))
	parallelGrid.Rebuild(pos, parallelIDs)

	require.Equal(t, serialIDs, parallelIDs)
	for c := 0; c < serialGrid.CellCount(); c++ {
		require.Equal(t, serialGrid.Cell(c), parallelGrid.Cell(c), "cell %d", c)
	}
}

func TestRebuildReplacesContents(t *testing.T) {
	g, err := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0.5)
	require.NoError(t, err)
	ids := make([]int32, 1)

	g.Rebuild([]mgl32.Vec3{{0.1, 0.1, 0.1}}, ids)
	first := ids[0]
	g.Rebuild([]mgl32.Vec3{{0.9, 0.9, 0.9}}, ids)

	require.NotEqual(t, first, ids[0], "expected particle to move cells")
	assert.Empty(t, g.Cell(int(first)))
	occ := g.Occupancy()
	assert.Equal(t, 1, occ.NonEmpty)
	assert.Equal(t, 1, occ.Max)
}

func BenchmarkRebuild(b *testing.B) {
	g, _ := New(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}, 0.05)
	pos := randomPositions(20000, 0, 1, 1)
	ids := make([]int32, len(pos))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Rebuild(pos, ids)
	}
}
