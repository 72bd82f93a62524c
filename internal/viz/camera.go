package viz

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera orbits the center of the simulation domain. Yaw turns around the
// world up axis (Y) and Pitch tilts toward the floor.
type Camera struct {
	Center   mgl32.Vec3
	Extent   float32
	Yaw      float64
	Pitch    float64
	Zoom     float64
	Distance float64
}

func NewCamera(start, end mgl32.Vec3) *Camera {
	size := end.Sub(start)
	extent := max(size.X(), size.Y(), size.Z())
	if extent <= 0 {
		extent = 1
	}
	return &Camera{
		Center:   start.Add(end).Mul(0.5),
		Extent:   extent,
		Yaw:      math.Pi / 6,
		Pitch:    0.35,
		Zoom:     1.0,
		Distance: 3.0,
	}
}

func (c *Camera) Orbit(dYaw, dPitch float64) {
	c.Yaw += dYaw
	c.Pitch = math.Max(-math.Pi/2, math.Min(math.Pi/2, c.Pitch+dPitch))
}

func (c *Camera) ZoomIn()  { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.1, c.Zoom/1.2) }

// view maps a world point into camera space, normalized so the domain
// spans roughly [-0.5, 0.5].
func (c *Camera) view(p mgl32.Vec3) (x, y, z float64) {
	d := p.Sub(c.Center).Mul(1 / c.Extent)
	x, y, z = float64(d.X()), float64(d.Y()), float64(d.Z())

	cy, sy := math.Cos(c.Yaw), math.Sin(c.Yaw)
	x, z = x*cy-z*sy, x*sy+z*cy
	cp, sp := math.Cos(c.Pitch), math.Sin(c.Pitch)
	y, z = y*cp-z*sp, y*sp+z*cp
	return x, y, z
}

// Project converts a world point to dot coordinates on a w x h surface.
// depth grows away from the viewer.
func (c *Camera) Project(p mgl32.Vec3, w, h int) (sx, sy int, depth float64, visible bool) {
	x, y, z := c.view(p)
	denom := c.Distance + z
	if denom <= 0.1 {
		return 0, 0, 0, false
	}
	scale := c.Distance / denom * c.Zoom * float64(min(w, h)) * 0.55
	sx = int(x*scale) + w/2
	sy = int(-y*scale) + h/2
	return sx, sy, z, sx >= 0 && sx < w && sy >= 0 && sy < h
}

// DomainEdges returns the twelve edges of the axis-aligned box.
func DomainEdges(start, end mgl32.Vec3) [][2]mgl32.Vec3 {
	v := [8]mgl32.Vec3{}
	for i := range v {
		v[i] = start
		if i&1 != 0 {
			v[i][0] = end[0]
		}
		if i&2 != 0 {
			v[i][1] = end[1]
		}
		if i&4 != 0 {
			v[i][2] = end[2]
		}
	}
	pairs := [12][2]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}, {0, 2}, {1, 3}, {4, 6}, {5, 7}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}
	edges := make([][2]mgl32.Vec3, len(pairs))
	for i, p := range pairs {
		edges[i] = [2]mgl32.Vec3{v[p[0]], v[p[1]]}
	}
	return edges
}

// Scene is what the renderer draws each frame: the domain box and the
// particle positions.
type Scene struct {
	DomainStart, DomainEnd mgl32.Vec3
	Positions              []mgl32.Vec3
}

// Render draws the domain wireframe and the particles.
func Render(c *Canvas, s Scene, cam *Camera) {
	if c == nil || cam == nil {
		return
	}
	w, h := c.DotWidth(), c.DotHeight()

	for _, e := range DomainEdges(s.DomainStart, s.DomainEnd) {
		x1, y1, _, v1 := cam.Project(e[0], w, h)
		x2, y2, _, v2 := cam.Project(e[1], w, h)
		if v1 || v2 {
			c.DrawLine(x1, y1, x2, y2)
		}
	}

	for _, p := range s.Positions {
		if x, y, _, ok := cam.Project(p, w, h); ok {
			c.Set(x, y)
		}
	}
}
