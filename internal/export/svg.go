package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/san-kum/sphsim/internal/viz"
)

// FrameToSVG draws one frame through cam: the domain box as lines and each
// particle as a circle shaded by height, far particles first.
func FrameToSVG(s viz.Scene, cam *viz.Camera, width, height int, radius float64) string {
	if cam == nil || width <= 0 || height <= 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g stroke="#444466" stroke-width="1">
`, width, height, width, height)

	for _, e := range viz.DomainEdges(s.DomainStart, s.DomainEnd) {
		x1, y1, _, v1 := cam.Project(e[0], width, height)
		x2, y2, _, v2 := cam.Project(e[1], width, height)
		if v1 || v2 {
			fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d"/>
`, x1, y1, x2, y2)
		}
	}
	sb.WriteString("</g>\n<g>\n")

	type dot struct {
		x, y  int
		depth float64
		h     float64
	}
	domainHeight := float64(s.DomainEnd.Y() - s.DomainStart.Y())
	dots := make([]dot, 0, len(s.Positions))
	for _, p := range s.Positions {
		x, y, d, ok := cam.Project(p, width, height)
		if !ok {
			continue
		}
		h := 0.0
		if domainHeight > 0 {
			h = float64(p.Y()-s.DomainStart.Y()) / domainHeight
		}
		dots = append(dots, dot{x, y, d, h})
	}
	sort.Slice(dots, func(i, j int) bool { return dots[i].depth > dots[j].depth })

	for _, d := range dots {
		fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%.1f" fill="%s"/>
`, d.x, d.y, radius, heightColor(d.h))
	}

	sb.WriteString("</g>\n</svg>\n")
	return sb.String()
}

func heightColor(t float64) string {
	t = max(0, min(1, t))
	r := int(40 + t*200)
	g := int(90 + t*160)
	return fmt.Sprintf("#%02x%02x%02x", r, g, 255)
}

// SeriesToSVG draws values against their index as a polyline.
func SeriesToSVG(values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	minY, maxY := values[0], values[0]
	for _, v := range values {
		minY = min(minY, v)
		maxY = max(maxY, v)
	}

	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY
	rangeX := float64(len(values) - 1)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor)

	for i, v := range values {
		x := float64(i) / rangeX * float64(width)
		y := float64(height) - (v-minY)/rangeY*float64(height)

		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>
`)
	return sb.String()
}
