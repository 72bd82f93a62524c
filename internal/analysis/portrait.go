package analysis

import (
	"strings"

	"github.com/san-kum/sphsim/internal/metrics"
)

// Portrait2D pairs two statistics frame by frame.
type Portrait2D struct {
	Points []struct{ X, Y float64 }
}

func NewPortrait(stats []metrics.Stats, x, y Field) *Portrait2D {
	p := &Portrait2D{Points: make([]struct{ X, Y float64 }, len(stats))}
	for i, s := range stats {
		p.Points[i].X = x(s)
		p.Points[i].Y = y(s)
	}
	return p
}

func (portrait *Portrait2D) ASCII(width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := portrait.Points[0].X, portrait.Points[0].X
	minY, maxY := portrait.Points[0].Y, portrait.Points[0].Y

	for _, p := range portrait.Points {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	minY -= rangeY * 0.05
	rangeX *= 1.1
	rangeY *= 1.1

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}

	// Later frames overwrite earlier ones; the last frame is marked.
	for i, p := range portrait.Points {
		col := int((p.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((p.Y-minY)/rangeY*float64(height-1))

		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
			if i == len(portrait.Points)-1 {
				canvas[row][col] = '◆'
			}
		}
	}

	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
