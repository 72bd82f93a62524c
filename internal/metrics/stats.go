package metrics

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/sphsim/internal/particles"
)

// Stats summarizes the particle state after a step.
type Stats struct {
	Frame         int     `csv:"frame"`
	Step          int     `csv:"step"`
	Time          float64 `csv:"time"`
	MaxDensity    float64 `csv:"max_density"`
	MeanDensity   float64 `csv:"mean_density"`
	DensityStd    float64 `csv:"density_std"`
	MaxPressure   float64 `csv:"max_pressure"`
	KineticEnergy float64 `csv:"kinetic_energy"`
	MaxSpeed      float64 `csv:"max_speed"`
	MinHeight     float64 `csv:"min_height"`
	MeanHeight    float64 `csv:"mean_height"`
}

// Compute gathers Stats from the store. Height is the y coordinate.
func Compute(store *particles.Store, mass float32) Stats {
	n := store.Len()
	if n == 0 {
		return Stats{}
	}

	dens := make([]float64, n)
	press := make([]float64, n)
	speeds := make([]float64, n)
	heights := make([]float64, n)
	for i := 0; i < n; i++ {
		dens[i] = float64(store.Densities[i])
		press[i] = float64(store.Pressures[i])
		speeds[i] = float64(store.Velocities[i].Len())
		heights[i] = float64(store.Locations[i][1])
	}

	mean, std := stat.MeanStdDev(dens, nil)
	return Stats{
		MaxDensity:    floats.Max(dens),
		MeanDensity:   mean,
		DensityStd:    std,
		MaxPressure:   floats.Max(press),
		KineticEnergy: 0.5 * float64(mass) * floats.Dot(speeds, speeds),
		MaxSpeed:      floats.Max(speeds),
		MinHeight:     floats.Min(heights),
		MeanHeight:    stat.Mean(heights, nil),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s Stats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("frame", s.Frame),
		slog.Int("step", s.Step),
		slog.Float64("time", s.Time),
		slog.Float64("max_density", s.MaxDensity),
		slog.Float64("mean_density", s.MeanDensity),
		slog.Float64("max_pressure", s.MaxPressure),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("max_speed", s.MaxSpeed),
		slog.Float64("min_height", s.MinHeight),
	)
}
