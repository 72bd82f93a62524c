package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/sphsim/internal/metrics"
)

// Field selects one column of the frame statistics.
type Field func(s metrics.Stats) float64

var (
	KineticEnergy Field = func(s metrics.Stats) float64 { return s.KineticEnergy }
	MeanHeight    Field = func(s metrics.Stats) float64 { return s.MeanHeight }
	MaxDensity    Field = func(s metrics.Stats) float64 { return s.MaxDensity }
	MaxPressure   Field = func(s metrics.Stats) float64 { return s.MaxPressure }
	MaxSpeed      Field = func(s metrics.Stats) float64 { return s.MaxSpeed }
)

var Fields = map[string]Field{
	"kinetic_energy": KineticEnergy,
	"mean_height":    MeanHeight,
	"max_density":    MaxDensity,
	"max_pressure":   MaxPressure,
	"max_speed":      MaxSpeed,
}

func Series(stats []metrics.Stats, f Field) []float64 {
	out := make([]float64, len(stats))
	for i, s := range stats {
		out[i] = f(s)
	}
	return out
}

// PowerSpectrum returns the magnitude of the first half of the spectrum of
// data with its mean removed. Bin k is at frequency k*sampleRate/len(data).
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, len(coeffs)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// DominantFrequency returns the non-zero frequency with the most power.
func DominantFrequency(data []float64, sampleRate float64) (freq, power float64) {
	ps := PowerSpectrum(data)
	best := 0
	for k := 1; k < len(ps); k++ {
		if ps[k] > power {
			power = ps[k]
			best = k
		}
	}
	if best == 0 {
		return 0, 0
	}
	return float64(best) * sampleRate / float64(len(data)), power
}

// SettleTime returns the time of the first frame after which kinetic
// energy never again exceeds frac of its peak. ok is false when the run
// ends above that level.
func SettleTime(stats []metrics.Stats, frac float64) (t float64, ok bool) {
	peak := 0.0
	for _, s := range stats {
		if s.KineticEnergy > peak {
			peak = s.KineticEnergy
		}
	}
	if peak == 0 {
		if len(stats) == 0 {
			return 0, false
		}
		return stats[0].Time, true
	}

	threshold := frac * peak
	settled := -1
	for i, s := range stats {
		if s.KineticEnergy > threshold {
			settled = -1
		} else if settled < 0 {
			settled = i
		}
	}
	if settled < 0 {
		return 0, false
	}
	return stats[settled].Time, true
}
