package metrics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/san-kum/sphsim/internal/particles"
)

func TestCompute(t *testing.T) {
	store, _ := particles.Allocate(2)
	store.Densities[0], store.Densities[1] = 1000, 1200
	store.Pressures[0], store.Pressures[1] = 0, 50
	store.Velocities[0] = mgl32.Vec3{3, 4, 0}
	store.Locations[0] = mgl32.Vec3{0, 0.2, 0}
	store.Locations[1] = mgl32.Vec3{0, 0.4, 0}

	s := Compute(store, 2)

	if s.MaxDensity != 1200 {
		t.Errorf("expected max density 1200, got %f", s.MaxDensity)
	}
	if s.MeanDensity != 1100 {
		t.Errorf("expected mean density 1100, got %f", s.MeanDensity)
	}
	if s.MaxPressure != 50 {
		t.Errorf("expected max pressure 50, got %f", s.MaxPressure)
	}
	if math.Abs(s.KineticEnergy-25) > 1e-6 {
		t.Errorf("expected kinetic energy 25, got %f", s.KineticEnergy)
	}
	if math.Abs(s.MaxSpeed-5) > 1e-6 {
		t.Errorf("expected max speed 5, got %f", s.MaxSpeed)
	}
	if math.Abs(s.MinHeight-0.2) > 1e-6 {
		t.Errorf("expected min height 0.2, got %f", s.MinHeight)
	}
}

func TestMetrics(t *testing.T) {
	frames := []Stats{
		{MaxDensity: 1000, KineticEnergy: 4, MaxSpeed: 1},
		{MaxDensity: 1100, KineticEnergy: 8, MaxSpeed: 2},
		{MaxDensity: 1050, KineticEnergy: 2, MaxSpeed: math.NaN()},
	}

	tests := []struct {
		metric Metric
		want   float64
	}{
		{NewPeakCompression(1000), 1.1},
		{NewMeanKineticEnergy(), 14.0 / 3},
		{NewStability(10), 2.0 / 3},
		{NewSettling(), 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.metric.Name(), func(t *testing.T) {
			for _, f := range frames {
				tt.metric.Observe(f)
			}
			if math.Abs(tt.metric.Value()-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, tt.metric.Value())
			}
			tt.metric.Reset()
			if tt.metric.Name() != "stability" && tt.metric.Value() != 0 {
				t.Errorf("expected 0 after reset, got %f", tt.metric.Value())
			}
		})
	}
}

func TestDefault(t *testing.T) {
	ms := Default(1000, 50)
	if len(ms) != 4 {
		t.Fatalf("expected 4 metrics, got %d", len(ms))
	}
	seen := map[string]bool{}
	for _, m := range ms {
		if seen[m.Name()] {
			t.Errorf("duplicate metric %s", m.Name())
		}
		seen[m.Name()] = true
	}
}
