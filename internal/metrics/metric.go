package metrics

import "math"

// Metric folds per-frame Stats into a single run summary value.
type Metric interface {
	Name() string
	Observe(s Stats)
	Value() float64
	Reset()
}

func Default(restDensity, speedLimit float64) []Metric {
	return []Metric{
		NewPeakCompression(restDensity),
		NewMeanKineticEnergy(),
		NewStability(speedLimit),
		NewSettling(),
	}
}

// PeakCompression is the largest max_density / rest_density seen.
type PeakCompression struct {
	restDensity float64
	peak        float64
}

func NewPeakCompression(restDensity float64) *PeakCompression {
	return &PeakCompression{restDensity: restDensity}
}

func (p *PeakCompression) Name() string { return "peak_compression" }

func (p *PeakCompression) Observe(s Stats) {
	if p.restDensity <= 0 {
		return
	}
	p.peak = math.Max(p.peak, s.MaxDensity/p.restDensity)
}

func (p *PeakCompression) Value() float64 { return p.peak }
func (p *PeakCompression) Reset()         { p.peak = 0 }

type MeanKineticEnergy struct {
	total   float64
	samples int
}

func NewMeanKineticEnergy() *MeanKineticEnergy {
	return &MeanKineticEnergy{}
}

func (m *MeanKineticEnergy) Name() string { return "mean_kinetic_energy" }

func (m *MeanKineticEnergy) Observe(s Stats) {
	m.total += s.KineticEnergy
	m.samples++
}

func (m *MeanKineticEnergy) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.total / float64(m.samples)
}

func (m *MeanKineticEnergy) Reset() {
	m.total = 0
	m.samples = 0
}

// Stability is the fraction of frames whose max speed stayed finite and
// below the limit.
type Stability struct {
	limit      float64
	violations int
	samples    int
}

func NewStability(limit float64) *Stability {
	return &Stability{limit: limit}
}

func (s *Stability) Name() string {
	return "stability"
}

func (s *Stability) Observe(st Stats) {
	s.samples++
	if math.IsNaN(st.MaxSpeed) || math.IsInf(st.MaxSpeed, 0) || st.MaxSpeed > s.limit {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Settling is the ratio of the last frame's kinetic energy to the peak.
// Values near zero mean the fluid has come to rest.
type Settling struct {
	peak float64
	last float64
}

func NewSettling() *Settling {
	return &Settling{}
}

func (s *Settling) Name() string { return "settling" }

func (s *Settling) Observe(st Stats) {
	s.peak = math.Max(s.peak, st.KineticEnergy)
	s.last = st.KineticEnergy
}

func (s *Settling) Value() float64 {
	if s.peak == 0 {
		return 0
	}
	return s.last / s.peak
}

func (s *Settling) Reset() {
	s.peak = 0
	s.last = 0
}
