package kernel

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Poly6 is the Müller et al. density kernel
// W(r) = 315/(64 pi h^9) (h^2 - r^2)^3.
type Poly6 struct {
	h     float32
	h2    float32
	value float32
	deriv float32
}

func NewPoly6(h float32) *Poly6 {
	h9 := math.Pow(float64(h), 9)
	return &Poly6{
		h:     h,
		h2:    h * h,
		value: float32(315.0 / (64.0 * math.Pi * h9)),
		deriv: float32(-945.0 / (32.0 * math.Pi * h9)),
	}
}

func (k *Poly6) Name() string    { return "poly6" }
func (k *Poly6) Radius() float32 { return k.h }

func (k *Poly6) Value(r float32) float32 {
	if r < 0 || r >= k.h {
		return 0
	}
	q := k.h2 - r*r
	return k.value * q * q * q
}

func (k *Poly6) FirstDerivative(r float32) float32 {
	if r < 0 || r >= k.h {
		return 0
	}
	q := k.h2 - r*r
	return k.deriv * r * q * q
}

func (k *Poly6) SecondDerivative(r float32) float32 {
	if r < 0 || r >= k.h {
		return 0
	}
	r2 := r * r
	return k.deriv * (k.h2 - r2) * (k.h2 - 5*r2)
}

func (k *Poly6) Gradient(d mgl32.Vec3) mgl32.Vec3 {
	return gradient(k, d)
}
