package kernel

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Spiky is the Desbrun-Gascuel pressure kernel W(r) = 15/(pi h^3) (1 - r/h)^3.
// Its gradient does not vanish near r = 0, which keeps particles from clumping.
type Spiky struct {
	h      float32
	value  float32
	first  float32
	second float32
}

func NewSpiky(h float32) *Spiky {
	hd := float64(h)
	return &Spiky{
		h:      h,
		value:  float32(15.0 / (math.Pi * hd * hd * hd)),
		first:  float32(-45.0 / (math.Pi * hd * hd * hd * hd)),
		second: float32(90.0 / (math.Pi * hd * hd * hd * hd * hd)),
	}
}

func (k *Spiky) Name() string    { return "spiky" }
func (k *Spiky) Radius() float32 { return k.h }

func (k *Spiky) Value(r float32) float32 {
	if r < 0 || r >= k.h {
		return 0
	}
	q := 1 - r/k.h
	return k.value * q * q * q
}

func (k *Spiky) FirstDerivative(r float32) float32 {
	if r < 0 || r >= k.h {
		return 0
	}
	q := 1 - r/k.h
	return k.first * q * q
}

func (k *Spiky) SecondDerivative(r float32) float32 {
	if r < 0 || r >= k.h {
		return 0
	}
	return k.second * (1 - r/k.h)
}

func (k *Spiky) Gradient(d mgl32.Vec3) mgl32.Vec3 {
	return gradient(k, d)
}
