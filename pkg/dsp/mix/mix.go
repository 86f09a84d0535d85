// Package mix provides the crossfades used to close a loop seamlessly.
package mix

import (
	"math"
)

// CrossfadeCosine performs an equal-power cosine crossfade.
// position: 0.0 = 100% a, 1.0 = 100% b
func CrossfadeCosine(a, b, position float32) float32 {
	angle := position * math.Pi / 2.0
	gainA := float32(math.Cos(float64(angle)))
	gainB := float32(math.Sin(float64(angle)))
	return a*gainA + b*gainB
}

// CrossfadeInto blends dst towards src in place. The first sample is all dst
// and the blend moves towards src so that the sample after the last one can
// be taken from src's continuation without a step. The curve is equal power.
func CrossfadeInto(dst, src []float32) {
	length := len(dst)
	if len(src) < length {
		length = len(src)
	}
	if length == 0 {
		return
	}

	step := 1.0 / float32(length)
	for i := 0; i < length; i++ {
		dst[i] = CrossfadeCosine(dst[i], src[i], float32(i)*step)
	}
}
