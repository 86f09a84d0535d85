// Package pan provides pan laws for spreading a mono loop across outputs.
package pan

import (
	"math"
)

// Law represents different panning laws
type Law int

const (
	// Linear uses linear panning (constant power not maintained)
	Linear Law = iota
	// ConstantPower uses sine/cosine panning (maintains constant power)
	ConstantPower
	// Balanced uses -4.5dB center compensation
	Balanced
)

// MonoToStereo pans a mono signal to stereo.
// pan: -1.0 = hard left, 0.0 = center, 1.0 = hard right
// Returns left and right gains.
func MonoToStereo(pan float32, law Law) (left, right float32) {
	if pan < -1 {
		pan = -1
	} else if pan > 1 {
		pan = 1
	}
	switch law {
	case Linear:
		return linearPan(pan)
	case Balanced:
		return balancedPan(pan)
	default:
		return constantPowerPan(pan)
	}
}

// Spread fills levels with per-output gains for a source placed at position,
// where -1 is the first output and 1 the last. The source is panned between
// the two outputs adjacent to position; every other output gets 0.
func Spread(position float32, law Law, levels []float32) {
	for i := range levels {
		levels[i] = 0
	}
	switch n := len(levels); n {
	case 0:
		return
	case 1:
		levels[0] = 1
		return
	default:
		if position < -1 {
			position = -1
		} else if position > 1 {
			position = 1
		}
		x := (position + 1) / 2 * float32(n-1)
		lo := int(x)
		if lo >= n-1 {
			lo = n - 2
		}
		frac := x - float32(lo)
		levels[lo], levels[lo+1] = MonoToStereo(frac*2-1, law)
	}
}

// linearPan implements simple linear panning.
func linearPan(pan float32) (left, right float32) {
	left = (1.0 - pan) * 0.5
	right = (1.0 + pan) * 0.5
	return
}

// constantPowerPan implements equal power panning using sine/cosine.
func constantPowerPan(pan float32) (left, right float32) {
	angle := (pan + 1.0) * math.Pi / 4.0
	left = float32(math.Cos(float64(angle)))
	right = float32(math.Sin(float64(angle)))
	return
}

// balancedPan implements panning with -4.5dB center compensation.
func balancedPan(pan float32) (left, right float32) {
	left, right = constantPowerPan(pan)
	compensation := 1.0 - (1.0-pan*pan)*0.159
	left *= compensation
	right *= compensation
	return
}
