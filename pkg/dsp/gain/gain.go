// Package gain provides level conversions for loop and channel gain.
package gain

import (
	"math"
)

// MinDB is the minimum dB value (effectively -infinity)
const MinDB = -200.0

// LinearToDb32 converts a linear amplitude to decibels.
// Returns MinDB for values <= 0.
func LinearToDb32(linear float32) float32 {
	if linear <= 0 {
		return MinDB
	}
	return 20.0 * float32(math.Log10(float64(linear)))
}

// DbToLinear32 converts decibels to a linear amplitude.
// Values <= MinDB return 0.
func DbToLinear32(db float32) float32 {
	if db <= MinDB {
		return 0
	}
	return float32(math.Pow(10.0, float64(db)/20.0))
}
