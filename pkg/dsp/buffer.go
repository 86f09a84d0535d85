// Package dsp provides block-level sample helpers shared by the loop engine.
package dsp

import "math"

// Block helpers never allocate; they are safe to call from the audio callback.

// Clear zeroes a buffer
func Clear(buffer []float32) {
	for i := range buffer {
		buffer[i] = 0
	}
}

// Peak finds the maximum absolute value in a buffer
func Peak(buffer []float32) float32 {
	peak := float32(0)
	for _, sample := range buffer {
		if sample < 0 {
			sample = -sample
		}
		if sample > peak {
			peak = sample
		}
	}
	return peak
}

// RMS calculates the root mean square of a buffer
func RMS(buffer []float32) float32 {
	if len(buffer) == 0 {
		return 0
	}

	sum := float64(0)
	for _, sample := range buffer {
		sum += float64(sample) * float64(sample)
	}

	return float32(math.Sqrt(sum / float64(len(buffer))))
}

// ClipSample limits a single sample to [-limit, limit]
func ClipSample(sample, limit float32) float32 {
	if sample > limit {
		return limit
	}
	if sample < -limit {
		return -limit
	}
	return sample
}
