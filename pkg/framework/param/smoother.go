// Package param provides value smoothing for live parameter changes.
package param

import (
	"math"
)

// threshold is the distance at which a smoother snaps onto its target.
const threshold = 0.0001

// Smoother moves a value towards a target one sample at a time through a
// one-pole filter so that gain changes never step.
type Smoother struct {
	current     float64
	target      float64
	rate        float64
	isSmoothing bool
}

// NewSmoother creates a smoother with the one-pole coefficient rate; 0 jumps
// straight to the target.
func NewSmoother(rate float64) *Smoother {
	return &Smoother{rate: rate}
}

// ExponentialRate returns the one-pole coefficient that settles within -60dB
// after timeMs.
func ExponentialRate(sampleRate, timeMs float64) float64 {
	samples := sampleRate * timeMs / 1000.0
	if samples <= 0 {
		return 0
	}
	return math.Exp(-6.908 / samples)
}

// SetTarget sets the target value for smoothing.
func (s *Smoother) SetTarget(target float64) {
	if math.Abs(target-s.target) < threshold {
		return
	}
	s.target = target
	s.isSmoothing = true
}

// Target returns the value being smoothed towards.
func (s *Smoother) Target() float64 {
	return s.target
}

// Current returns the last smoothed value without advancing.
func (s *Smoother) Current() float64 {
	return s.current
}

// Next returns the next smoothed value.
func (s *Smoother) Next() float64 {
	if !s.isSmoothing {
		return s.current
	}
	// y = y + a * (x - y)
	s.current += (s.target - s.current) * (1.0 - s.rate)
	if math.Abs(s.current-s.target) < threshold {
		s.current = s.target
		s.isSmoothing = false
	}
	return s.current
}

// IsSmoothing returns true if the smoother is currently smoothing.
func (s *Smoother) IsSmoothing() bool {
	return s.isSmoothing
}

// Reset jumps straight to value.
func (s *Smoother) Reset(value float64) {
	s.current = value
	s.target = value
	s.isSmoothing = false
}
