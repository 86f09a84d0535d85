package debug

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Profiler measures how long the audio callback takes against the period of
// the block it renders. Record is lock-free so the callback can call it.
type Profiler struct {
	count  atomic.Int64
	total  atomic.Int64
	min    atomic.Int64
	max    atomic.Int64
	last   atomic.Int64
	budget atomic.Int64
}

// Measurement is a snapshot of a Profiler.
type Measurement struct {
	Count  uint64
	Total  time.Duration
	Min    time.Duration
	Max    time.Duration
	Last   time.Duration
	Budget time.Duration
}

// NewProfiler creates a profiler for blocks of blockSize frames.
func NewProfiler(sampleRate float64, blockSize int) *Profiler {
	p := &Profiler{}
	p.SetBlock(sampleRate, blockSize)
	return p
}

// SetBlock changes the block period used for load figures.
func (p *Profiler) SetBlock(sampleRate float64, blockSize int) {
	if sampleRate <= 0 || blockSize <= 0 {
		p.budget.Store(0)
		return
	}
	p.budget.Store(int64(float64(blockSize) / sampleRate * float64(time.Second)))
}

// Start begins timing a callback; call the returned func when it is done.
func (p *Profiler) Start() func() {
	start := time.Now()
	return func() {
		p.Record(time.Since(start))
	}
}

// Record adds one callback duration.
func (p *Profiler) Record(elapsed time.Duration) {
	ns := int64(elapsed)
	if p.count.Add(1) == 1 {
		p.min.Store(ns)
	}
	p.total.Add(ns)
	p.last.Store(ns)
	for {
		cur := p.min.Load()
		if ns >= cur || p.min.CompareAndSwap(cur, ns) {
			break
		}
	}
	for {
		cur := p.max.Load()
		if ns <= cur || p.max.CompareAndSwap(cur, ns) {
			break
		}
	}
}

// Measurement returns the current figures.
func (p *Profiler) Measurement() Measurement {
	return Measurement{
		Count:  uint64(p.count.Load()),
		Total:  time.Duration(p.total.Load()),
		Min:    time.Duration(p.min.Load()),
		Max:    time.Duration(p.max.Load()),
		Last:   time.Duration(p.last.Load()),
		Budget: time.Duration(p.budget.Load()),
	}
}

// Reset clears the figures but keeps the block period.
func (p *Profiler) Reset() {
	p.count.Store(0)
	p.total.Store(0)
	p.min.Store(0)
	p.max.Store(0)
	p.last.Store(0)
}

// Average returns the mean callback duration.
func (m Measurement) Average() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.Total / time.Duration(m.Count)
}

// Load is the mean callback duration as a percentage of the block period.
func (m Measurement) Load() float64 {
	if m.Budget <= 0 {
		return 0
	}
	return float64(m.Average()) / float64(m.Budget) * 100
}

// PeakLoad is the longest callback as a percentage of the block period.
func (m Measurement) PeakLoad() float64 {
	if m.Budget <= 0 {
		return 0
	}
	return float64(m.Max) / float64(m.Budget) * 100
}

func (m Measurement) String() string {
	return fmt.Sprintf("%d blocks, avg %v, max %v, load %.1f%% (peak %.1f%%)",
		m.Count, m.Average(), m.Max, m.Load(), m.PeakLoad())
}
