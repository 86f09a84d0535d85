package loop

import (
	"github.com/justyntemme/loopstation/pkg/dsp"
)

// WaveformSamples caps how many samples CaptureWaveform copies, whatever the
// loop length.
const WaveformSamples = 16384

// Waveform is a coarse overview of a loop's cycle for display.
type Waveform struct {
	Peaks  []float32
	RMS    []float32
	Length int
}

// WaveformCapture is a decimated copy of a loop's audio, taken under the
// audio lock and summarised after it is released.
type WaveformCapture struct {
	Samples []float32
	// Length is the loop length the capture covers.
	Length int
}

// CaptureWaveform copies at most WaveformSamples evenly spaced samples of the
// cycle, or of the recording so far. It reads the buffer, so callers must
// hold the lock that serialises audio access; the copy is all it does.
func (l *Loop) CaptureWaveform() WaveformCapture {
	c := WaveformCapture{Length: l.length}
	n := l.length
	start := l.fade
	if n == 0 {
		// Still recording: summarise what has been written so far.
		n = l.written
		start = 0
	}
	region := l.buf.Region(start, n)
	if len(region) == 0 {
		return c
	}

	stride := (len(region) + WaveformSamples - 1) / WaveformSamples
	c.Samples = make([]float32, 0, (len(region)+stride-1)/stride)
	for i := 0; i < len(region); i += stride {
		c.Samples = append(c.Samples, region[i])
	}
	return c
}

// Build summarises the capture into at most buckets columns. It touches no
// loop state and needs no lock.
func (c WaveformCapture) Build(buckets int) *Waveform {
	w := &Waveform{Length: c.Length}
	n := len(c.Samples)
	if buckets <= 0 || n == 0 {
		return w
	}
	if buckets > n {
		buckets = n
	}

	w.Peaks = make([]float32, buckets)
	w.RMS = make([]float32, buckets)
	for b := 0; b < buckets; b++ {
		lo := b * n / buckets
		hi := (b + 1) * n / buckets
		w.Peaks[b] = dsp.Peak(c.Samples[lo:hi])
		w.RMS[b] = dsp.RMS(c.Samples[lo:hi])
	}
	return w
}

// PublishWaveform makes w visible to readers on other goroutines.
func (l *Loop) PublishWaveform(w *Waveform) {
	l.waveform.Store(w)
}

// Waveform returns the last published overview, or nil.
func (l *Loop) Waveform() *Waveform {
	return l.waveform.Load()
}
