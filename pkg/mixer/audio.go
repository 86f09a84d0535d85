package mixer

import (
	"github.com/justyntemme/loopstation/pkg/dsp/pan"
	"github.com/justyntemme/loopstation/pkg/framework/param"
	"github.com/justyntemme/loopstation/pkg/framework/process"
)

// Behaviour selects how a loop is spread over the outputs. It is one of Wire
// or Pan.
type Behaviour interface {
	behaviour()
}

// Wire sends the loop at full level to each listed output channel.
type Wire struct {
	Channels []int
}

// Pan sends the loop to every output at the matching level. Outputs beyond
// len(Levels) are silent.
type Pan struct {
	Levels []float32
}

func (Wire) behaviour() {}
func (Pan) behaviour()  {}

// PanFromPosition builds Pan levels for numChannels outputs from a position in
// [-1, 1], -1 being the first output.
func PanFromPosition(position float32, numChannels int) Pan {
	levels := make([]float32, numChannels)
	pan.Spread(position, pan.ConstantPower, levels)
	return Pan{Levels: levels}
}

// SmoothingMs is how long a level or mute change takes to settle.
const SmoothingMs = 10.0

// AudioMixer applies a loop's level and mute through a smoothed gain and routes
// the result according to its Behaviour.
type AudioMixer struct {
	behaviour Behaviour
	level     float32
	muted     bool
	gain      *param.Smoother
}

// NewAudioMixer creates a mixer at unity level.
func NewAudioMixer(b Behaviour, sampleRate float64) *AudioMixer {
	if b == nil {
		b = Wire{}
	}
	m := &AudioMixer{
		behaviour: b,
		level:     1,
		gain:      param.NewSmoother(param.ExponentialRate(sampleRate, SmoothingMs)),
	}
	m.gain.Reset(1)
	return m
}

// Behaviour returns the routing.
func (m *AudioMixer) Behaviour() Behaviour { return m.behaviour }

// SetBehaviour replaces the routing.
func (m *AudioMixer) SetBehaviour(b Behaviour) {
	if b != nil {
		m.behaviour = b
	}
}

// Level returns the target linear level.
func (m *AudioMixer) Level() float32 { return m.level }

// SetLevel sets the target linear level; negative levels clamp to 0.
func (m *AudioMixer) SetLevel(level float32) {
	if level < 0 {
		level = 0
	}
	m.level = level
	m.retarget()
}

// Muted reports whether the mixer is muted.
func (m *AudioMixer) Muted() bool { return m.muted }

// SetMuted fades the output out or back in.
func (m *AudioMixer) SetMuted(muted bool) {
	m.muted = muted
	m.retarget()
}

// Snap skips any fade in progress.
func (m *AudioMixer) Snap() {
	m.gain.Reset(m.gain.Target())
}

func (m *AudioMixer) retarget() {
	if m.muted {
		m.gain.SetTarget(0)
	} else {
		m.gain.SetTarget(float64(m.level))
	}
}

// OnWrite mixes one sample into dst at indexOffset and advances the gain
// smoother by one step while a fade is in progress.
func (m *AudioMixer) OnWrite(dst process.MultiSink, sample float32, indexOffset int) int {
	g := float32(m.gain.Current())
	if m.gain.IsSmoothing() {
		g = float32(m.gain.Next())
	}
	if g == 0 || dst == nil {
		return indexOffset + 1
	}
	s := sample * g

	switch b := m.behaviour.(type) {
	case Wire:
		for _, ch := range b.Channels {
			if sink := dst.Channel(ch); sink != nil {
				sink.OnWrite(s, indexOffset)
			}
		}
	case Pan:
		n := dst.NumInputChannels()
		if len(b.Levels) < n {
			n = len(b.Levels)
		}
		for ch := 0; ch < n; ch++ {
			if b.Levels[ch] == 0 {
				continue
			}
			if sink := dst.Channel(ch); sink != nil {
				sink.OnWrite(s*b.Levels[ch], indexOffset)
			}
		}
	}
	return indexOffset + 1
}
