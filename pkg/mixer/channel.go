// Package mixer routes audio between the device's interleaved buffers, the
// per-channel rings and the loops.
package mixer

import (
	"github.com/justyntemme/loopstation/pkg/dsp"
	"github.com/justyntemme/loopstation/pkg/dsp/buffer"
	"github.com/justyntemme/loopstation/pkg/framework/process"
)

// ChannelMixer owns one ring per device input and output channel. FromAdc
// deinterleaves the device input into the input rings; loops read them through
// Inputs and write into Outputs; ToDac interleaves the outputs back.
type ChannelMixer struct {
	inputs    inputBank
	outputs   outputBank
	maxFrames int
	latency   int
	dac       interleaver
}

// NewChannelMixer allocates rings large enough for blocks of up to maxFrames
// plus latency samples of output delay.
func NewChannelMixer(numInputs, numOutputs, maxFrames, latency int) *ChannelMixer {
	if maxFrames < 1 {
		maxFrames = 1
	}
	if latency < 0 {
		latency = 0
	}
	size := 2 * (maxFrames + latency)
	m := &ChannelMixer{
		inputs:    make(inputBank, numInputs),
		outputs:   make(outputBank, numOutputs),
		maxFrames: maxFrames,
		latency:   latency,
	}
	for i := range m.inputs {
		m.inputs[i] = buffer.NewRing(size)
	}
	for i := range m.outputs {
		m.outputs[i] = buffer.NewRing(size)
	}
	return m
}

// NumInputs returns the number of device input channels.
func (m *ChannelMixer) NumInputs() int { return len(m.inputs) }

// NumOutputs returns the number of device output channels.
func (m *ChannelMixer) NumOutputs() int { return len(m.outputs) }

// MaxFrames returns the largest block the mixer accepts.
func (m *ChannelMixer) MaxFrames() int { return m.maxFrames }

// Latency returns the extra output delay in samples.
func (m *ChannelMixer) Latency() int { return m.latency }

// Inputs exposes the input rings as a source of the most recent block.
func (m *ChannelMixer) Inputs() process.MultiSource { return m.inputs }

// Outputs exposes the output rings as a sink for the current block.
func (m *ChannelMixer) Outputs() process.MultiSink { return m.outputs }

// FromAdc deinterleaves frames of device input into the input rings. Missing
// input samples are treated as silence.
func (m *ChannelMixer) FromAdc(in []float32, frames int) {
	frames = m.clampFrames(frames)
	n := len(m.inputs)
	if n == 0 {
		return
	}
	for ch, ring := range m.inputs {
		for i := 0; i < frames; i++ {
			var s float32
			if idx := i*n + ch; idx < len(in) {
				s = in[idx]
			}
			ring.OnOverwrite(s, i)
		}
		ring.EndWrite(frames, true)
	}
}

// ToDac interleaves frames of output into out, delayed by the configured
// latency and hard-clipped to [-1, 1].
func (m *ChannelMixer) ToDac(out []float32, frames int) {
	frames = m.clampFrames(frames)
	n := len(m.outputs)
	if n == 0 {
		return
	}
	if total := frames * n; total < len(out) {
		out = out[:total]
	}
	dsp.Clear(out)

	m.dac.out = out
	m.dac.stride = n
	for ch, ring := range m.outputs {
		m.dac.channel = ch
		ring.Delay(frames + m.latency)
		ring.OnPlay(&m.dac, frames)
		ring.EndPlay(frames)
	}
	m.dac.out = nil
}

func (m *ChannelMixer) clampFrames(frames int) int {
	if frames > m.maxFrames {
		return m.maxFrames
	}
	if frames < 0 {
		return 0
	}
	return frames
}

type inputBank []*buffer.Circular

func (b inputBank) NumOutputChannels() int { return len(b) }

// OnPlayChannel streams the most recently written block of channel ch.
func (b inputBank) OnPlayChannel(ch int, dst process.Sink, numSamples int) {
	if ch < 0 || ch >= len(b) || dst == nil {
		return
	}
	b[ch].Delay(numSamples)
	b[ch].OnPlay(dst, numSamples)
}

func (b inputBank) EndMultiPlay(numSamples int) {}

type outputBank []*buffer.Circular

func (b outputBank) NumInputChannels() int { return len(b) }

func (b outputBank) Channel(ch int) process.Sink {
	if ch < 0 || ch >= len(b) {
		return nil
	}
	return b[ch]
}

func (b outputBank) Zero(numSamples int) {
	for _, ring := range b {
		ring.Zero(numSamples)
	}
}

func (b outputBank) EndMultiWrite(numSamples int, updateIndex bool) {
	for _, ring := range b {
		ring.EndWrite(numSamples, updateIndex)
	}
}

// interleaver writes one channel of a block into an interleaved buffer.
type interleaver struct {
	out     []float32
	channel int
	stride  int
}

func (w *interleaver) OnWrite(sample float32, indexOffset int) int {
	if idx := indexOffset*w.stride + w.channel; idx < len(w.out) {
		w.out[idx] = dsp.ClipSample(w.out[idx]+sample, 1)
	}
	return indexOffset + 1
}

func (w *interleaver) OnOverwrite(sample float32, indexOffset int) int {
	if idx := indexOffset*w.stride + w.channel; idx < len(w.out) {
		w.out[idx] = dsp.ClipSample(sample, 1)
	}
	return indexOffset + 1
}

func (w *interleaver) EndWrite(numSamples int, updateIndex bool) {}
