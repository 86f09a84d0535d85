package mixer

import (
	"math"
	"testing"

	"github.com/justyntemme/loopstation/pkg/framework/process"
)

// routeIdentity copies every input channel to the output channel of the same
// index for one block.
func routeIdentity(m *ChannelMixer, frames int) {
	out := m.Outputs()
	out.Zero(frames)
	for ch := 0; ch < m.NumInputs() && ch < m.NumOutputs(); ch++ {
		m.Inputs().OnPlayChannel(ch, out.Channel(ch), frames)
	}
	out.EndMultiWrite(frames, true)
}

func ramp(frames, channels int, start float32) []float32 {
	buf := make([]float32, frames*channels)
	for i := range buf {
		buf[i] = start + float32(i)*0.001
	}
	return buf
}

func TestChannelMixerLoopback(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		frames   int
		blocks   int
	}{
		{"mono", 1, 64, 10},
		{"stereo", 2, 32, 12},
		{"odd block", 2, 17, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewChannelMixer(tt.channels, tt.channels, tt.frames, 0)
			out := make([]float32, tt.frames*tt.channels)

			for block := 0; block < tt.blocks; block++ {
				in := ramp(tt.frames, tt.channels, float32(block)*-0.05)
				m.FromAdc(in, tt.frames)
				routeIdentity(m, tt.frames)
				m.ToDac(out, tt.frames)

				for i := range in {
					if out[i] != in[i] {
						t.Fatalf("block %d sample %d: expected %f, got %f", block, i, in[i], out[i])
					}
				}
			}
		})
	}
}

func TestChannelMixerLatency(t *testing.T) {
	const frames = 8
	const latency = 5
	m := NewChannelMixer(1, 1, frames, latency)

	var sent, received []float32
	out := make([]float32, frames)
	for block := 0; block < 6; block++ {
		in := make([]float32, frames)
		for i := range in {
			in[i] = float32(block*frames+i+1) / 100
		}
		sent = append(sent, in...)

		m.FromAdc(in, frames)
		routeIdentity(m, frames)
		m.ToDac(out, frames)
		received = append(received, out...)
	}

	for i := 0; i < latency; i++ {
		if received[i] != 0 {
			t.Errorf("Sample %d should be silence, got %f", i, received[i])
		}
	}
	for i := latency; i < len(received); i++ {
		if received[i] != sent[i-latency] {
			t.Fatalf("Sample %d: expected %f, got %f", i, sent[i-latency], received[i])
		}
	}
}

func TestChannelMixerClipsAndPads(t *testing.T) {
	m := NewChannelMixer(2, 2, 4, 0)
	// Short input: the missing right channel samples read as silence.
	m.FromAdc([]float32{2, -3, 0.5}, 4)
	routeIdentity(m, 4)

	out := make([]float32, 8)
	m.ToDac(out, 4)
	expected := []float32{1, -1, 0.5, 0, 0, 0, 0, 0}
	for i := range expected {
		if out[i] != expected[i] {
			t.Errorf("Sample %d: expected %f, got %f", i, expected[i], out[i])
		}
	}
}

func TestChannelMixerClampsFrames(t *testing.T) {
	m := NewChannelMixer(1, 1, 4, 0)
	m.FromAdc(make([]float32, 100), 100)
	out := make([]float32, 100)
	for i := range out {
		out[i] = 9
	}
	m.ToDac(out, 100)
	if out[4] != 9 {
		t.Error("ToDac must not write past MaxFrames")
	}
}

type capture struct {
	samples []float32
}

func (c *capture) OnWrite(sample float32, indexOffset int) int {
	c.samples[indexOffset] += sample
	return indexOffset + 1
}

func (c *capture) OnOverwrite(sample float32, indexOffset int) int {
	c.samples[indexOffset] = sample
	return indexOffset + 1
}

func (c *capture) EndWrite(numSamples int, updateIndex bool) {}

type captureBank []*capture

func newCaptureBank(channels, frames int) captureBank {
	b := make(captureBank, channels)
	for i := range b {
		b[i] = &capture{samples: make([]float32, frames)}
	}
	return b
}

func (b captureBank) NumInputChannels() int { return len(b) }

func (b captureBank) Channel(ch int) process.Sink {
	if ch < 0 || ch >= len(b) {
		return nil
	}
	return b[ch]
}

func (b captureBank) Zero(numSamples int)                            {}
func (b captureBank) EndMultiWrite(numSamples int, updateIndex bool) {}

func TestAudioMixerWire(t *testing.T) {
	m := NewAudioMixer(Wire{Channels: []int{1, 7}}, 48000)
	bank := newCaptureBank(3, 4)

	for i := 0; i < 4; i++ {
		if next := m.OnWrite(bank, 0.5, i); next != i+1 {
			t.Fatalf("Expected offset %d, got %d", i+1, next)
		}
	}

	for i := 0; i < 4; i++ {
		if bank[1].samples[i] != 0.5 {
			t.Errorf("Wired channel sample %d: expected 0.5, got %f", i, bank[1].samples[i])
		}
		if bank[0].samples[i] != 0 || bank[2].samples[i] != 0 {
			t.Error("Unwired channels must stay silent")
		}
	}
}

func TestAudioMixerPan(t *testing.T) {
	m := NewAudioMixer(PanFromPosition(-1, 2), 48000)
	bank := newCaptureBank(2, 1)
	m.OnWrite(bank, 1, 0)

	if math.Abs(float64(bank[0].samples[0]-1)) > 0.001 {
		t.Errorf("Hard left should reach the first output, got %f", bank[0].samples[0])
	}
	if bank[1].samples[0] > 0.001 {
		t.Errorf("Hard left should not reach the second output, got %f", bank[1].samples[0])
	}

	m.SetBehaviour(Pan{Levels: []float32{0.25}})
	bank = newCaptureBank(2, 1)
	m.OnWrite(bank, 1, 0)
	if bank[0].samples[0] != 0.25 || bank[1].samples[0] != 0 {
		t.Errorf("Short level list should silence extra outputs: %v %v", bank[0].samples, bank[1].samples)
	}
}

func TestAudioMixerSmoothsLevel(t *testing.T) {
	const frames = 2000
	m := NewAudioMixer(Wire{Channels: []int{0}}, 48000)
	m.SetLevel(0)
	if !m.gain.IsSmoothing() {
		t.Fatal("A level change should start a fade")
	}
	bank := newCaptureBank(1, frames)
	for i := 0; i < frames; i++ {
		m.OnWrite(bank, 1, i)
	}
	if m.gain.IsSmoothing() {
		t.Error("The fade should have settled")
	}

	s := bank[0].samples
	if s[0] < 0.8 {
		t.Errorf("Gain should not jump to the new level, first sample %f", s[0])
	}
	for i := 1; i < len(s); i++ {
		if s[i] > s[i-1] {
			t.Fatalf("Gain should fall monotonically, sample %d rose", i)
		}
	}
	if s[frames-1] != 0 {
		t.Errorf("Gain should settle at 0 after %d samples, got %f", frames, s[frames-1])
	}
}

func TestAudioMixerMute(t *testing.T) {
	m := NewAudioMixer(Wire{Channels: []int{0}}, 48000)
	m.SetLevel(0.5)
	m.SetMuted(true)
	m.Snap()

	bank := newCaptureBank(1, 1)
	m.OnWrite(bank, 1, 0)
	if bank[0].samples[0] != 0 {
		t.Errorf("Muted mixer should be silent, got %f", bank[0].samples[0])
	}

	m.SetMuted(false)
	m.Snap()
	m.OnWrite(bank, 1, 0)
	if bank[0].samples[0] != 0.5 {
		t.Errorf("Unmuted mixer should return to its level, got %f", bank[0].samples[0])
	}
	if m.Level() != 0.5 || m.Muted() {
		t.Errorf("Unexpected state level=%f muted=%v", m.Level(), m.Muted())
	}
}

func TestAudioMixerHoldsSettledGain(t *testing.T) {
	m := NewAudioMixer(Wire{Channels: []int{0}}, 48000)
	m.SetLevel(0.25)
	m.Snap()
	bank := newCaptureBank(1, 3)
	for i := 0; i < 3; i++ {
		m.OnWrite(bank, 1, i)
	}
	for i, s := range bank[0].samples {
		if s != 0.25 {
			t.Errorf("Sample %d: expected the settled level 0.25, got %f", i, s)
		}
	}
}
