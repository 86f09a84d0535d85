// Package loop implements recorded loops, the takes that group them and the
// clock that keeps takes in step.
package loop

import (
	"sync/atomic"

	"github.com/justyntemme/loopstation/pkg/dsp/buffer"
	"github.com/justyntemme/loopstation/pkg/dsp/mix"
	"github.com/justyntemme/loopstation/pkg/framework/process"
	"github.com/justyntemme/loopstation/pkg/mixer"
)

// ID identifies a loop within its take.
type ID int

// State is a loop's position in its lifecycle.
type State int

const (
	Inactive State = iota
	Recording
	// PlayingRecording is a loop whose length is fixed but whose tail is
	// still being captured. It routes audio like Recording.
	PlayingRecording
	Playing
	Overdubbing
	PunchedIn
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Inactive:
		return "inactive"
	case Recording:
		return "recording"
	case PlayingRecording:
		return "playing-recording"
	case Playing:
		return "playing"
	case Overdubbing:
		return "overdubbing"
	case PunchedIn:
		return "punched-in"
	default:
		return "unknown"
	}
}

// routing collapses PlayingRecording into Recording.
func (s State) routing() State {
	if s == PlayingRecording {
		return Recording
	}
	return s
}

// Config sizes a loop.
type Config struct {
	// FadeSamples is the lead-in kept before the loop start and crossfaded
	// into the end of the cycle.
	FadeSamples int
	// MaxSamples caps the buffer, fade included.
	MaxSamples int
	// InputChannel is the device input the loop records.
	InputChannel int
	SampleRate   float64
	Behaviour    mixer.Behaviour
}

// Loop is one recorded mono clip. Its buffer holds the lead-in at
// [0, fade) and the cycle at [fade, fade+length); playback wraps from
// fade+length back to fade.
//
// Audio methods never fail; on a loop in the wrong state they do nothing.
type Loop struct {
	id     ID
	name   string
	state  State
	buf    *buffer.Circular
	mixer  *mixer.AudioMixer
	input  int
	fade   int
	length int
	cursor int
	// written counts samples committed since Record.
	written int
	// linear is set for loops recorded from scratch, which need their
	// wrap crossfaded once the tail is in.
	linear bool

	speed           float32
	masterLoopCount int
	muteGroups      uint32
	selectGroups    uint32
	selected        bool

	modelNeedsUpdating bool
	changesMade        bool
	waveform           atomic.Pointer[Waveform]
}

// New creates an inactive loop.
func New(id ID, cfg Config) *Loop {
	if cfg.FadeSamples < 0 {
		cfg.FadeSamples = 0
	}
	if cfg.MaxSamples <= cfg.FadeSamples {
		cfg.MaxSamples = cfg.FadeSamples + 1
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	return &Loop{
		id:    id,
		buf:   buffer.NewCircular(cfg.FadeSamples, cfg.MaxSamples),
		mixer: mixer.NewAudioMixer(cfg.Behaviour, cfg.SampleRate),
		input: cfg.InputChannel,
		fade:  cfg.FadeSamples,
		speed: 1,
	}
}

func (l *Loop) ID() ID                    { return l.id }
func (l *Loop) State() State              { return l.state }
func (l *Loop) Length() int               { return l.length }
func (l *Loop) FadeSamples() int          { return l.fade }
func (l *Loop) InputChannel() int         { return l.input }
func (l *Loop) Written() int              { return l.written }
func (l *Loop) Mixer() *mixer.AudioMixer  { return l.mixer }
func (l *Loop) Name() string              { return l.name }
func (l *Loop) SetName(name string)       { l.name = name }
func (l *Loop) Speed() float32            { return l.speed }
func (l *Loop) MasterLoopCount() int      { return l.masterLoopCount }
func (l *Loop) MuteGroups() uint32        { return l.muteGroups }
func (l *Loop) SelectGroups() uint32      { return l.selectGroups }
func (l *Loop) Selected() bool            { return l.selected }
func (l *Loop) SetSelected(selected bool) { l.selected = selected }

// PlayCursor returns the buffer position the next block plays from.
func (l *Loop) PlayCursor() int { return l.cursor }

// PlayIndex returns the position within the cycle, in [0, length).
func (l *Loop) PlayIndex() int {
	if l.length == 0 {
		return 0
	}
	return l.cursor - l.fade
}

// SetSpeed stores the playback speed. Playback itself runs at unity.
func (l *Loop) SetSpeed(speed float32) {
	if speed > 0 {
		l.speed = speed
		l.changesMade = true
	}
}

// SetMasterLoopCount records how many master cycles the loop spans.
func (l *Loop) SetMasterLoopCount(n int) { l.masterLoopCount = n }

// SetGroups sets the mute and select group masks.
func (l *Loop) SetGroups(mute, sel uint32) {
	l.muteGroups = mute
	l.selectGroups = sel
	l.changesMade = true
}

// SetLevel sets the loop's linear output level.
func (l *Loop) SetLevel(level float32) {
	l.mixer.SetLevel(level)
	l.changesMade = true
}

// Muted reports whether the loop is muted.
func (l *Loop) Muted() bool { return l.mixer.Muted() }

// SetMuted fades the loop out or in.
func (l *Loop) SetMuted(muted bool) {
	l.mixer.SetMuted(muted)
	l.changesMade = true
}

// Record starts a fresh linear recording.
func (l *Loop) Record() {
	if l.state != Inactive {
		return
	}
	l.buf.Reset()
	l.state = Recording
	l.length = 0
	l.cursor = 0
	l.written = 0
	l.linear = true
	l.modelNeedsUpdating = true
	l.changesMade = true
}

// Play fixes the loop length and starts playback index samples into the
// cycle. From Recording the loop plays once its tail is captured; from
// Inactive it becomes a silent loop ready for overdubbing; from an overdub
// state it commits the overdub.
func (l *Loop) Play(index, length int) {
	switch l.state {
	case Overdubbing, PunchedIn:
		l.state = Playing
		l.modelNeedsUpdating = true
		l.changesMade = true
		return
	case Recording, Inactive:
	default:
		return
	}
	if length <= 0 {
		l.Ditch()
		return
	}

	if max := l.buf.MaxCapacity() - l.fade; length > max {
		length = max
	}
	l.length = length
	l.cursor = l.fade + wrap(index, length)

	if l.state == Inactive {
		l.buf.Reset()
		l.linear = false
		l.written = 0
		l.buf.SetLength(length)
		l.state = Playing
	} else if l.written >= length+l.fade {
		l.close()
	} else {
		l.state = PlayingRecording
	}
	l.modelNeedsUpdating = true
	l.changesMade = true
}

// close turns a fully captured linear recording into a ring.
func (l *Loop) close() {
	if l.linear && l.fade > 0 && l.length >= l.fade {
		mix.CrossfadeInto(l.buf.Region(l.length, l.fade), l.buf.Region(0, l.fade))
	}
	l.linear = false
	l.buf.SetLength(l.length)
	l.state = Playing
}

// Overdub makes writes additive on a playing loop.
func (l *Loop) Overdub() {
	if l.state == Playing && l.length > 0 {
		l.state = Overdubbing
	}
}

// PunchIn moves an overdubbing loop to PunchedIn.
func (l *Loop) PunchIn() {
	if l.state == Overdubbing {
		l.state = PunchedIn
	}
}

// PunchOut returns a punched-in loop to Overdubbing.
func (l *Loop) PunchOut() {
	if l.state == PunchedIn {
		l.state = Overdubbing
	}
}

// Ditch discards the loop's audio.
func (l *Loop) Ditch() {
	l.buf.Reset()
	l.state = Inactive
	l.length = 0
	l.cursor = 0
	l.written = 0
	l.linear = false
	l.masterLoopCount = 0
	l.waveform.Store(nil)
	l.modelNeedsUpdating = false
	l.changesMade = true
}

// Load restores saved audio straight into Playing. samples holds a lead-in
// followed by length samples of cycle; the lead-in is trimmed or padded to the
// loop's fade margin.
func (l *Loop) Load(samples []float32, length, index int) bool {
	if length <= 0 || len(samples) == 0 {
		return false
	}
	data := make([]float32, l.fade+length)
	if offset := l.fade - (len(samples) - length); offset >= 0 {
		copy(data[offset:], samples)
	} else {
		copy(data, samples[-offset:])
	}

	l.buf.Reset()
	l.buf.Load(data)
	l.length = l.buf.SetLength(length)
	if l.length <= 0 {
		l.Ditch()
		return false
	}
	l.cursor = l.fade + wrap(index, l.length)
	l.written = l.fade + l.length
	l.linear = false
	l.state = Playing
	l.modelNeedsUpdating = true
	return true
}

// Samples copies the lead-in and cycle for saving.
func (l *Loop) Samples() []float32 {
	if l.length == 0 {
		return nil
	}
	return l.buf.Snapshot(l.fade + l.length)
}

func (l *Loop) writable() bool {
	switch l.state.routing() {
	case Recording, Overdubbing, PunchedIn:
		return true
	}
	return false
}

// OnWrite records a sample. Recording replaces; the overdub states add.
func (l *Loop) OnWrite(sample float32, indexOffset int) int {
	if !l.writable() {
		return indexOffset + 1
	}
	if l.state.routing() == Recording {
		return l.buf.OnOverwrite(sample, indexOffset)
	}
	l.buf.AddAt(l.cursorAt(indexOffset), sample)
	return indexOffset + 1
}

// OnOverwrite records a sample, replacing what is there.
func (l *Loop) OnOverwrite(sample float32, indexOffset int) int {
	if !l.writable() {
		return indexOffset + 1
	}
	if l.state.routing() == Recording {
		return l.buf.OnOverwrite(sample, indexOffset)
	}
	pos := l.cursorAt(indexOffset)
	l.buf.AddAt(pos, sample-l.buf.At(pos))
	return indexOffset + 1
}

// EndWrite commits a recorded block.
func (l *Loop) EndWrite(numSamples int, advance bool) {
	if !l.writable() || numSamples <= 0 {
		return
	}
	if l.state.routing() == Recording {
		l.buf.EndWrite(numSamples, advance)
		if advance {
			l.written += numSamples
			if max := l.buf.MaxCapacity(); l.written > max {
				l.written = max
			}
		}
		if l.state == PlayingRecording && l.written >= l.length+l.fade {
			l.close()
		}
	}
	l.modelNeedsUpdating = true
	l.changesMade = true
}

// cursorAt maps an offset from the play cursor into the cycle.
func (l *Loop) cursorAt(indexOffset int) int {
	return l.fade + wrap(l.cursor-l.fade+indexOffset, l.length)
}

// OnPlay mixes numSamples from the play cursor into dst through the loop's
// mixer. The cursor moves in EndMultiPlay.
func (l *Loop) OnPlay(dst process.MultiSink, numSamples int) {
	if l.length == 0 || l.state != Playing {
		return
	}
	end := l.fade + l.length
	pos := l.cursor
	for i := 0; i < numSamples; i++ {
		l.mixer.OnWrite(dst, l.buf.At(pos), i)
		pos++
		if pos >= end {
			pos = l.fade
		}
	}
}

// EndMultiPlay advances the play cursor.
func (l *Loop) EndMultiPlay(numSamples int) {
	if l.length == 0 || numSamples <= 0 {
		return
	}
	switch l.state {
	case PlayingRecording, Playing, Overdubbing, PunchedIn:
		l.cursor = l.fade + wrap(l.cursor-l.fade+numSamples, l.length)
	}
}

// TakeModelUpdate reports and clears the pending waveform update flag.
func (l *Loop) TakeModelUpdate() bool {
	pending := l.modelNeedsUpdating
	l.modelNeedsUpdating = false
	return pending
}

// ChangesMade reports whether the loop changed since the last ClearChanges.
func (l *Loop) ChangesMade() bool { return l.changesMade }

// ClearChanges marks the loop as saved.
func (l *Loop) ClearChanges() { l.changesMade = false }

func wrap(i, n int) int {
	if n <= 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
